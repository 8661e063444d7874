// Package deeplink decodes order references carried by QR-code links of the form
// <scheme>://.../order/<base64(JSON)>.
package deeplink

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/danielCarlosRodriguez/utilesApp/errs"
	"github.com/danielCarlosRodriguez/utilesApp/internal/domain/schema"
)

const orderMarker = "/order/"

// ErrNoReference wraps every failure to extract a reference from a link.
var ErrNoReference = errors.New("deeplink: no order reference")

// Reference is the payload encoded in an order link.
type Reference struct {
	ID          string             `json:"id"`
	OrderNumber schema.FlexString  `json:"orderNumber"`
	Status      schema.OrderStatus `json:"status"`
}

// DecodeBase64 decodes standard padded base64 after dropping every byte outside the
// base64 alphabet. A truncated final group or misplaced padding is an error.
func DecodeBase64(s string) ([]byte, error) {
	filtered := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '/', r == '=':
			return r
		default:
			return -1
		}
	}, s)
	out, err := base64.StdEncoding.DecodeString(filtered)
	if err != nil {
		return nil, errs.New("deeplink", errs.CodeInvalid,
			errs.WithMessage("malformed base64 payload"),
			errs.WithCause(err))
	}
	return out, nil
}

// ParseURL extracts the reference from everything after the first "/order/" in raw.
// Query and fragment are ignored. Every failure wraps ErrNoReference.
func ParseURL(raw string) (Reference, error) {
	_, payload, found := strings.Cut(raw, orderMarker)
	if !found {
		return Reference{}, fmt.Errorf("%w: %q has no order segment", ErrNoReference, raw)
	}
	if i := strings.IndexAny(payload, "?#"); i >= 0 {
		payload = payload[:i]
	}
	if unescaped, err := url.PathUnescape(payload); err == nil {
		payload = unescaped
	}

	decoded, err := DecodeBase64(payload)
	if err != nil {
		return Reference{}, fmt.Errorf("%w: %w", ErrNoReference, err)
	}
	var ref Reference
	if err := json.Unmarshal(decoded, &ref); err != nil {
		return Reference{}, fmt.Errorf("%w: decode payload: %w", ErrNoReference, err)
	}
	ref.ID = strings.TrimSpace(ref.ID)
	if ref.ID == "" {
		return Reference{}, fmt.Errorf("%w: payload carries no id", ErrNoReference)
	}
	return ref, nil
}

// Encode returns the base64 payload for ref, the inverse of the payload half of ParseURL.
func Encode(ref Reference) string {
	raw, _ := json.Marshal(ref) // string fields only
	return base64.StdEncoding.EncodeToString(raw)
}

// Link joins base and the encoded payload, e.g. Link("utilesapp://", ref).
func Link(base string, ref Reference) string {
	return strings.TrimSuffix(base, "/") + orderMarker + Encode(ref)
}
