package device

import (
	"context"
	"strings"

	"github.com/danielCarlosRodriguez/utilesApp/errs"
	"github.com/danielCarlosRodriguez/utilesApp/internal/gateway"
	"github.com/danielCarlosRodriguez/utilesApp/internal/observability"
)

// Registrar registers push tokens with the backend.
type Registrar interface {
	RegisterDevice(ctx context.Context, token, deviceName string) gateway.Result[bool]
}

// PushRegistrar registers this device's push token once per distinct token.
type PushRegistrar struct {
	prefs *Prefs
	gw    Registrar
}

// NewPushRegistrar wires the preferences store and the backend.
func NewPushRegistrar(prefs *Prefs, gw Registrar) *PushRegistrar {
	return &PushRegistrar{prefs: prefs, gw: gw}
}

// Register sends token to the backend unless it matches the stored token. The token
// is stored only after the backend accepted it. It reports whether a request was made
// and succeeded.
func (r *PushRegistrar) Register(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, errs.New("device", errs.CodeInvalid, errs.WithMessage("push token required"))
	}
	if token == r.prefs.PushToken() {
		observability.Log().Debug("push token already registered, skipping")
		return false, nil
	}

	name, err := r.prefs.DeviceName()
	if err != nil {
		observability.Log().Info("device name not persisted", observability.F("error", err))
	}
	res := r.gw.RegisterDevice(ctx, token, name)
	if res.Err != nil {
		return false, res.Err
	}
	if !res.Value {
		return false, errs.New("device", errs.CodeUpstream, errs.WithMessage("push registration rejected"))
	}
	if err := r.prefs.SetPushToken(token); err != nil {
		return true, err
	}
	observability.Log().Info("push token registered", observability.F("device", name))
	return true, nil
}
