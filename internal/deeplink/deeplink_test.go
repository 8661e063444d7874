package deeplink

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/danielCarlosRodriguez/utilesApp/errs"
	"github.com/danielCarlosRodriguez/utilesApp/internal/domain/schema"
)

const samplePayload = "eyJpZCI6ImFiYzEyMyIsIm9yZGVyTnVtYmVyIjoiNyIsInN0YXR1cyI6InBlbmRpbmcifQ=="

func TestDecodeBase64(t *testing.T) {
	out, err := DecodeBase64("aGk=")
	require.NoError(t, err)
	require.Equal(t, "hi", string(out))

	out, err = DecodeBase64(" a G\nk = ")
	require.NoError(t, err)
	require.Equal(t, "hi", string(out), "bytes outside the alphabet are stripped")

	out, err = DecodeBase64("")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestDecodeBase64Rejects(t *testing.T) {
	for _, input := range []string{"aGk", "a=Gk", "aGk=aGk=", "=aGk"} {
		_, err := DecodeBase64(input)
		require.Error(t, err, input)
		require.True(t, errs.Is(err, errs.CodeInvalid), input)
	}
}

func TestParseURL(t *testing.T) {
	want := Reference{ID: "abc123", OrderNumber: "7", Status: schema.StatusPending}
	for _, raw := range []string{
		"utilesapp://order/" + samplePayload,
		"https://utiles.example/app/order/" + samplePayload + "?utm=qr#top",
		"exp://192.168.0.10:8081/--/order/" + samplePayload[:len(samplePayload)-2] + "%3D%3D",
	} {
		ref, err := ParseURL(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, ref)
	}
}

func TestParseURLNumericOrderNumber(t *testing.T) {
	ref, err := ParseURL("utilesapp://order/eyJpZCI6IngxIiwib3JkZXJOdW1iZXIiOjQyfQ==")
	require.NoError(t, err)
	require.Equal(t, "x1", ref.ID)
	require.Equal(t, schema.FlexString("42"), ref.OrderNumber)
	require.Empty(t, ref.Status)
}

func TestParseURLFailures(t *testing.T) {
	for name, raw := range map[string]string{
		"no segment":  "utilesapp://orders",
		"bad base64":  "utilesapp://order/abc",
		"not json":    "utilesapp://order/aGk=",
		"missing id":  "utilesapp://order/eyJvcmRlck51bWJlciI6IjkifQ==",
		"empty":       "",
		"only marker": "utilesapp://order/",
	} {
		_, err := ParseURL(raw)
		require.ErrorIs(t, err, ErrNoReference, name)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	ref := Reference{ID: "abc123", OrderNumber: "7", Status: schema.StatusPending}
	require.Equal(t, samplePayload, Encode(ref))

	link := Link("utilesapp://", ref)
	require.Equal(t, "utilesapp://order/"+samplePayload, link)

	parsed, err := ParseURL(link)
	require.NoError(t, err)
	require.Equal(t, ref, parsed)
}
