package config

import (
	"testing"
	"time"
)

func TestDefaultConfigProvidesBackend(t *testing.T) {
	cfg := Default()
	if cfg.Environment != EnvProd {
		t.Fatalf("expected default environment prod, got %s", cfg.Environment)
	}
	if cfg.APIBaseURL == "" || cfg.HTTPTimeout <= 0 {
		t.Fatalf("expected default REST settings, got %+v", cfg)
	}
	if cfg.Locale != DefaultLocale {
		t.Fatalf("expected default locale %q, got %q", DefaultLocale, cfg.Locale)
	}
}

func TestFromEnvOverridesValues(t *testing.T) {
	t.Setenv("UTILES_ENV", "STAGING")
	t.Setenv("UTILES_API_BASE_URL", "https://api.test/")
	t.Setenv("UTILES_SOCKET_URL", "wss://socket.test/socket.io/")
	t.Setenv("UTILES_HTTP_TIMEOUT", "15s")
	t.Setenv("UTILES_WS_HANDSHAKE_TIMEOUT", "20s")
	t.Setenv("UTILES_LOCALE", "EN")

	cfg := FromEnv()
	if cfg.Environment != EnvStaging {
		t.Fatalf("expected staging environment, got %s", cfg.Environment)
	}
	if cfg.APIBaseURL != "https://api.test" {
		t.Fatalf("expected trimmed base URL override, got %s", cfg.APIBaseURL)
	}
	if cfg.SocketEndpoint() != "wss://socket.test/socket.io/" {
		t.Fatalf("expected explicit socket URL, got %s", cfg.SocketEndpoint())
	}
	if cfg.HTTPTimeout != 15*time.Second || cfg.HandshakeTimeout != 20*time.Second {
		t.Fatalf("expected timeout overrides, got %s/%s", cfg.HTTPTimeout, cfg.HandshakeTimeout)
	}
	if cfg.Locale != "en" {
		t.Fatalf("expected locale override, got %s", cfg.Locale)
	}
}

func TestFromEnvIgnoresInvalidDurations(t *testing.T) {
	t.Setenv("UTILES_HTTP_TIMEOUT", "soon")
	cfg := FromEnv()
	if cfg.HTTPTimeout != Default().HTTPTimeout {
		t.Fatalf("expected default timeout to survive invalid override, got %s", cfg.HTTPTimeout)
	}
}

func TestApplyDoesNotMutateBase(t *testing.T) {
	base := Default()
	updated := Apply(base, WithAPIBaseURL("http://localhost:3000"), nil, WithHTTPTimeout(0))
	if base.APIBaseURL != DefaultAPIBaseURL {
		t.Fatalf("expected base untouched")
	}
	if updated.APIBaseURL != "http://localhost:3000" {
		t.Fatalf("expected override, got %s", updated.APIBaseURL)
	}
	if updated.HTTPTimeout != base.HTTPTimeout {
		t.Fatalf("zero timeout must be ignored")
	}
}

func TestDeriveSocketURL(t *testing.T) {
	cases := map[string]string{
		"https://example.com":        "wss://example.com/socket.io/?EIO=4&transport=websocket",
		"http://localhost:3000/":     "ws://localhost:3000/socket.io/?EIO=4&transport=websocket",
		"https://example.com/prefix": "wss://example.com/prefix/socket.io/?EIO=4&transport=websocket",
		"not a url":                  "",
	}
	for in, want := range cases {
		if got := DeriveSocketURL(in); got != want {
			t.Fatalf("DeriveSocketURL(%q) = %q, want %q", in, got, want)
		}
	}
}
