// Package config centralises runtime configuration helpers for the utiles order client.
package config

import (
	"net/url"
	"os"
	"strings"
	"time"
)

// Environment identifies the runtime environment the client talks to.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

const (
	// DefaultAPIBaseURL is the backend serving REST and socket traffic.
	DefaultAPIBaseURL = "https://utilesya-f43ef34adf2b.herokuapp.com"
	// DefaultLocale selects the Spanish (Uruguay) labels used by the storefront.
	DefaultLocale = "es"

	socketIOPath = "/socket.io/"
)

// Settings contains the backend coordinates loaded from defaults and environment overrides.
type Settings struct {
	Environment      Environment
	APIBaseURL       string
	SocketURL        string
	HTTPTimeout      time.Duration
	HandshakeTimeout time.Duration
	Locale           string
}

// Default returns the default client configuration.
func Default() Settings {
	return Settings{
		Environment:      EnvProd,
		APIBaseURL:       DefaultAPIBaseURL,
		SocketURL:        "",
		HTTPTimeout:      10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		Locale:           DefaultLocale,
	}
}

// FromEnv loads configuration values from environment variables, overriding defaults.
func FromEnv() Settings {
	return Apply(Default(), Overrides()...)
}

// Overrides returns one Option per recognised environment variable that is set.
func Overrides() []Option {
	var opts []Option
	if env := strings.TrimSpace(os.Getenv("UTILES_ENV")); env != "" {
		opts = append(opts, WithEnvironment(Environment(strings.ToLower(env))))
	}
	if v := strings.TrimSpace(os.Getenv("UTILES_API_BASE_URL")); v != "" {
		opts = append(opts, WithAPIBaseURL(v))
	}
	if v := strings.TrimSpace(os.Getenv("UTILES_SOCKET_URL")); v != "" {
		opts = append(opts, WithSocketURL(v))
	}
	if v := strings.TrimSpace(os.Getenv("UTILES_HTTP_TIMEOUT")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			opts = append(opts, WithHTTPTimeout(dur))
		}
	}
	if v := strings.TrimSpace(os.Getenv("UTILES_WS_HANDSHAKE_TIMEOUT")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			opts = append(opts, WithHandshakeTimeout(dur))
		}
	}
	if v := strings.TrimSpace(os.Getenv("UTILES_LOCALE")); v != "" {
		opts = append(opts, WithLocale(v))
	}
	return opts
}

// Option mutates Settings when applied via Apply.
type Option func(*Settings)

// Apply applies the provided Option set to a copy of the base Settings.
func Apply(base Settings, opts ...Option) Settings {
	cfg := base
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithEnvironment configures the top-level environment.
func WithEnvironment(env Environment) Option {
	return func(s *Settings) {
		if env != "" {
			s.Environment = env
		}
	}
}

// WithAPIBaseURL overrides the REST base URL.
func WithAPIBaseURL(baseURL string) Option {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return func(s *Settings) {
		if baseURL != "" {
			s.APIBaseURL = baseURL
		}
	}
}

// WithSocketURL overrides the realtime websocket endpoint.
func WithSocketURL(socketURL string) Option {
	socketURL = strings.TrimSpace(socketURL)
	return func(s *Settings) {
		if socketURL != "" {
			s.SocketURL = socketURL
		}
	}
}

// WithHTTPTimeout overrides the REST request timeout.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(s *Settings) {
		if timeout > 0 {
			s.HTTPTimeout = timeout
		}
	}
}

// WithHandshakeTimeout overrides the websocket dial timeout.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(s *Settings) {
		if timeout > 0 {
			s.HandshakeTimeout = timeout
		}
	}
}

// WithLocale selects the display locale.
func WithLocale(locale string) Option {
	locale = strings.ToLower(strings.TrimSpace(locale))
	return func(s *Settings) {
		if locale != "" {
			s.Locale = locale
		}
	}
}

// SocketEndpoint returns the explicit socket URL, or derives the Socket.IO websocket
// endpoint from the REST base URL.
func (s Settings) SocketEndpoint() string {
	if s.SocketURL != "" {
		return s.SocketURL
	}
	return DeriveSocketURL(s.APIBaseURL)
}

// DeriveSocketURL maps an http(s) base URL onto its Socket.IO websocket transport URL.
func DeriveSocketURL(baseURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || parsed.Host == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "https", "wss":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + socketIOPath
	parsed.RawQuery = url.Values{"EIO": {"4"}, "transport": {"websocket"}}.Encode()
	parsed.Fragment = ""
	return parsed.String()
}
