// Package config manages application configuration loading and validation.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	envcfg "github.com/danielCarlosRodriguez/utilesApp/config"
)

const (
	defaultReconnectAttempts = 10
	defaultReconnectDelay    = 2 * time.Second
	defaultSubscriberBuffer  = 64
	defaultJoinEvent         = "join:admin"
	defaultPeriod            = "month"
	defaultPrefsPath         = "utiles-prefs.yaml"
	defaultServiceName       = "utiles-orders"
)

// EndpointPaths lists the REST paths relative to the backend base URL.
type EndpointPaths struct {
	Orders       string `yaml:"orders"`
	Products     string `yaml:"products"`
	OrderStatus  string `yaml:"orderStatus"`
	PushRegister string `yaml:"pushRegister"`
}

// BackendConfig configures REST access to the orders backend.
type BackendConfig struct {
	BaseURL   string        `yaml:"baseURL"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rateLimit"`
	RateBurst int           `yaml:"rateBurst"`
	Paths     EndpointPaths `yaml:"paths"`
}

type attemptKind int

const (
	attemptUnset attemptKind = iota
	attemptExplicit
	attemptDefault
)

// AttemptSetting holds the reconnect attempt budget, accepting a positive integer or "default".
type AttemptSetting struct {
	kind  attemptKind
	value int
}

// Attempts returns an explicit attempt budget.
func Attempts(n int) AttemptSetting {
	if n <= 0 {
		return AttemptSetting{kind: attemptDefault, value: 0}
	}
	return AttemptSetting{kind: attemptExplicit, value: n}
}

// UnmarshalYAML supports integer and "default" values.
func (s *AttemptSetting) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = AttemptSetting{kind: attemptUnset, value: 0}
		return nil
	}
	text := strings.TrimSpace(node.Value)
	if text == "" {
		*s = AttemptSetting{kind: attemptUnset, value: 0}
		return nil
	}
	if strings.EqualFold(text, "default") {
		*s = AttemptSetting{kind: attemptDefault, value: 0}
		return nil
	}
	val, err := strconv.Atoi(text)
	if err != nil {
		return fmt.Errorf("reconnectAttempts: invalid value %q", node.Value)
	}
	if val <= 0 {
		return fmt.Errorf("reconnectAttempts: numeric value must be > 0")
	}
	*s = AttemptSetting{kind: attemptExplicit, value: val}
	return nil
}

// MarshalYAML renders the setting back as an integer or "default".
func (s AttemptSetting) MarshalYAML() (any, error) {
	if s.kind == attemptExplicit {
		return s.value, nil
	}
	return "default", nil
}

// Resolve returns the effective attempt budget.
func (s AttemptSetting) Resolve() int {
	if s.kind == attemptExplicit && s.value > 0 {
		return s.value
	}
	return defaultReconnectAttempts
}

// RealtimeConfig configures the Socket.IO order update channel.
type RealtimeConfig struct {
	Enabled           *bool          `yaml:"enabled"`
	URL               string         `yaml:"url"`
	JoinEvent         string         `yaml:"joinEvent"`
	ReconnectAttempts AttemptSetting `yaml:"reconnectAttempts"`
	ReconnectDelay    time.Duration  `yaml:"reconnectDelay"`
	HandshakeTimeout  time.Duration  `yaml:"handshakeTimeout"`
	SubscriberBuffer  int            `yaml:"subscriberBuffer"`
}

// IsEnabled reports whether the realtime channel should be started. Unset means enabled.
func (c RealtimeConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// DashboardConfig configures dashboard presentation defaults.
type DashboardConfig struct {
	Period string `yaml:"period"`
	Locale string `yaml:"locale"`
}

// DeviceConfig configures the locally persisted device preferences.
type DeviceConfig struct {
	PrefsPath   string `yaml:"prefsPath"`
	DefaultName string `yaml:"defaultName"`
}

// TelemetryConfig configures OTLP exporters (metrics only).
type TelemetryConfig struct {
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	ServiceName   string `yaml:"serviceName"`
	OTLPInsecure  bool   `yaml:"otlpInsecure"`
	EnableMetrics bool   `yaml:"enableMetrics"`
}

// AppConfig is the unified application configuration sourced from YAML.
type AppConfig struct {
	Environment Environment     `yaml:"environment"`
	Backend     BackendConfig   `yaml:"backend"`
	Realtime    RealtimeConfig  `yaml:"realtime"`
	Dashboard   DashboardConfig `yaml:"dashboard"`
	Device      DeviceConfig    `yaml:"device"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

// Default returns the configuration used when no file is present.
func Default() AppConfig {
	settings := envcfg.Default()
	cfg := AppConfig{
		Environment: settings.Environment,
		Backend: BackendConfig{
			BaseURL:   settings.APIBaseURL,
			Timeout:   settings.HTTPTimeout,
			RateLimit: 0,
			RateBurst: 0,
			Paths:     EndpointPaths{Orders: "", Products: "", OrderStatus: "", PushRegister: ""},
		},
		Realtime: RealtimeConfig{
			Enabled:           nil,
			URL:               "",
			JoinEvent:         "",
			ReconnectAttempts: AttemptSetting{kind: attemptUnset, value: 0},
			ReconnectDelay:    0,
			HandshakeTimeout:  settings.HandshakeTimeout,
			SubscriberBuffer:  0,
		},
		Dashboard: DashboardConfig{Period: "", Locale: settings.Locale},
		Device:    DeviceConfig{PrefsPath: "", DefaultName: ""},
		Telemetry: TelemetryConfig{OTLPEndpoint: "", ServiceName: "", OTLPInsecure: false, EnableMetrics: true},
	}
	_ = cfg.normalise()
	return cfg
}

// Load reads and validates an AppConfig from the provided YAML file. Environment
// variable overrides are applied after the file is decoded.
func Load(ctx context.Context, configPath string) (AppConfig, error) {
	_ = ctx

	reader, closer, err := openConfigFile(configPath)
	if err != nil {
		return AppConfig{}, err
	}
	defer closer()

	bytes, err := io.ReadAll(reader)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return finalise(cfg)
}

// LoadOrDefault loads the file at configPath, falling back to defaults when it does not
// exist. The boolean reports whether the file was read.
func LoadOrDefault(ctx context.Context, configPath string) (AppConfig, bool, error) {
	cfg, err := Load(ctx, configPath)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return AppConfig{}, false, err
	}
	cfg, err = finalise(Default())
	if err != nil {
		return AppConfig{}, false, err
	}
	return cfg, false, nil
}

// SaveAppConfig writes cfg to path through a temporary file and rename.
func SaveAppConfig(path string, cfg AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	target := filepath.Clean(strings.TrimSpace(path))
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp config %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename config %s: %w", target, err)
	}
	return nil
}

func finalise(cfg AppConfig) (AppConfig, error) {
	cfg.applySettings(envcfg.Apply(cfg.Settings(), envcfg.Overrides()...))
	if err := cfg.normalise(); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Settings projects the configuration onto the flat environment settings.
func (c AppConfig) Settings() envcfg.Settings {
	return envcfg.Settings{
		Environment:      c.Environment,
		APIBaseURL:       c.Backend.BaseURL,
		SocketURL:        c.Realtime.URL,
		HTTPTimeout:      c.Backend.Timeout,
		HandshakeTimeout: c.Realtime.HandshakeTimeout,
		Locale:           c.Dashboard.Locale,
	}
}

func (c *AppConfig) applySettings(s envcfg.Settings) {
	c.Environment = s.Environment
	c.Backend.BaseURL = s.APIBaseURL
	c.Realtime.URL = s.SocketURL
	c.Backend.Timeout = s.HTTPTimeout
	c.Realtime.HandshakeTimeout = s.HandshakeTimeout
	c.Dashboard.Locale = s.Locale
}

// SocketURL returns the realtime endpoint, derived from the backend base URL when unset.
func (c AppConfig) SocketURL() string {
	return c.Settings().SocketEndpoint()
}

func (c *AppConfig) normalise() error {
	c.Environment = Environment(normalizeToken(string(c.Environment)))
	if c.Environment == "" {
		c.Environment = EnvProd
	}

	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = envcfg.DefaultAPIBaseURL
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 10 * time.Second
	}
	if c.Backend.RateLimit > 0 && c.Backend.RateBurst <= 0 {
		c.Backend.RateBurst = 1
	}
	c.Backend.Paths.Orders = orDefault(normalizePath(c.Backend.Paths.Orders), "/api/utiles/orders")
	c.Backend.Paths.Products = orDefault(normalizePath(c.Backend.Paths.Products), "/api/utiles/products")
	c.Backend.Paths.OrderStatus = orDefault(normalizePath(c.Backend.Paths.OrderStatus), "/api/order")
	c.Backend.Paths.PushRegister = orDefault(normalizePath(c.Backend.Paths.PushRegister), "/api/push/register")

	c.Realtime.URL = strings.TrimSpace(c.Realtime.URL)
	c.Realtime.JoinEvent = orDefault(strings.TrimSpace(c.Realtime.JoinEvent), defaultJoinEvent)
	if c.Realtime.ReconnectDelay <= 0 {
		c.Realtime.ReconnectDelay = defaultReconnectDelay
	}
	if c.Realtime.HandshakeTimeout <= 0 {
		c.Realtime.HandshakeTimeout = 10 * time.Second
	}
	if c.Realtime.SubscriberBuffer <= 0 {
		c.Realtime.SubscriberBuffer = defaultSubscriberBuffer
	}

	c.Dashboard.Period = orDefault(normalizeToken(c.Dashboard.Period), defaultPeriod)
	c.Dashboard.Locale = orDefault(normalizeToken(c.Dashboard.Locale), envcfg.DefaultLocale)

	prefs := strings.TrimSpace(c.Device.PrefsPath)
	if prefs == "" {
		prefs = defaultPrefsPath
	}
	c.Device.PrefsPath = filepath.Clean(prefs)
	c.Device.DefaultName = strings.TrimSpace(c.Device.DefaultName)

	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = orDefault(strings.TrimSpace(c.Telemetry.ServiceName), defaultServiceName)
	return nil
}

// Validate performs semantic validation on the configuration.
func (c AppConfig) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("environment must be one of dev, staging, prod")
	}

	parsed, err := url.Parse(c.Backend.BaseURL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("backend baseURL must be an absolute URL")
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("backend baseURL scheme must be http or https")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be >0")
	}
	if c.Backend.RateLimit < 0 {
		return fmt.Errorf("backend rateLimit must be >= 0")
	}
	if c.Backend.RateBurst < 0 {
		return fmt.Errorf("backend rateBurst must be >= 0")
	}

	if c.Realtime.ReconnectAttempts.Resolve() <= 0 {
		return fmt.Errorf("realtime reconnectAttempts must be >0")
	}
	if c.Realtime.ReconnectDelay <= 0 {
		return fmt.Errorf("realtime reconnectDelay must be >0")
	}
	if c.Realtime.SubscriberBuffer <= 0 {
		return fmt.Errorf("realtime subscriberBuffer must be >0")
	}
	if c.Realtime.URL != "" {
		socket, err := url.Parse(c.Realtime.URL)
		if err != nil || socket.Host == "" {
			return fmt.Errorf("realtime url must be an absolute URL")
		}
	}

	switch c.Dashboard.Period {
	case "week", "month", "year":
	default:
		return fmt.Errorf("dashboard period must be one of week, month, year")
	}
	switch c.Dashboard.Locale {
	case "es", "en":
	default:
		return fmt.Errorf("dashboard locale must be one of es, en")
	}

	if c.Device.PrefsPath == "" {
		return fmt.Errorf("device prefsPath required")
	}
	if c.Telemetry.ServiceName == "" {
		return fmt.Errorf("telemetry serviceName required")
	}
	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := strings.TrimSpace(path)
	candidate = filepath.Clean(candidate)

	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, fmt.Errorf("open app config: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
