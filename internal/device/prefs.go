// Package device persists per-device preferences and registers the device for push
// notifications.
package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// FallbackName is used when neither configuration nor the host supplies a name.
const FallbackName = "Dispositivo"

type prefsFile struct {
	DeviceName string `yaml:"deviceName,omitempty"`
	PushToken  string `yaml:"pushToken,omitempty"`
}

// Prefs is a small YAML file holding the device name and the last registered push
// token. Writes replace the file atomically.
type Prefs struct {
	path        string
	defaultName string
	hostname    func() (string, error)

	mu   sync.Mutex
	data prefsFile
}

// PrefsOption customises Prefs.
type PrefsOption func(*Prefs)

// WithDefaultName sets the name used before one was stored.
func WithDefaultName(name string) PrefsOption {
	return func(p *Prefs) { p.defaultName = strings.TrimSpace(name) }
}

// WithHostname replaces os.Hostname.
func WithHostname(fn func() (string, error)) PrefsOption {
	return func(p *Prefs) {
		if fn != nil {
			p.hostname = fn
		}
	}
}

// OpenPrefs loads the preferences at path. A missing file is an empty store.
func OpenPrefs(path string, opts ...PrefsOption) (*Prefs, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("prefs path required")
	}
	p := &Prefs{path: filepath.Clean(path), hostname: os.Hostname}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	raw, err := os.ReadFile(p.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return p, nil
	case err != nil:
		return nil, fmt.Errorf("read prefs %s: %w", p.path, err)
	}
	if err := yaml.Unmarshal(raw, &p.data); err != nil {
		return nil, fmt.Errorf("decode prefs %s: %w", p.path, err)
	}
	return p, nil
}

// Path returns the backing file.
func (p *Prefs) Path() string { return p.path }

// DeviceName returns the stored name. The first call without one resolves a default
// (configured name, hostname, FallbackName) and stores it. The name is returned even
// when storing fails.
func (p *Prefs) DeviceName() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data.DeviceName != "" {
		return p.data.DeviceName, nil
	}
	name := p.defaultName
	if name == "" {
		if host, err := p.hostname(); err == nil {
			name = strings.TrimSpace(host)
		}
	}
	if name == "" {
		name = FallbackName
	}
	next := p.data
	next.DeviceName = name
	if err := p.save(next); err != nil {
		return name, err
	}
	return name, nil
}

// SetDeviceName stores a new device name.
func (p *Prefs) SetDeviceName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("device name required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.data
	next.DeviceName = name
	return p.save(next)
}

// PushToken returns the last successfully registered token, or "".
func (p *Prefs) PushToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data.PushToken
}

// SetPushToken stores the registered token.
func (p *Prefs) SetPushToken(token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.data
	next.PushToken = strings.TrimSpace(token)
	return p.save(next)
}

// save writes next and adopts it only when the write succeeded. Callers hold mu.
func (p *Prefs) save(next prefsFile) error {
	raw, err := yaml.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create prefs dir %s: %w", dir, err)
		}
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write temp prefs %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename prefs %s: %w", p.path, err)
	}
	p.data = next
	return nil
}
