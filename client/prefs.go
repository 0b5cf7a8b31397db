package client

import (
	"os"
	"path/filepath"
	"sync"

	"PChat/tools/errs"

	"gopkg.in/yaml.v3"
)

// Prefs are the user's local settings, persisted as YAML.
type Prefs struct {
	SoundEnabled bool `yaml:"sound_enabled"`

	mu   sync.Mutex
	path string
}

// LoadPrefs reads path. A missing file yields defaults (sound off); an empty
// path keeps the prefs in memory only.
func LoadPrefs(path string) (*Prefs, error) {
	p := &Prefs{path: path}
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "read prefs", "path", path)
	}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return nil, errs.WrapMsg(err, "decode prefs", "path", path)
	}
	return p, nil
}

func (p *Prefs) Sound() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.SoundEnabled
}

// Toggle flips the sound flag, saves, and returns the new value.
func (p *Prefs) Toggle() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SoundEnabled = !p.SoundEnabled
	return p.SoundEnabled, p.save()
}

func (p *Prefs) Save() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.save()
}

func (p *Prefs) save() error {
	if p.path == "" {
		return nil
	}
	raw, err := yaml.Marshal(p)
	if err != nil {
		return errs.WrapMsg(err, "encode prefs")
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return errs.WrapMsg(err, "create prefs dir", "path", p.path)
	}
	if err := os.WriteFile(p.path, raw, 0o600); err != nil {
		return errs.WrapMsg(err, "write prefs", "path", p.path)
	}
	return nil
}
