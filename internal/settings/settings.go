// Package settings persists the small amount of durable user
// configuration turbogrep needs: the preferred turbopuffer region and
// embedding provider, kept intentionally small rather than elaborated
// into a full config system.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Settings is the on-disk shape of the config file.
type Settings struct {
	TurbopufferRegion string `json:"turbopuffer_region,omitempty"`
	EmbeddingProvider string `json:"embedding_provider,omitempty"`
}

// Path returns the settings file location: $XDG_CONFIG_HOME/turbogrep/config.json,
// falling back to ~/.config/turbogrep/config.json.
func Path() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "turbogrep", "config.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "turbogrep", "config.json")
	}
	return filepath.Join(home, ".config", "turbogrep", "config.json")
}

// Load reads the settings file, returning zero-value Settings if it
// doesn't exist yet.
func Load() (Settings, error) {
	path := Path()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, err
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Modify reads the settings file, applies fn, and writes the result
// back, guarded by a file lock so concurrent CLI invocations never
// interleave writes.
func Modify(fn func(*Settings)) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	s, err := Load()
	if err != nil {
		return err
	}
	fn(&s)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Region returns the configured turbopuffer region, or the default
// when unset.
func (s Settings) Region() string {
	if s.TurbopufferRegion != "" {
		return s.TurbopufferRegion
	}
	return "gcp-us-east4"
}

// Provider returns the configured embedding provider, or "voyage" when
// unset.
func (s Settings) Provider() string {
	if s.EmbeddingProvider != "" {
		return s.EmbeddingProvider
	}
	return "voyage"
}
