package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory:
// $XDG_STATE_HOME/turbogrep/logs, or ~/.turbogrep/logs when unset.
func DefaultLogDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "turbogrep", "logs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".turbogrep", "logs")
	}
	return filepath.Join(home, ".turbogrep", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "turbogrep.log")
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	return os.MkdirAll(DefaultLogDir(), 0o755)
}
