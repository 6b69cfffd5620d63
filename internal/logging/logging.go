// Package logging configures the structured logger shared by the CLI,
// the synchronizer and the search orchestrator.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls where and how verbosely turbogrep logs.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// FilePath is the path to the log file. Empty disables file logging.
	FilePath string
	// MaxSizeMB is the maximum size in MB before rotation.
	MaxSizeMB int
	// MaxFiles is the maximum number of rotated files to keep.
	MaxFiles int
	// WriteToStderr also tees output to stderr.
	WriteToStderr bool
}

// DefaultConfig returns warn-level logging to the default log file, with
// no stderr tee — matching the reference implementation's "quiet unless
// asked" behavior (vprintln-gated verbose output).
func DefaultConfig() Config {
	return Config{
		Level:         "warn",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}
}

// VerboseConfig returns debug-level logging teed to stderr, selected by
// FromEnv when TG_VERBOSE or TURBOGREP_VERBOSE is "1" or "true".
func VerboseConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	cfg.WriteToStderr = true
	return cfg
}

// Setup builds a logger from cfg and returns a cleanup func that flushes
// and closes the underlying file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	if cfg.FilePath == "" {
		handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
		return slog.New(handler), func() {}, nil
	}

	if err := EnsureLogDir(); err != nil {
		return nil, nil, err
	}

	writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	var output io.Writer = writer
	if cfg.WriteToStderr {
		output = io.MultiWriter(writer, os.Stderr)
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
	logger := slog.New(handler)

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}

	return logger, cleanup, nil
}

// FromEnv builds a Config from TG_VERBOSE/TURBOGREP_VERBOSE. Only "1" or
// "true" (case-insensitive) turn verbose mode on; anything else,
// including "false", is treated as unset.
func FromEnv() Config {
	if isVerbose(os.Getenv("TG_VERBOSE")) || isVerbose(os.Getenv("TURBOGREP_VERBOSE")) {
		return VerboseConfig()
	}
	return DefaultConfig()
}

func isVerbose(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
