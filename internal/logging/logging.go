package logging

import (
	"io"
	"log/slog"
	"os"
)

// Nop returns a logger that discards everything. Used by tests and as the
// default when a component is constructed without an explicit logger.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Stderr returns a text logger writing to stderr. The stdio protocol owns
// stdout, so all diagnostics go to stderr.
func Stderr(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// FileLogger wraps a JSON file logger with its close handle.
type FileLogger struct {
	Logger *slog.Logger
	Close  func() error
	Path   string
}

// NewFileLogger opens an append-only JSON log at path. On failure the
// returned logger is a Nop so callers can use it unconditionally.
func NewFileLogger(path string, debug bool) (FileLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return FileLogger{Logger: Nop(), Close: func() error { return nil }}, err
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return FileLogger{
		Logger: slog.New(handler),
		Close:  file.Close,
		Path:   path,
	}, nil
}
