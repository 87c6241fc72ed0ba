// Package shared holds helpers used by every stylx package.
package shared

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/natefinch/lumberjack"
)

// ClientIDPrefix is the prefix of every generated job correlation id.
const ClientIDPrefix = "client_"

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewFileLogger creates a [log.Logger] that writes to a size-rotated file.
//
// Used by the TUI so log lines do not corrupt the rendered screen.
func NewFileLogger(c LoggingConfig) (*log.Logger, io.Closer, error) {
	if c.File == "" {
		return nil, nil, fmt.Errorf("%w: logging.file is empty", ErrInvalidConfig)
	}
	if err := os.MkdirAll(filepath.Dir(c.File), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
	}
	logger := log.NewWithOptions(w, log.Options{ReportTimestamp: true, ReportCaller: true, Formatter: log.LogfmtFormatter})
	SetLogLevel(logger, ParseLogLevel(c.Level))
	return logger, w, nil
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// ParseLogLevel maps a config level name to a [log.Level], falling back to info.
func ParseLogLevel(s string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// NewClientID returns a time-ordered job correlation id ("client_" + UUIDv7).
func NewClientID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return ClientIDPrefix + uuid.New().String()
	}
	return ClientIDPrefix + id.String()
}
