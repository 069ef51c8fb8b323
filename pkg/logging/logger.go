package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// Logger wraps the charmbracelet logger so packages depend on our type,
// not on the library directly.
type Logger struct {
	*log.Logger
}

// New builds a logger for the given component. DEBUG=1 enables debug
// level plus caller and timestamp reporting.
func New(component string) *Logger {
	base := log.New(os.Stderr)

	if os.Getenv("DEBUG") == "1" {
		base = log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			Prefix:          "imgsmith",
		})
		base.SetLevel(log.DebugLevel)
	} else {
		base.SetLevel(log.InfoLevel)
	}

	if component != "" {
		base = base.With("component", component)
	}

	return &Logger{Logger: base}
}

// NewTestLogger returns a quiet logger for use in tests.
func NewTestLogger() *Logger {
	base := log.New(os.Stderr)
	base.SetLevel(log.FatalLevel)
	return &Logger{Logger: base}
}

// With returns a sub-logger carrying the given key/value pairs.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(keyvals...)}
}

// BaseLogger returns the underlying *log.Logger.
func (l *Logger) BaseLogger() *log.Logger {
	return l.Logger
}
