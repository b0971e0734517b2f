package cli

import (
	"io"
	"os"

	"github.com/grovetools/tabd/logging"
	"github.com/sirupsen/logrus"
)

// LoggerOption configures a logger built by NewLogger.
type LoggerOption func(*logrus.Logger)

// WithOutput sets the logger output
func WithOutput(w io.Writer) LoggerOption {
	return func(l *logrus.Logger) {
		l.SetOutput(w)
	}
}

// WithLevel sets the log level
func WithLevel(level logrus.Level) LoggerOption {
	return func(l *logrus.Logger) {
		l.SetLevel(level)
	}
}

// NewLogger creates a standalone logger for interactive commands, whose
// stdout belongs to the user. It writes to stderr at warn level by default,
// using the same text format as the component loggers.
func NewLogger(component string, opts ...LoggerOption) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	logger.SetFormatter(&logging.TextFormatter{})

	for _, opt := range opts {
		opt(logger)
	}

	return logger.WithField("component", component)
}
