package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grovetools/tabd/config"
	"github.com/grovetools/tabd/pkg/paths"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

// stderr is the terminal side shared by every component logger, so one
// SetStderr call moves all of them.
var stderr stderrSink

type stderrSink struct {
	target atomic.Pointer[io.Writer]
}

func (s *stderrSink) Write(p []byte) (int, error) {
	if w := s.target.Load(); w != nil {
		return (*w).Write(p)
	}
	return os.Stderr.Write(p)
}

// SetStderr redirects the terminal side of all component loggers. nil
// restores os.Stderr.
func SetStderr(w io.Writer) {
	if w == nil {
		stderr.target.Store(nil)
		return
	}
	stderr.target.Store(&w)
}

// Stderr returns the shared terminal sink component loggers write to.
func Stderr() io.Writer { return &stderr }

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	var logCfg Config
	if cfg, err := config.LoadDefault(); err == nil {
		// Use UnmarshalExtension to safely decode the logging part
		if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
			logrus.Warnf("Failed to parse 'logging' config: %v", err)
		}
	}

	entry := newLoggerWithConfig(component, logCfg)
	loggers[component] = entry
	return entry
}

// newLoggerWithConfig builds a logger from an explicit configuration.
func newLoggerWithConfig(component string, logCfg Config) *logrus.Entry {
	logger := logrus.New()

	// Configure Level
	levelStr := "info"
	if os.Getenv("TABD_LOG_LEVEL") != "" {
		levelStr = os.Getenv("TABD_LOG_LEVEL")
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Configure Caller Reporting
	if os.Getenv("TABD_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	// Configure Formatter
	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format})
	}

	var writers []io.Writer

	// Configure File Sink
	var logFilePath string
	if logCfg.File.Enabled && logCfg.File.Path != "" {
		logFilePath = expandPath(logCfg.File.Path)
	} else if logCfg.File.Enabled {
		if dir := paths.LogDir(); dir != "" {
			dateStr := time.Now().Format("2006-01-02")
			logFilePath = filepath.Join(dir, fmt.Sprintf("%s-%s.log", component, dateStr))
		}
	}

	if logFilePath != "" {
		dir := filepath.Dir(logFilePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Warnf("Failed to create log directory %s: %v", dir, err)
		} else {
			file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err == nil {
				writers = append(writers, file)
			} else {
				logger.Warnf("Failed to open log file %s: %v", logFilePath, err)
			}
		}
	}

	if shouldLogToStderr(logCfg.Format.StructuredToStderr, logger.GetLevel()) {
		writers = append(writers, Stderr())
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return logger.WithField("component", component)
}

// shouldLogToStderr resolves the structured_to_stderr mode.
// "auto" logs to stderr when debugging or when stderr is not a terminal; the
// daemon therefore logs when run under a supervisor, and interactive tabs stay quiet.
func shouldLogToStderr(mode string, level logrus.Level) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	isDebug := os.Getenv("TABD_DEBUG") == "1" || level >= logrus.DebugLevel
	isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	return isDebug || !isInteractive
}

// Reset drops all cached component loggers. The next NewLogger call re-reads
// configuration, which is how a config reload changes log levels.
func Reset() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	loggers = make(map[string]*logrus.Entry)
}

// SetLevel changes the level of every logger created so far.
func SetLevel(level logrus.Level) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, entry := range loggers {
		entry.Logger.SetLevel(level)
	}
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// ApplyConfig re-reads the logging section of a reloaded configuration and
// changes the level of existing loggers. TABD_LOG_LEVEL still takes precedence.
func ApplyConfig(cfg *config.Config) error {
	if os.Getenv("TABD_LOG_LEVEL") != "" {
		return nil
	}
	var logCfg Config
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
		return err
	}
	if logCfg.Level == "" {
		return nil
	}
	level, err := logrus.ParseLevel(logCfg.Level)
	if err != nil {
		return err
	}
	SetLevel(level)
	return nil
}
