// Package logger provides structured logging on zerolog with a
// process-wide default logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogConfig holds logger configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string `json:"level" mapstructure:"level"`

	// Format selects console or json output.
	Format string `json:"format" mapstructure:"format"`

	// File appends a copy of every entry to the given path when set.
	File string `json:"file" mapstructure:"file"`
}

var (
	mu           sync.RWMutex
	globalLogger zerolog.Logger
	logFile      *os.File
	initialized  bool
)

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// buildOutput assembles the writer stack for the configuration. The
// returned file, if any, stays open until Close.
func buildOutput(config LogConfig) (io.Writer, *os.File, error) {
	var base io.Writer = os.Stderr
	if strings.ToLower(config.Format) == "console" {
		base = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	if config.File == "" {
		return base, nil, nil
	}

	f, err := os.OpenFile(config.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", config.File, err)
	}
	return io.MultiWriter(base, f), f, nil
}

// Init configures the global logger. Calling it again reconfigures;
// the previous log file, if any, is left to Close.
func Init(config LogConfig) error {
	mu.Lock()
	defer mu.Unlock()

	output, f, err := buildOutput(config)
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(parseLevel(config.Level))

	logFile = f
	globalLogger = zerolog.New(output).With().Timestamp().Caller().Logger()
	initialized = true
	return nil
}

// Get returns the global logger. Before Init it returns a plain stderr
// logger so early callers never panic.
func Get() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !initialized {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		return &l
	}
	return &globalLogger
}

// Component returns a logger tagged with a component name. Subsystems
// (provider, runner, gateway) use it to scope their output.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Close closes the log file if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// Debug returns a debug level event on the global logger.
func Debug() *zerolog.Event { return Get().Debug() }

// Info returns an info level event on the global logger.
func Info() *zerolog.Event { return Get().Info() }

// Warn returns a warn level event on the global logger.
func Warn() *zerolog.Event { return Get().Warn() }

// Error returns an error level event on the global logger.
func Error() *zerolog.Event { return Get().Error() }
