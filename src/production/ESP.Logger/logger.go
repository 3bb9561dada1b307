package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	config "gitlab.com/maplesense1/esp.sim_module/src/production/ESP.Config"
)

// Logger wraps zerolog.Logger with additional functionality
type Logger struct {
	*zerolog.Logger
}

// NewLogger creates a new logger based on configuration.
// The returned logger also becomes the zerolog global logger. The closer
// releases the log file when Output is a path and is a no-op otherwise.
func NewLogger(cfg *config.LoggingConfig) (*Logger, io.Closer, error) {
	out, err := outputWriter(cfg.Output)
	if err != nil {
		return nil, nil, err
	}
	l := New(out, cfg)
	SetGlobalLogger(l)
	return l, out, nil
}

// New creates a logger writing to w
func New(w io.Writer, cfg *config.LoggingConfig) *Logger {
	if s, ok := w.(stdStream); ok {
		w = s.Writer
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var zl zerolog.Logger
	if cfg.Format == "json" {
		zl = zerolog.New(w).With().Timestamp().Logger()
	} else {
		zl = zerolog.New(zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    w != os.Stdout && w != os.Stderr,
		}).With().Timestamp().Logger()
	}
	zl = zl.Level(level)

	if cfg.EnableCaller {
		zl = zl.With().Caller().Logger()
	}

	return &Logger{&zl}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	zl := zerolog.Nop()
	return &Logger{&zl}
}

// stdStream keeps os.Stdout and os.Stderr open when the logger is closed
type stdStream struct {
	io.Writer
}

func (stdStream) Close() error { return nil }

func outputWriter(output string) (io.WriteCloser, error) {
	switch output {
	case "", "stdout":
		return stdStream{os.Stdout}, nil
	case "stderr":
		return stdStream{os.Stderr}, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		return f, nil
	}
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	logger := l.Logger.With().Interface(key, value).Logger()
	return &Logger{&logger}
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *Logger {
	logger := l.Logger.With().Err(err).Logger()
	return &Logger{&logger}
}

// WithComponent adds a component name to the logger
func (l *Logger) WithComponent(component string) *Logger {
	logger := l.Logger.With().Str("component", component).Logger()
	return &Logger{&logger}
}

// ErrorWithError logs an error message with error
func (l *Logger) ErrorWithError(err error, msg string) {
	l.Logger.Error().Err(err).Msg(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.Logger.Error().Msg(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.Logger.Warn().Msg(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.Logger.Info().Msg(msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.Logger.Debug().Msg(msg)
}

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger *Logger) {
	log.Logger = *logger.Logger
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	return &Logger{&log.Logger}
}
