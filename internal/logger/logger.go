package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = zerolog.New(consoleWriter(os.Stderr)).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()
)

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
}

// Init configures the process-wide logger. Format is "text" (console
// writer) or "json" (one JSON object per line).
func Init(level, format string) {
	mu.Lock()
	defer mu.Unlock()

	var out io.Writer = os.Stderr
	if strings.ToLower(format) != "json" {
		out = consoleWriter(os.Stderr)
	}
	log = zerolog.New(out).
		Level(parseLevel(level)).
		With().Timestamp().Logger()
}

func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	log = log.Level(parseLevel(level))
}

// SetOutput redirects log output; used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log = log.Output(w)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// With starts a structured child logger off the process logger. The HTTP
// layer uses this to bind request ids into per-request loggers.
func With() zerolog.Context {
	mu.RLock()
	defer mu.RUnlock()
	return log.With()
}

func Debug(format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()
	log.Debug().Msgf(format, v...)
}

func Info(format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()
	log.Info().Msgf(format, v...)
}

func Warn(format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()
	log.Warn().Msgf(format, v...)
}

func Error(format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()
	log.Error().Msgf(format, v...)
}
