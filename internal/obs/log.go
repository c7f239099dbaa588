package obs

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogConfig selects level and format of the process logger.
type LogConfig struct {
	Level  string
	Format string // "json" (default) or "console"
}

var (
	loggerMu sync.RWMutex
	logger   = newLogger(os.Stdout, LogConfig{})
)

// Logger returns the shared structured logger used across the service.
func Logger() *zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	l := logger
	return &l
}

// InitLogger replaces the shared logger according to cfg.
func InitLogger(cfg LogConfig) {
	SetLogger(newLogger(os.Stdout, cfg))
}

// SetLogger swaps the shared logger. Tests use it to capture output.
func SetLogger(l zerolog.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// NewJSONLogger builds a JSON logger writing to w, used by tests and the audit sink.
func NewJSONLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

func newLogger(w io.Writer, cfg LogConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if strings.EqualFold(cfg.Format, "console") || strings.EqualFold(cfg.Format, "pretty") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
