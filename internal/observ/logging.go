package observ

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logMu  sync.RWMutex
	logger = zerolog.New(os.Stdout)
)

// Init configures the process logger. Pretty output goes to stderr for humans,
// otherwise one JSON object per line is written to stdout.
func Init(level string, pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var l zerolog.Logger
	if pretty {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		l = zerolog.New(os.Stdout)
	}

	logMu.Lock()
	logger = l
	logMu.Unlock()
}

// SetOutput redirects the logger, keeping JSON output, e.g. to stderr when stdout
// carries command results.
func SetOutput(w io.Writer) {
	logMu.Lock()
	logger = logger.Output(w)
	logMu.Unlock()
}

// Logger returns the configured logger for callers that want zerolog directly.
func Logger() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

// Log writes a single structured event line at info level.
func Log(event string, kv map[string]any) {
	l := Logger()
	write(l.Info(), event, kv)
}

// Warn is Log at warn level, used for rejected or degraded outcomes.
func Warn(event string, kv map[string]any) {
	l := Logger()
	write(l.Warn(), event, kv)
}

func write(e *zerolog.Event, event string, kv map[string]any) {
	e.Str("ts", time.Now().UTC().Format(time.RFC3339Nano)).
		Str("event", event).
		Fields(kv).
		Send()
}
