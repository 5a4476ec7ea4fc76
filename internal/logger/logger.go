// Package logger configures the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global logger level and output. Development gets a
// human-readable console writer on stderr; every other env logs JSON.
// Valid levels: trace, debug, info, warn, error, fatal, panic.
func Init(level, env string) {
	var out io.Writer = os.Stderr
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	log.Logger = New(out, level)
}

// New returns a timestamped logger writing to out at the given level.
// Unparseable levels fall back to info.
func New(out io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
