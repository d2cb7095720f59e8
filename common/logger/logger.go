package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls the global logger
type Options struct {
	Level  string
	Format string
}

// Setup configures the global zerolog logger and returns the level in effect
func Setup(opts Options) zerolog.Level {
	return SetupWriter(os.Stderr, opts)
}

// SetupWriter is Setup with an explicit destination
func SetupWriter(w io.Writer, opts Options) zerolog.Level {
	level := ParseLevel(opts.Level)
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if strings.EqualFold(opts.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Str("service", "photo-storage-gateway").Logger()
	return level
}

// ParseLevel falls back to info for unknown or empty levels
func ParseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}
