package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultService = "splitledger"

// Config holds logger configuration.
type Config struct {
	Level  string // trace, debug, info, warn, error
	Format string // json, console
	// Output defaults to stdout.
	Output io.Writer
	// Service defaults to "splitledger".
	Service string
}

// New builds the root zerolog logger. Components derive children with
// Component so every line carries where it came from.
func New(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	service := cfg.Service
	if service == "" {
		service = defaultService
	}

	return zerolog.New(output).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

// Component returns a child logger tagged with component=name.
func Component(parent zerolog.Logger, name string) zerolog.Logger {
	return parent.With().Str("component", name).Logger()
}

// parseLevel falls back to info for empty or unknown levels.
func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
