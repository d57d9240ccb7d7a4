// Package logging builds the process slog.Logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects the level and output format.
type Config struct {
	Level  string
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New returns a logger writing text or JSON records at the configured level.
// Unknown levels fall back to info.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(out, opts))
	}

	return slog.New(slog.NewTextHandler(out, opts))
}

// ParseLevel maps debug, info, warn and error onto slog levels.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}

	return level
}
