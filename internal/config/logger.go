package config

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// NewLogger creates a zerolog console logger writing to out at the given level.
// An empty or invalid level falls back to info; the invalid case is logged.
func NewLogger(out io.Writer, level string) zerolog.Logger {
	noColor := true
	if f, ok := out.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:     out,
		NoColor: noColor,
	}).With().Timestamp().Logger()

	parsed := zerolog.InfoLevel
	if level != "" {
		if l, err := zerolog.ParseLevel(level); err == nil {
			parsed = l
		} else {
			logger.Warn().Str("invalid_level", level).Msg("Invalid log level, using default 'info'")
		}
	}

	return logger.Level(parsed)
}
