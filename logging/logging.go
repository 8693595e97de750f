// Package logging configures zerolog for the blockdrop binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
	FormatPretty  = "pretty"
)

type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NewWriter wraps w for the given format.
func NewWriter(w io.Writer, format string) (io.Writer, error) {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return w, nil
	case FormatConsole:
		return zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}, nil
	case FormatPretty:
		return NewPrettyJSONWriter(w), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

// Setup sets the global zerolog level and the package-level logger used via
// github.com/rs/zerolog/log, and returns that logger.
func Setup(cfg Config, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("log level: %w", err)
		}
		level = l
	}
	out, err := NewWriter(w, cfg.Format)
	if err != nil {
		return zerolog.Logger{}, err
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger, nil
}
