// Package logging configures the process-wide zerolog logger.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"binance-trading-bot/config"
)

// Setup builds the root logger from configuration. Components derive their
// own loggers from the returned value via With().Str("component", ...).
func Setup(cfg config.LoggingConfig) zerolog.Logger {
	level := parseLevel(cfg.Level)

	var out *os.File
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			out = os.Stdout
		} else {
			out = f
		}
	}

	var logger zerolog.Logger
	if cfg.JSONFormat {
		logger = zerolog.New(out)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
