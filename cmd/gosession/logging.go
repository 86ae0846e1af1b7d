package main

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

func newLogger(out io.Writer, level zerolog.Level, format string) zerolog.Logger {
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "gosession").Logger()
}
