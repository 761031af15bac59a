package cliconfig

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/tracebeacon/pkg/log"
)

// Logger returns a console logger on stderr at the given level.
func Logger(level string) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(log.ParseLevel(level)).
		With().Timestamp().Logger()
}
