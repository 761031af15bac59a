package ports

import "github.com/bft-labs/tracebeacon/pkg/log"

// Logger is the structured logger used throughout the application layer.
type Logger = log.Logger

// Field is a structured log field.
type Field = log.Field

// Field constructors re-exported for adapters and the application layer.
var (
	String   = log.String
	Int      = log.Int
	Int64    = log.Int64
	Bool     = log.Bool
	Duration = log.Duration
	Err      = log.Err
	Any      = log.Any
)
