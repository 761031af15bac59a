package domain

import "errors"

// Domain errors represent error conditions in the tracebeacon domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("tracebeacon: invalid configuration")

	// ErrTransportUnavailable is returned when a transport handle cannot be created.
	// Senders treat it as permanent and stop sending.
	ErrTransportUnavailable = errors.New("tracebeacon: transport unavailable")

	// ErrBeaconRejected is reported when the beacon answers with a non-2xx status.
	ErrBeaconRejected = errors.New("tracebeacon: beacon rejected batch")

	// ErrMalformedBatch is returned when an incoming batch cannot be decoded.
	ErrMalformedBatch = errors.New("tracebeacon: malformed batch")

	// ErrNoTrace is returned when an operation needs a current trace and none exists.
	ErrNoTrace = errors.New("tracebeacon: no current trace")
)
