package ports

import "time"

// IDGenerator produces unique identifiers shaped like UUID v4 strings.
type IDGenerator interface {
	NewID() string
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() string

// NewID calls f.
func (f IDGeneratorFunc) NewID() string { return f() }

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Scheduler runs work off the caller's path.
type Scheduler interface {
	Schedule(fn func())
}

// SenderMetrics receives batch sender counters.
type SenderMetrics interface {
	BatchSent(events int)
	EventsDropped(events int)
	SenderDisabled()
}
