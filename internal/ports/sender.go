package ports

import "github.com/bft-labs/tracebeacon/internal/domain"

// Sender accepts finished events on behalf of the aggregator.
// Implementations decide when and how events leave the process.
type Sender interface {
	// Send hands over one finished event. The sender owns the event afterwards.
	Send(event domain.Event)

	// Flush ships whatever is queued regardless of batching thresholds.
	Flush()
}

// MaxLengther is implemented by senders with a payload size ceiling.
// The aggregator uses it to truncate error messages.
type MaxLengther interface {
	MaxLength() int
}

// Disabler is implemented by senders that can switch themselves off.
type Disabler interface {
	IsDisabled() bool
}

// SendObserver is implemented by senders that report each shipped batch.
type SendObserver interface {
	// OnSend registers fn to be called with the size of every batch handed
	// to the transport. fn must not call back into the sender.
	OnSend(fn func(events int))
}
