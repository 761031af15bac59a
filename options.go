package tracebeacon

import (
	"github.com/bft-labs/tracebeacon/internal/app"
	"github.com/bft-labs/tracebeacon/internal/domain"
	"github.com/bft-labs/tracebeacon/internal/ports"
	"github.com/bft-labs/tracebeacon/pkg/log"
)

// Re-export types so callers never need the internal packages.
type (
	// Event is a flat map of event fields.
	Event = domain.Event

	// EventType is the category of an event.
	EventType = domain.EventType

	ActionOptions         = app.ActionOptions
	SpanOptions           = app.SpanOptions
	EndOptions            = app.EndOptions
	Span                  = app.Span
	ComponentReadyOptions = app.ComponentReadyOptions
	DataRequestOptions    = app.DataRequestOptions
	DataRequest           = app.DataRequest
	EndDataRequestOptions = app.EndDataRequestOptions

	// Logger is the interface for structured logging.
	Logger = log.Logger

	// Transport creates one request handle per batch.
	Transport = ports.Transport

	// TransportHandle is a single outgoing beacon request.
	TransportHandle = ports.TransportHandle

	// HTTPClient is satisfied by *http.Client.
	HTTPClient = ports.HTTPClient

	// IDGenerator produces event, trace and tab ids.
	IDGenerator = ports.IDGenerator

	// Clock supplies the current time.
	Clock = ports.Clock

	// SenderMetrics receives batch sender counters.
	SenderMetrics = ports.SenderMetrics
)

// Option configures optional behavior of a Client.
type Option func(*options)

type options struct {
	logger     ports.Logger
	transport  ports.Transport
	httpClient ports.HTTPClient
	ids        ports.IDGenerator
	clock      ports.Clock
	metrics    ports.SenderMetrics
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTransport replaces the HTTP transport entirely.
func WithTransport(transport Transport) Option {
	return func(o *options) { o.transport = transport }
}

// WithHTTPClient sets the client used by the default HTTP transport.
// If not provided, a client with Config.HTTPTimeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) { o.httpClient = client }
}

// WithIDGenerator sets the source of ids. Default: random UUIDs.
func WithIDGenerator(ids IDGenerator) Option {
	return func(o *options) { o.ids = ids }
}

// WithClock sets the time source.
func WithClock(clock Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithMetrics sets the sink for sender counters, e.g. the Prometheus
// collector returned by NewMetrics.
func WithMetrics(metrics SenderMetrics) Option {
	return func(o *options) { o.metrics = metrics }
}
