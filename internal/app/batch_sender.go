package app

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/atomic"

	"github.com/bft-labs/tracebeacon/internal/domain"
	"github.com/bft-labs/tracebeacon/internal/ports"
	"github.com/bft-labs/tracebeacon/pkg/log"
)

// DefaultKeysToIgnore are event fields that must never reach the wire.
var DefaultKeysToIgnore = []string{domain.FieldComponent, "component", domain.FieldWhenLongerThan}

// BatchSenderConfig contains configuration for the batch sender.
type BatchSenderConfig struct {
	// BeaconURL is the collection endpoint.
	BeaconURL string

	// Method is http.MethodPost (count batching, JSON body) or
	// http.MethodGet (length batching, query string).
	Method string

	// KeysToIgnore lists fields stripped from every event. Globs are allowed.
	KeysToIgnore []string

	MinNumberOfEvents int
	MaxNumberOfEvents int

	// MaxPayloadChars is the character ceiling advertised by a POST sender,
	// used by the aggregator to truncate error messages. 0 disables it.
	MaxPayloadChars int

	// MinLength and MaxLength bound the URL length of GET batches.
	MinLength int
	MaxLength int

	// DisableSending starts the sender switched off; events are purged.
	DisableSending bool

	// SendSync runs the transport call on the caller's goroutine, under the
	// sender lock. By default it is handed to the scheduler.
	SendSync bool
}

// DefaultBatchSenderConfig returns the canonical POST configuration.
func DefaultBatchSenderConfig() BatchSenderConfig {
	return BatchSenderConfig{
		Method:            http.MethodPost,
		KeysToIgnore:      append([]string(nil), DefaultKeysToIgnore...),
		MinNumberOfEvents: DefaultMinNumberOfEvents,
		MaxNumberOfEvents: DefaultMaxNumberOfEvents,
		MinLength:         DefaultMinLength,
		MaxLength:         DefaultMaxLength,
	}
}

// setDefaults fills zero values.
func (c *BatchSenderConfig) setDefaults() {
	c.Method = strings.ToUpper(c.Method)
	if c.Method == "" {
		c.Method = http.MethodPost
	}
	if c.MinNumberOfEvents <= 0 {
		c.MinNumberOfEvents = DefaultMinNumberOfEvents
	}
	if c.MaxNumberOfEvents <= 0 {
		c.MaxNumberOfEvents = DefaultMaxNumberOfEvents
	}
	if c.MinLength <= 0 {
		c.MinLength = DefaultMinLength
	}
	if c.MaxLength <= 0 {
		c.MaxLength = DefaultMaxLength
	}
	if c.MinNumberOfEvents > c.MaxNumberOfEvents {
		c.MinNumberOfEvents = c.MaxNumberOfEvents
	}
	if c.MinLength > c.MaxLength {
		c.MinLength = c.MaxLength
	}
}

// BatchSender buffers events and ships them to the beacon in batches.
// After the first transport failure it stops sending for good and discards
// everything it is given.
type BatchSender struct {
	config    BatchSenderConfig
	transport ports.Transport
	policy    BatchPolicy
	scheduler ports.Scheduler
	metrics   ports.SenderMetrics
	logger    ports.Logger

	mu       sync.Mutex
	queue    []domain.Event
	onSend   []func(events int)
	disabled atomic.Bool
}

// SenderOption configures optional behavior of a BatchSender.
type SenderOption func(*BatchSender)

// WithSenderLogger sets the logger.
func WithSenderLogger(logger ports.Logger) SenderOption {
	return func(s *BatchSender) { s.logger = logger }
}

// WithScheduler sets where deferred sends run.
func WithScheduler(scheduler ports.Scheduler) SenderOption {
	return func(s *BatchSender) { s.scheduler = scheduler }
}

// WithSenderMetrics sets the metrics sink.
func WithSenderMetrics(metrics ports.SenderMetrics) SenderOption {
	return func(s *BatchSender) { s.metrics = metrics }
}

// WithBatchPolicy overrides the policy derived from the configuration.
func WithBatchPolicy(policy BatchPolicy) SenderOption {
	return func(s *BatchSender) { s.policy = policy }
}

// NewBatchSender creates a batch sender shipping through transport.
func NewBatchSender(config BatchSenderConfig, transport ports.Transport, opts ...SenderOption) *BatchSender {
	config.setDefaults()

	s := &BatchSender{
		config:    config,
		transport: transport,
		scheduler: NewGoScheduler(),
		metrics:   noopMetrics{},
		logger:    log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.policy == nil {
		if config.Method == http.MethodGet {
			s.policy = LengthPolicy{
				BaseURL:  config.BeaconURL,
				Min:      config.MinLength,
				Max:      config.MaxLength,
				oversize: s.warnOversize,
			}
		} else {
			s.policy = CountPolicy{
				Min:      config.MinNumberOfEvents,
				Max:      config.MaxNumberOfEvents,
				MaxChars: config.MaxPayloadChars,
			}
		}
	}

	if config.DisableSending || transport == nil {
		s.disabled.Store(true)
	}
	return s
}

// Send queues one event and ships every batch the policy allows.
func (s *BatchSender) Send(event domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append(s.queue, cleanEvent(event, s.config.KeysToIgnore))
	s.sendBatches(false)
}

// Flush ships everything queued, ignoring the minimum batch size.
func (s *BatchSender) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendBatches(true)
}

// PendingEvents returns a copy of the events queued but not yet shipped.
func (s *BatchSender) PendingEvents() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Event, len(s.queue))
	for i, ev := range s.queue {
		out[i] = ev.Clone()
	}
	return out
}

// IsDisabled reports whether the sender has switched itself off.
func (s *BatchSender) IsDisabled() bool {
	return s.disabled.Load()
}

// MaxLength returns the payload ceiling of the active policy.
func (s *BatchSender) MaxLength() int {
	return s.policy.MaxLength()
}

// OnSend registers fn to be called after each batch is handed to the transport.
func (s *BatchSender) OnSend(fn func(events int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSend = append(s.onSend, fn)
}

// Wait blocks until deferred sends started so far have completed,
// if the scheduler supports waiting.
func (s *BatchSender) Wait() {
	if w, ok := s.scheduler.(interface{ Wait() }); ok {
		w.Wait()
	}
}

// sendBatches cuts and ships batches from the front of the queue.
// Caller must hold s.mu.
func (s *BatchSender) sendBatches(force bool) {
	for {
		n := s.policy.Cut(s.queue, force)
		if n <= 0 {
			return
		}
		batch := s.queue[:n]
		s.queue = append([]domain.Event(nil), s.queue[n:]...)
		s.sendBatch(batch)
	}
}

// sendBatch hands one batch to the transport. A disabled sender drops it.
func (s *BatchSender) sendBatch(batch []domain.Event) {
	if s.disabled.Load() {
		s.metrics.EventsDropped(len(batch))
		return
	}

	url, payload, err := s.encode(batch)
	if err != nil {
		s.logger.Error("encode batch failed", ports.Err(err), ports.Int("events", len(batch)))
		s.metrics.EventsDropped(len(batch))
		return
	}

	handle, err := s.createTransport(url)
	if err != nil {
		s.disable(err)
		s.metrics.EventsDropped(len(batch))
		return
	}
	handle.OnError(s.disable)

	if s.config.SendSync {
		handle.Send(payload)
	} else {
		s.scheduler.Schedule(func() { handle.Send(payload) })
	}

	s.metrics.BatchSent(len(batch))
	s.logger.Debug("sent batch", ports.Int("events", len(batch)), ports.String("method", s.config.Method))
	for _, fn := range s.onSend {
		fn(len(batch))
	}
}

func (s *BatchSender) encode(batch []domain.Event) (string, []byte, error) {
	if s.config.Method == http.MethodGet {
		return s.config.BeaconURL + "?" + encodeQuery(batch), nil, nil
	}
	payload, err := encodeJSON(batch)
	return s.config.BeaconURL, payload, err
}

// createTransport treats a nil handle, an error and a panic alike.
func (s *BatchSender) createTransport(url string) (handle ports.TransportHandle, err error) {
	defer func() {
		if r := recover(); r != nil {
			handle, err = nil, fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, r)
		}
	}()

	handle, err = s.transport.CreateTransport(s.config.Method, url)
	if err != nil {
		return nil, err
	}
	if handle == nil {
		return nil, domain.ErrTransportUnavailable
	}
	return handle, nil
}

// disable switches the sender off permanently.
func (s *BatchSender) disable(err error) {
	if s.disabled.CompareAndSwap(false, true) {
		s.metrics.SenderDisabled()
		s.logger.Warn("beacon transport failed, disabling client metrics",
			ports.Err(err),
			ports.String("beacon_url", s.config.BeaconURL),
		)
	}
}

func (s *BatchSender) warnOversize(ev domain.Event, length int) {
	s.logger.Warn("event is too big for one request",
		ports.String("event_id", ev.ID()),
		ports.Int("length", length),
		ports.Int("max_length", s.config.MaxLength),
	)
}

// GoScheduler runs each scheduled function on its own goroutine.
type GoScheduler struct {
	wg sync.WaitGroup
}

// NewGoScheduler creates a GoScheduler.
func NewGoScheduler() *GoScheduler {
	return &GoScheduler{}
}

// Schedule implements ports.Scheduler.
func (g *GoScheduler) Schedule(fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

// Wait blocks until every scheduled function has returned.
func (g *GoScheduler) Wait() {
	g.wg.Wait()
}

type noopMetrics struct{}

func (noopMetrics) BatchSent(int)     {}
func (noopMetrics) EventsDropped(int) {}
func (noopMetrics) SenderDisabled()   {}
