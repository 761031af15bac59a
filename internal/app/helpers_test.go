package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/tracebeacon/internal/domain"
	"github.com/bft-labs/tracebeacon/internal/ports"
)

// recordingSender captures everything the aggregator hands over.
type recordingSender struct {
	mu      sync.Mutex
	events  []domain.Event
	flushes int
	maxLen  int
}

func (s *recordingSender) Send(ev domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSender) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
}

func (s *recordingSender) MaxLength() int { return s.maxLen }

func (s *recordingSender) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Event(nil), s.events...)
}

func (s *recordingSender) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(ms int64) *fakeClock {
	return &fakeClock{now: time.UnixMilli(ms)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequenceIDs returns id-1, id-2, ...
func sequenceIDs() ports.IDGenerator {
	var mu sync.Mutex
	n := 0
	return ports.IDGeneratorFunc(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

// fakeTransport records created handles and payloads.
type fakeTransport struct {
	mu       sync.Mutex
	creates  int
	payloads [][]byte
	urls     []string
	handles  []*fakeHandle
	fail     error
	panics   bool
	nilOut   bool
}

func (t *fakeTransport) CreateTransport(method, url string) (ports.TransportHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.creates++
	t.urls = append(t.urls, url)
	if t.panics {
		panic("no transport")
	}
	if t.fail != nil {
		return nil, t.fail
	}
	if t.nilOut {
		return nil, nil
	}
	h := &fakeHandle{transport: t}
	t.handles = append(t.handles, h)
	return h, nil
}

func (t *fakeTransport) Creates() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.creates
}

func (t *fakeTransport) Payloads() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.payloads...)
}

type fakeHandle struct {
	transport *fakeTransport
	onError   func(error)
}

func (h *fakeHandle) OnError(fn func(error)) { h.onError = fn }

func (h *fakeHandle) Send(payload []byte) {
	h.transport.mu.Lock()
	defer h.transport.mu.Unlock()
	h.transport.payloads = append(h.transport.payloads, payload)
}

// Fail fires the handle's error callback.
func (h *fakeHandle) Fail(err error) {
	if h.onError != nil {
		h.onError(err)
	}
}

// inlineSender builds a synchronous POST sender over transport.
func inlineSender(transport ports.Transport, mutate func(*BatchSenderConfig)) *BatchSender {
	cfg := DefaultBatchSenderConfig()
	cfg.BeaconURL = "https://beacon.example/beacon"
	cfg.SendSync = true
	if mutate != nil {
		mutate(&cfg)
	}
	return NewBatchSender(cfg, transport)
}

func newTestAggregator(sender ports.Sender, cfg AggregatorConfig) (*Aggregator, *fakeClock) {
	clock := newFakeClock(1_000_000)
	agg := NewAggregator(cfg, sender, WithClock(clock), WithIDGenerator(sequenceIDs()))
	return agg, clock
}
