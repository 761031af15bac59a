package app

import (
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/patrickmn/go-cache"

	"github.com/bft-labs/tracebeacon/internal/domain"
	"github.com/bft-labs/tracebeacon/internal/ports"
	"github.com/bft-labs/tracebeacon/pkg/log"
)

// Aggregator defaults.
const (
	DefaultErrorLimit     = 25
	DefaultStackLimit     = 20
	DefaultDataRequestTTL = 5 * time.Minute

	// readySetSize bounds the per-session component-ready dedup set.
	readySetSize = 1024

	sessionStartKey = "sessionStart"
)

// AggregatorConfig contains configuration for the event aggregator.
type AggregatorConfig struct {
	// ErrorLimit is the maximum number of errors recorded per session.
	ErrorLimit int

	// StackLimit is the number of stack trace lines kept per error.
	StackLimit int

	// IgnoreStackMatcher drops matching stack trace lines when set.
	IgnoreStackMatcher *regexp.Regexp

	// FlushInterval forces a flush at least this often. 0 disables it.
	FlushInterval time.Duration

	// DedupComponentReady records only the first component-ready event per
	// hierarchy in a session.
	DedupComponentReady bool

	// DataRequestTTL is how long an unfinished data request is remembered.
	DataRequestTTL time.Duration
}

// DefaultAggregatorConfig returns the aggregator defaults.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		ErrorLimit:     DefaultErrorLimit,
		StackLimit:     DefaultStackLimit,
		DataRequestTTL: DefaultDataRequestTTL,
	}
}

// Aggregator turns instrumentation calls into causally linked events and
// hands them to a Sender. All methods are safe for concurrent use; calls are
// serialized so events reach the sender in call order.
type Aggregator struct {
	config AggregatorConfig
	sender ports.Sender
	ids    ports.IDGenerator
	clock  ports.Clock
	logger ports.Logger

	tabID string

	mu             sync.Mutex
	startingTime   int64
	currentTraceID string
	actionStart    *int64
	errorCount     int
	defaultParams  map[string]any
	ready          *simplelru.LRU
	requests       *cache.Cache
	flusher        *flusher
}

// AggregatorOption configures optional behavior of an Aggregator.
type AggregatorOption func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(logger ports.Logger) AggregatorOption {
	return func(a *Aggregator) { a.logger = logger }
}

// WithIDGenerator sets the source of event, trace and tab ids.
func WithIDGenerator(ids ports.IDGenerator) AggregatorOption {
	return func(a *Aggregator) { a.ids = ids }
}

// WithClock sets the time source.
func WithClock(clock ports.Clock) AggregatorOption {
	return func(a *Aggregator) { a.clock = clock }
}

// NewAggregator creates an aggregator feeding sender.
func NewAggregator(config AggregatorConfig, sender ports.Sender, opts ...AggregatorOption) *Aggregator {
	if config.ErrorLimit <= 0 {
		config.ErrorLimit = DefaultErrorLimit
	}
	if config.StackLimit <= 0 {
		config.StackLimit = DefaultStackLimit
	}
	if config.DataRequestTTL <= 0 {
		config.DataRequestTTL = DefaultDataRequestTTL
	}

	a := &Aggregator{
		config: config,
		sender: sender,
		ids:    ports.IDGeneratorFunc(uuid.NewString),
		clock:  systemClock{},
		logger: log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}

	// Only fails for a non-positive size.
	a.ready, _ = simplelru.NewLRU(readySetSize, nil)
	a.requests = cache.New(config.DataRequestTTL, config.DataRequestTTL)
	a.tabID = a.ids.NewID()
	a.startingTime = a.nowMillis()

	if config.FlushInterval > 0 {
		a.flusher = startFlusher(config.FlushInterval, a.SendAllRemainingEvents)
		if obs, ok := sender.(ports.SendObserver); ok {
			f := a.flusher
			obs.OnSend(func(int) { f.Reset() })
		}
	}

	return a
}

// StartSession begins a new session. Queued events are flushed, default
// params replaced, the error count reset and the action anchor cleared.
// A numeric "sessionStart" param (ms epoch) moves the relative-time origin
// and is not merged into events.
func (a *Aggregator) StartSession(defaultParams map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if v, ok := domain.Event(defaultParams).Int64(sessionStartKey); ok && v != 0 {
		a.startingTime = v
	}
	a.sender.Flush()

	a.defaultParams = domain.Without(defaultParams, sessionStartKey)
	a.errorCount = 0
	a.actionStart = nil
	a.ready.Purge()
	a.requests.Flush()

	a.logger.Debug("session started", ports.Int64("session_start", a.startingTime))
}

// ActionOptions describes a user or system action.
type ActionOptions struct {
	// Component is an opaque back-reference. It is never serialized.
	Component any

	Description string
	Hierarchy   string
	Name        string

	// StartTime is an absolute ms timestamp. 0 means now.
	StartTime int64

	MiscData map[string]any
}

// RecordAction starts a new trace with an action event and returns its id.
// The event starts and stops at the same instant, which becomes the anchor
// for component-ready events.
func (a *Aggregator) RecordAction(opts ActionOptions) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	traceID := a.ids.NewID()
	anchor := a.relative(opts.StartTime)
	a.actionStart = &anchor

	computed := map[string]any{
		domain.FieldType:    domain.EventAction,
		domain.FieldEventID: traceID,
		domain.FieldTraceID: traceID,
		domain.FieldStart:   anchor,
		domain.FieldStop:    anchor,
	}
	describe(computed, opts.Component, opts.Hierarchy, opts.Name, opts.Description)

	ev := a.startEvent(opts.MiscData, computed)
	a.currentTraceID = traceID
	a.finishEvent(ev)

	return traceID
}

// SendAllRemainingEvents flushes the sender.
func (a *Aggregator) SendAllRemainingEvents() {
	a.sender.Flush()
}

// CurrentTraceID returns the id of the most recent action, empty before any.
func (a *Aggregator) CurrentTraceID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentTraceID
}

// DefaultParams returns a copy of the params merged into every event.
func (a *Aggregator) DefaultParams() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return domain.Without(a.defaultParams)
}

// TabID returns the id shared by every event of this aggregator.
func (a *Aggregator) TabID() string {
	return a.tabID
}

// RelativeTime converts an absolute ms timestamp to session-relative ms.
// 0 means now.
func (a *Aggregator) RelativeTime(ts int64) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.relative(ts)
}

// AbsoluteTime converts session-relative ms back to an absolute timestamp.
func (a *Aggregator) AbsoluteTime(rel int64) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return rel + a.startingTime
}

// Close stops the periodic flush. It is safe to call more than once.
func (a *Aggregator) Close() {
	a.mu.Lock()
	f := a.flusher
	a.mu.Unlock()

	if f != nil {
		f.Stop()
	}
}

func (a *Aggregator) relative(ts int64) int64 {
	if ts == 0 {
		ts = a.nowMillis()
	}
	return ts - a.startingTime
}

func (a *Aggregator) nowMillis() int64 {
	return a.clock.Now().UnixMilli()
}

// startEvent assembles a new event. Computed fields beat miscData, which
// beats the session defaults.
func (a *Aggregator) startEvent(misc, computed map[string]any) domain.Event {
	start, _ := domain.Event(computed).Int64(domain.FieldStart)
	identity := map[string]any{
		domain.FieldTabID:            a.tabID,
		domain.FieldBrowserTimestamp: start + a.startingTime,
	}
	return domain.Layered(a.defaultParams, misc, computed, identity)
}

// finishEvent sends ev unless the duration filter rejects it.
// Caller must hold a.mu.
func (a *Aggregator) finishEvent(ev domain.Event) {
	if !ev.ShouldRecord() {
		a.logger.Debug("event shorter than threshold, dropped",
			ports.String("event_id", ev.ID()),
			ports.String("type", string(ev.Type())),
		)
		return
	}
	a.sender.Send(ev)
}

// describe sets the component fields that were supplied.
func describe(fields map[string]any, component any, hierarchy, name, description string) {
	if component != nil {
		fields[domain.FieldComponent] = component
	}
	if hierarchy != "" {
		fields[domain.FieldHierarchy] = hierarchy
	}
	if name != "" {
		fields[domain.FieldComponentType] = name
	}
	if description != "" {
		fields[domain.FieldDescription] = description
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
