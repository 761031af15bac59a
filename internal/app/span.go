package app

import "github.com/bft-labs/tracebeacon/internal/domain"

// SpanOptions describes the start of a span.
type SpanOptions struct {
	Component   any
	Description string
	Hierarchy   string
	Name        string

	// Type defaults to load.
	Type domain.EventType

	// ParentID defaults to the current trace id.
	ParentID string

	// StartTime is an absolute ms timestamp. 0 means now.
	StartTime int64

	// WhenLongerThan drops the span unless it lasts longer, in ms.
	WhenLongerThan int64

	MiscData map[string]any
}

// EndOptions describes the end of a span.
type EndOptions struct {
	// StopTime is an absolute ms timestamp. 0 means now.
	StopTime int64

	// WhenLongerThan overrides the threshold given at start when positive.
	WhenLongerThan int64

	// Fields are merged last and win over everything else.
	Fields map[string]any
}

// Span is an open event. A nil *Span is a valid no-op span, returned when
// there is no trace to attach to.
type Span struct {
	agg   *Aggregator
	data  domain.Event
	ended bool
}

// StartSpan opens a span under the current trace. It returns nil when no
// action has been recorded yet.
func (a *Aggregator) StartSpan(opts SpanOptions) *Span {
	a.mu.Lock()
	defer a.mu.Unlock()

	traceID := a.currentTraceID
	if traceID == "" {
		return nil
	}

	eventType := opts.Type
	if eventType == "" {
		eventType = domain.EventLoad
	}
	parentID := opts.ParentID
	if parentID == "" {
		parentID = traceID
	}

	computed := map[string]any{
		domain.FieldType:     eventType,
		domain.FieldEventID:  a.ids.NewID(),
		domain.FieldTraceID:  traceID,
		domain.FieldParentID: parentID,
		domain.FieldStart:    a.relative(opts.StartTime),
	}
	describe(computed, opts.Component, opts.Hierarchy, opts.Name, opts.Description)
	if opts.WhenLongerThan > 0 {
		computed[domain.FieldWhenLongerThan] = opts.WhenLongerThan
	}

	return &Span{agg: a, data: a.startEvent(opts.MiscData, computed)}
}

// Data returns a copy of the span as started.
func (s *Span) Data() domain.Event {
	if s == nil {
		return nil
	}
	return s.data.Clone()
}

// ID returns the span's event id.
func (s *Span) ID() string {
	if s == nil {
		return ""
	}
	return s.data.ID()
}

// End finishes the span and sends it unless the duration filter drops it.
// Only the first call has an effect.
func (s *Span) End(opts EndOptions) {
	if s == nil {
		return
	}
	a := s.agg
	a.mu.Lock()
	defer a.mu.Unlock()

	if s.ended {
		return
	}
	s.ended = true

	end := map[string]any{domain.FieldStop: a.relative(opts.StopTime)}
	if opts.WhenLongerThan > 0 {
		end[domain.FieldWhenLongerThan] = opts.WhenLongerThan
	}
	a.finishEvent(domain.Layered(s.data, end, opts.Fields))
}

// ComponentReadyOptions describes a component that became usable.
type ComponentReadyOptions struct {
	Component any
	Hierarchy string
	Name      string

	// StopTime is an absolute ms timestamp. 0 means now.
	StopTime int64

	MiscData map[string]any
}

// RecordComponentReady records a load event spanning from the most recent
// action to now. It does nothing before the first action of a session.
func (a *Aggregator) RecordComponentReady(opts ComponentReadyOptions) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.actionStart == nil {
		return
	}
	if a.config.DedupComponentReady && opts.Hierarchy != "" {
		if a.ready.Contains(opts.Hierarchy) {
			return
		}
		a.ready.Add(opts.Hierarchy, struct{}{})
	}

	traceID := a.currentTraceID
	computed := map[string]any{
		domain.FieldType:           domain.EventLoad,
		domain.FieldEventID:        a.ids.NewID(),
		domain.FieldTraceID:        traceID,
		domain.FieldParentID:       traceID,
		domain.FieldStart:          *a.actionStart,
		domain.FieldStop:           a.relative(opts.StopTime),
		domain.FieldComponentReady: true,
	}
	describe(computed, opts.Component, opts.Hierarchy, opts.Name, "component ready")

	a.finishEvent(a.startEvent(opts.MiscData, computed))
}
