package domain

import (
	"math"
	"strconv"
)

// EventType is the category of an event.
type EventType string

const (
	EventAction      EventType = "action"
	EventLoad        EventType = "load"
	EventDataRequest EventType = "dataRequest"
	EventError       EventType = "error"
)

// Field keys used on the wire. Most are short acronyms kept for compatibility
// with existing beacons.
const (
	FieldType             = "eType"
	FieldEventID          = "eId"
	FieldTraceID          = "tId"
	FieldParentID         = "pId"
	FieldStart            = "start"
	FieldStop             = "stop"
	FieldBrowserTimestamp = "bts"
	FieldTabID            = "tabId"
	FieldComponentType    = "cmpType"
	FieldHierarchy        = "cmpH"
	FieldDescription      = "eDesc"
	FieldComponent        = "cmp"
	FieldStatus           = "status"
	FieldComponentReady   = "componentReady"
	FieldError            = "error"
	FieldStack            = "stack"
	FieldURL              = "url"
	FieldRequestID        = "rallyRequestId"
	FieldColumnNumber     = "columnNumber"
	FieldWhenLongerThan   = "whenLongerThan"
)

// Event is a single telemetry record keyed by field name.
type Event map[string]any

// Clone returns a shallow copy of the event.
func (e Event) Clone() Event {
	if e == nil {
		return nil
	}
	out := make(Event, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Type returns the event category.
func (e Event) Type() EventType {
	switch v := e[FieldType].(type) {
	case EventType:
		return v
	case string:
		return EventType(v)
	}
	return ""
}

// String returns the value stored under key if it is a string.
func (e Event) String(key string) string {
	switch v := e[key].(type) {
	case string:
		return v
	case EventType:
		return string(v)
	}
	return ""
}

// Int64 returns the value stored under key as an int64.
// Numeric strings are accepted so decoded wire events can be inspected too.
func (e Event) Int64(key string) (int64, bool) {
	switch v := e[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// ID returns the event id.
func (e Event) ID() string { return e.String(FieldEventID) }

// TraceID returns the trace id.
func (e Event) TraceID() string { return e.String(FieldTraceID) }

// ParentID returns the parent event id, empty for trace roots.
func (e Event) ParentID() string { return e.String(FieldParentID) }

// Pending reports whether the event has been started but not finished.
func (e Event) Pending() bool {
	_, ok := e[FieldStop]
	return !ok
}

// Duration returns stop - start for a finished event.
func (e Event) Duration() (int64, bool) {
	start, ok := e.Int64(FieldStart)
	if !ok {
		return 0, false
	}
	stop, ok := e.Int64(FieldStop)
	if !ok {
		return 0, false
	}
	return stop - start, true
}

// ShouldRecord applies the duration filter: an event carrying a positive
// whenLongerThan threshold is kept only if it lasted strictly longer.
func (e Event) ShouldRecord() bool {
	threshold, ok := e.Int64(FieldWhenLongerThan)
	if !ok || threshold <= 0 {
		return true
	}
	d, ok := e.Duration()
	if !ok {
		return true
	}
	return d > threshold
}

// Layered merges layers into a new event. Layers are given lowest precedence
// first: a key in a later layer replaces the same key from an earlier one.
//
// The aggregator uses the order session defaults, miscData, computed fields,
// explicit caller fields.
func Layered(layers ...map[string]any) Event {
	size := 0
	for _, l := range layers {
		size += len(l)
	}
	out := make(Event, size)
	for _, l := range layers {
		for k, v := range l {
			out[k] = v
		}
	}
	return out
}

// Without returns a copy of m with keys removed.
func Without(m map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
