package app

import (
	"net/http"
	"strings"

	"github.com/patrickmn/go-cache"

	"github.com/bft-labs/tracebeacon/internal/domain"
	"github.com/bft-labs/tracebeacon/internal/ports"
)

// Trace propagation headers and the server's request id header.
const (
	HeaderTraceID   = "X-Trace-Id"
	HeaderParentID  = "X-Parent-Id"
	HeaderRequestID = "RallyRequestID"

	StatusReady = "Ready"
)

// DataRequestOptions describes an outgoing request made on behalf of a component.
type DataRequestOptions struct {
	Component   any
	Description string
	Hierarchy   string
	Name        string
	URL         string

	// ParentID defaults to the current trace id.
	ParentID string

	// StartTime is an absolute ms timestamp. 0 means now.
	StartTime int64

	MiscData map[string]any
}

// DataRequest identifies a started data request.
type DataRequest struct {
	EventID string
	TraceID string
}

// Headers returns the headers linking the server side of the request to
// this event. The data request event is the parent of whatever the server
// records.
func (r DataRequest) Headers() http.Header {
	h := make(http.Header, 2)
	r.Apply(h)
	return h
}

// Apply sets the trace headers on h.
func (r DataRequest) Apply(h http.Header) {
	h.Set(HeaderTraceID, r.TraceID)
	h.Set(HeaderParentID, r.EventID)
}

// EndDataRequestOptions describes how a data request finished.
type EndDataRequestOptions struct {
	// Response is an *http.Response, an http.Header or the request id itself.
	Response any

	// StopTime is an absolute ms timestamp. 0 means now.
	StopTime int64

	Fields map[string]any
}

// BeginDataRequest starts a dataRequest span. It reports false when there is
// no current trace, in which case no headers should be sent.
func (a *Aggregator) BeginDataRequest(opts DataRequestOptions) (DataRequest, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	traceID := a.currentTraceID
	if traceID == "" {
		return DataRequest{}, false
	}
	parentID := opts.ParentID
	if parentID == "" {
		parentID = traceID
	}

	eventID := a.ids.NewID()
	computed := map[string]any{
		domain.FieldType:     domain.EventDataRequest,
		domain.FieldEventID:  eventID,
		domain.FieldTraceID:  traceID,
		domain.FieldParentID: parentID,
		domain.FieldStart:    a.relative(opts.StartTime),
		domain.FieldURL:      shortURL(opts.URL),
	}
	describe(computed, opts.Component, opts.Hierarchy, opts.Name, opts.Description)

	a.requests.Set(eventID, a.startEvent(opts.MiscData, computed), cache.DefaultExpiration)
	return DataRequest{EventID: eventID, TraceID: traceID}, true
}

// EndDataRequest finishes the data request started with eventID. Requests
// that are unknown, expired or from a previous session are ignored.
func (a *Aggregator) EndDataRequest(eventID string, opts EndDataRequestOptions) {
	a.mu.Lock()
	defer a.mu.Unlock()

	v, ok := a.requests.Get(eventID)
	if !ok {
		a.logger.Debug("no pending data request", ports.String("event_id", eventID))
		return
	}
	a.requests.Delete(eventID)

	end := map[string]any{
		domain.FieldStop:   a.relative(opts.StopTime),
		domain.FieldStatus: StatusReady,
	}
	if id := requestID(opts.Response); id != "" {
		end[domain.FieldRequestID] = id
	}
	a.finishEvent(domain.Layered(v.(domain.Event), end, opts.Fields))
}

// PendingDataRequests returns the number of data requests not yet ended.
func (a *Aggregator) PendingDataRequests() int {
	return a.requests.ItemCount()
}

// shortURL strips the host and query. For web service URLs only the part
// after "webservice/" is kept, so
// http://server/slm/webservice/1.27/Defect.js?foo=bar becomes 1.27/Defect.js.
func shortURL(u string) string {
	if u == "" {
		return "unknown"
	}
	const slug = "webservice/"
	if i := strings.Index(u, slug); i >= 0 {
		rest := u[i+len(slug):]
		if q := strings.IndexByte(rest, '?'); q >= 0 {
			rest = rest[:q]
		}
		return rest
	}
	if q := strings.IndexByte(u, '?'); q >= 0 {
		return u[:q]
	}
	return u
}

func requestID(resp any) string {
	switch r := resp.(type) {
	case nil:
		return ""
	case string:
		return r
	case *http.Response:
		if r == nil {
			return ""
		}
		return r.Header.Get(HeaderRequestID)
	case interface{ Get(string) string }:
		return r.Get(HeaderRequestID)
	}
	return ""
}
