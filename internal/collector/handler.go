package collector

import (
	"errors"
	"io"
	"net/http"

	"github.com/bft-labs/tracebeacon/internal/adapters/metrics"
	"github.com/bft-labs/tracebeacon/internal/domain"
	"github.com/bft-labs/tracebeacon/internal/ports"
)

// maxBodyBytes caps a POST batch.
const maxBodyBytes = 1 << 20

// Handler accepts beacon batches over POST and GET.
type Handler struct {
	logger  ports.Logger
	metrics *metrics.Metrics
	onEvent func(domain.Event)
}

// NewHandler creates a beacon handler. onEvent, if not nil, is called with
// every decoded event.
func NewHandler(logger ports.Logger, m *metrics.Metrics, onEvent func(domain.Event)) *Handler {
	return &Handler{logger: logger, metrics: m, onEvent: onEvent}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	allowCORS(w, r)

	var (
		events []domain.Event
		err    error
	)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
		events, err = DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	case http.MethodGet:
		events, err = DecodeQuery(r.URL.Query())
	default:
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err != nil {
		reason := "decode"
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			reason = "too_large"
		}
		h.metrics.Rejected(reason)
		h.logger.Warn("rejected batch", ports.Err(err), ports.String("method", r.Method))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = string(ev.Type())
		h.logger.Info("event",
			ports.String("type", types[i]),
			ports.String("event_id", ev.ID()),
			ports.String("trace_id", ev.TraceID()),
			ports.String("parent_id", ev.ParentID()),
			ports.Any("fields", map[string]any(ev)),
		)
		if h.onEvent != nil {
			h.onEvent(ev)
		}
	}
	h.metrics.BatchReceived(r.Method, types)

	_, _ = io.Copy(io.Discard, r.Body)
	w.WriteHeader(http.StatusNoContent)
}

func allowCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Vary", "Origin")
}
