package app

import (
	"errors"
	"strings"

	"github.com/bft-labs/tracebeacon/internal/domain"
	"github.com/bft-labs/tracebeacon/internal/ports"
)

// RecordError records err under the current trace and flushes the sender.
// The stack comes from err when it implements domain.StackTracer, otherwise
// from misc["stack"].
func (a *Aggregator) RecordError(err error, misc map[string]any) {
	if err == nil {
		return
	}
	stack := ""
	var st domain.StackTracer
	if errors.As(err, &st) {
		stack = st.Stack()
	}
	a.recordError(err.Error(), stack, misc)
}

// RecordErrorMessage records a plain error message. See RecordError.
func (a *Aggregator) RecordErrorMessage(msg string, misc map[string]any) {
	a.recordError(msg, "", misc)
}

func (a *Aggregator) recordError(msg, stack string, misc map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()

	traceID := a.currentTraceID
	if traceID == "" {
		return
	}
	if a.errorCount >= a.config.ErrorLimit {
		a.logger.Debug("error limit reached, error dropped", ports.Int("limit", a.config.ErrorLimit))
		return
	}
	a.errorCount++

	if stack == "" {
		stack, _ = misc[domain.FieldStack].(string)
	}

	now := a.relative(0)
	computed := map[string]any{
		domain.FieldType:    domain.EventError,
		domain.FieldEventID: a.ids.NewID(),
		domain.FieldTraceID: traceID,
		domain.FieldStart:   now,
		domain.FieldStop:    now,
		domain.FieldError:   truncate(msg, a.maxErrorLength()),
		domain.FieldStack:   a.filterStack(stack),
	}
	a.finishEvent(a.startEvent(misc, computed))

	// Errors must not wait in a half-full batch.
	a.sender.Flush()
}

// maxErrorLength is 90% of the sender's payload ceiling, 0 for no limit.
func (a *Aggregator) maxErrorLength() int {
	ml, ok := a.sender.(ports.MaxLengther)
	if !ok {
		return 0
	}
	return ml.MaxLength() * 9 / 10
}

func (a *Aggregator) filterStack(stack string) string {
	lines := domain.StackLines(stack)
	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		if len(kept) == a.config.StackLimit {
			break
		}
		if a.config.IgnoreStackMatcher != nil && a.config.IgnoreStackMatcher.MatchString(l) {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}

// truncate cuts s to at most limit characters. limit <= 0 means no limit.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
