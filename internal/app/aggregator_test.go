package app

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/tracebeacon/internal/domain"
)

func TestRecordAction_RootsTrace(t *testing.T) {
	sender := &recordingSender{}
	agg, _ := newTestAggregator(sender, AggregatorConfig{})

	traceID := agg.RecordAction(ActionOptions{Description: "click", Name: "Button", Hierarchy: "Button:Panel"})

	events := sender.Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, traceID, ev.ID())
	assert.Equal(t, traceID, ev.TraceID())
	assert.NotContains(t, ev, domain.FieldParentID)
	assert.Equal(t, domain.EventAction, ev.Type())
	assert.Equal(t, "click", ev[domain.FieldDescription])
	assert.Equal(t, "Button", ev[domain.FieldComponentType])
	assert.Equal(t, "Button:Panel", ev[domain.FieldHierarchy])
	assert.Equal(t, agg.TabID(), ev[domain.FieldTabID])
	assert.Equal(t, ev[domain.FieldStart], ev[domain.FieldStop])
	assert.Equal(t, traceID, agg.CurrentTraceID())
}

func TestRecordAction_Timestamps(t *testing.T) {
	sender := &recordingSender{}
	agg, clock := newTestAggregator(sender, AggregatorConfig{})
	clock.Advance(250 * time.Millisecond)

	agg.RecordAction(ActionOptions{Description: "now"})
	agg.RecordAction(ActionOptions{Description: "earlier", StartTime: 1_000_100})

	events := sender.Events()
	require.Len(t, events, 2)
	assert.Equal(t, int64(250), events[0][domain.FieldStart])
	assert.Equal(t, int64(1_000_250), events[0][domain.FieldBrowserTimestamp])
	assert.Equal(t, int64(100), events[1][domain.FieldStart])
	assert.Equal(t, int64(1_000_100), events[1][domain.FieldBrowserTimestamp])
}

func TestRecordAction_ComputedFieldsBeatMiscData(t *testing.T) {
	sender := &recordingSender{}
	agg, _ := newTestAggregator(sender, AggregatorConfig{})
	agg.StartSession(map[string]any{"userId": "u1", "eDesc": "from defaults", "page": "home"})

	traceID := agg.RecordAction(ActionOptions{
		Description: "click",
		MiscData:    map[string]any{"eId": "forged", "eDesc": "from misc", "page": "detail"},
	})

	ev := sender.Events()[0]
	assert.Equal(t, traceID, ev.ID())
	assert.Equal(t, "click", ev[domain.FieldDescription])
	assert.Equal(t, "detail", ev["page"])
	assert.Equal(t, "u1", ev["userId"])
}

func TestStartSpan_ParentsToCurrentTrace(t *testing.T) {
	sender := &recordingSender{}
	agg, _ := newTestAggregator(sender, AggregatorConfig{})

	traceID := agg.RecordAction(ActionOptions{Description: "click"})
	span := agg.StartSpan(SpanOptions{Description: "panel load"})
	require.NotNil(t, span)
	span.End(EndOptions{})

	events := sender.Events()
	require.Len(t, events, 2)
	assert.Equal(t, traceID, events[1].TraceID())
	assert.Equal(t, traceID, events[1].ParentID())
	assert.Equal(t, domain.EventLoad, events[1].Type())
	assert.Equal(t, "panel load", events[1][domain.FieldDescription])
}

func TestStartSpan_TraceCapturedAtStart(t *testing.T) {
	sender := &recordingSender{}
	agg, _ := newTestAggregator(sender, AggregatorConfig{})

	first := agg.RecordAction(ActionOptions{Description: "first"})
	span := agg.StartSpan(SpanOptions{Description: "slow load"})
	second := agg.RecordAction(ActionOptions{Description: "second"})
	require.NotEqual(t, first, second)

	span.End(EndOptions{})

	events := sender.Events()
	require.Len(t, events, 3)
	assert.Equal(t, first, events[2].TraceID())
	assert.Equal(t, first, events[2].ParentID())
}

func TestStartSpan_ExplicitParent(t *testing.T) {
	sender := &recordingSender{}
	agg, _ := newTestAggregator(sender, AggregatorConfig{})
	agg.RecordAction(ActionOptions{Description: "click"})

	parent := agg.StartSpan(SpanOptions{Description: "outer"})
	child := agg.StartSpan(SpanOptions{Description: "inner", ParentID: parent.ID()})
	child.End(EndOptions{})
	parent.End(EndOptions{Fields: map[string]any{domain.FieldParentID: "override"}})

	events := sender.Events()
	require.Len(t, events, 3)
	assert.Equal(t, parent.ID(), events[1].ParentID())
	assert.Equal(t, "override", events[2].ParentID())
}

func TestStartSpan_NoTraceIsNoop(t *testing.T) {
	sender := &recordingSender{}
	agg, _ := newTestAggregator(sender, AggregatorConfig{})

	span := agg.StartSpan(SpanOptions{Description: "orphan"})
	assert.Nil(t, span)
	assert.Nil(t, span.Data())
	assert.Empty(t, span.ID())
	span.End(EndOptions{})

	assert.Empty(t, sender.Events())
}

func TestSpan_EndOnce(t *testing.T) {
	sender := &recordingSender{}
	agg, _ := newTestAggregator(sender, AggregatorConfig{})
	agg.RecordAction(ActionOptions{})

	span := agg.StartSpan(SpanOptions{Type: domain.EventDataRequest})
	span.End(EndOptions{})
	span.End(EndOptions{})

	events := sender.Events()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventDataRequest, events[1].Type())
}

func TestSpan_DataIsCopy(t *testing.T) {
	sender := &recordingSender{}
	agg, _ := newTestAggregator(sender, AggregatorConfig{})
	agg.RecordAction(ActionOptions{})

	span := agg.StartSpan(SpanOptions{Description: "load"})
	data := span.Data()
	assert.True(t, data.Pending())
	data[domain.FieldDescription] = "mutated"
	span.End(EndOptions{})

	assert.Equal(t, "load", sender.Events()[1][domain.FieldDescription])
}

func TestSpan_DurationFilter(t *testing.T) {
	tests := []struct {
		name        string
		startOpt    int64
		endOpt      int64
		durationMS  int64
		wantRecords int
	}{
		{name: "shorter than threshold", endOpt: 100, durationMS: 50, wantRecords: 0},
		{name: "equal to threshold", endOpt: 100, durationMS: 100, wantRecords: 0},
		{name: "one past threshold", endOpt: 100, durationMS: 101, wantRecords: 1},
		{name: "threshold from start", startOpt: 100, durationMS: 100, wantRecords: 0},
		{name: "threshold from start exceeded", startOpt: 100, durationMS: 101, wantRecords: 1},
		{name: "end overrides start", startOpt: 500, endOpt: 100, durationMS: 101, wantRecords: 1},
		{name: "no threshold", durationMS: 0, wantRecords: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			agg, _ := newTestAggregator(sender, AggregatorConfig{})
			agg.RecordAction(ActionOptions{})

			span := agg.StartSpan(SpanOptions{StartTime: 2_000_000, WhenLongerThan: tt.startOpt})
			span.End(EndOptions{StopTime: 2_000_000 + tt.durationMS, WhenLongerThan: tt.endOpt})

			assert.Len(t, sender.Events(), 1+tt.wantRecords)
		})
	}
}

func TestRecordComponentReady_StartsAtActionAnchor(t *testing.T) {
	sender := &recordingSender{}
	agg, clock := newTestAggregator(sender, AggregatorConfig{})

	clock.Advance(10 * time.Millisecond)
	traceID := agg.RecordAction(ActionOptions{Description: "navigate"})
	clock.Advance(3 * time.Second)
	agg.RecordComponentReady(ComponentReadyOptions{Name: "Grid", Hierarchy: "Grid:Board"})

	events := sender.Events()
	require.Len(t, events, 2)
	ready := events[1]
	assert.Equal(t, int64(10), ready[domain.FieldStart])
	assert.Equal(t, int64(3010), ready[domain.FieldStop])
	assert.Equal(t, traceID, ready.TraceID())
	assert.Equal(t, traceID, ready.ParentID())
	assert.Equal(t, domain.EventLoad, ready.Type())
	assert.Equal(t, "component ready", ready[domain.FieldDescription])
	assert.Equal(t, true, ready[domain.FieldComponentReady])
}

func TestRecordComponentReady_NoAnchor(t *testing.T) {
	sender := &recordingSender{}
	agg, _ := newTestAggregator(sender, AggregatorConfig{})

	agg.RecordComponentReady(ComponentReadyOptions{Hierarchy: "Grid"})
	assert.Empty(t, sender.Events())

	agg.RecordAction(ActionOptions{})
	agg.StartSession(nil)
	agg.RecordComponentReady(ComponentReadyOptions{Hierarchy: "Grid"})
	assert.Len(t, sender.Events(), 1)
}

func TestRecordComponentReady_Dedup(t *testing.T) {
	tests := []struct {
		name  string
		dedup bool
		want  int
	}{
		{name: "every call recorded", dedup: false, want: 3},
		{name: "first per hierarchy", dedup: true, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			agg, _ := newTestAggregator(sender, AggregatorConfig{DedupComponentReady: tt.dedup})
			agg.RecordAction(ActionOptions{})

			agg.RecordComponentReady(ComponentReadyOptions{Hierarchy: "Grid:Board"})
			agg.RecordComponentReady(ComponentReadyOptions{Hierarchy: "Grid:Board"})
			agg.RecordComponentReady(ComponentReadyOptions{Hierarchy: "Chart:Board"})

			assert.Len(t, sender.Events(), 1+tt.want)
		})
	}
}

func TestRecordComponentReady_DedupResetsPerSession(t *testing.T) {
	sender := &recordingSender{}
	agg, _ := newTestAggregator(sender, AggregatorConfig{DedupComponentReady: true})

	agg.RecordAction(ActionOptions{})
	agg.RecordComponentReady(ComponentReadyOptions{Hierarchy: "Grid"})
	agg.StartSession(nil)
	agg.RecordAction(ActionOptions{})
	agg.RecordComponentReady(ComponentReadyOptions{Hierarchy: "Grid"})

	assert.Len(t, sender.Events(), 4)
}

func TestRecordError_Limit(t *testing.T) {
	const limit = 5
	sender := &recordingSender{}
	agg, _ := newTestAggregator(sender, AggregatorConfig{ErrorLimit: limit})
	agg.RecordAction(ActionOptions{})

	for i := 0; i < limit+3; i++ {
		agg.RecordErrorMessage(fmt.Sprintf("boom %d", i), nil)
	}

	events := sender.Events()
	require.Len(t, events, 1+limit)
	for _, ev := range events[1:] {
		assert.Equal(t, domain.EventError, ev.Type())
	}
	assert.Equal(t, limit, sender.Flushes())

	agg.StartSession(nil)
	agg.RecordAction(ActionOptions{})
	agg.RecordErrorMessage("after reset", nil)
	assert.Len(t, sender.Events(), 1+limit+2)
}

func TestRecordError_NoTrace(t *testing.T) {
	sender := &recordingSender{}
	agg, _ := newTestAggregator(sender, AggregatorConfig{})

	agg.RecordError(errors.New("boom"), nil)
	agg.RecordErrorMessage("boom", nil)
	agg.RecordError(nil, nil)

	assert.Empty(t, sender.Events())
	assert.Zero(t, sender.Flushes())
}

func TestRecordError_Fields(t *testing.T) {
	sender := &recordingSender{}
	agg, clock := newTestAggregator(sender, AggregatorConfig{})
	traceID := agg.RecordAction(ActionOptions{})
	clock.Advance(time.Second)

	agg.RecordErrorMessage("boom", map[string]any{"columnNumber": 7, "eType": "forged"})

	ev := sender.Events()[1]
	assert.Equal(t, domain.EventError, ev.Type())
	assert.Equal(t, traceID, ev.TraceID())
	assert.NotContains(t, ev, domain.FieldParentID)
	assert.Equal(t, "boom", ev[domain.FieldError])
	assert.Equal(t, 7, ev["columnNumber"])
	assert.Equal(t, int64(1000), ev[domain.FieldStart])
	assert.Equal(t, int64(1000), ev[domain.FieldStop])
	assert.Equal(t, 1, sender.Flushes())
}

func TestRecordError_TruncatesToSenderMaxLength(t *testing.T) {
	sender := &recordingSender{maxLen: 100}
	agg, _ := newTestAggregator(sender, AggregatorConfig{})
	agg.RecordAction(ActionOptions{})

	agg.RecordErrorMessage(strings.Repeat("x", 500), nil)

	assert.Len(t, sender.Events()[1][domain.FieldError], 90)
}

func TestRecordError_Stack(t *testing.T) {
	stack := strings.Join([]string{
		"main.handler()",
		"\t/app/handler.go:10",
		"tracebeacon.wrap()",
		"\t/app/wrap.go:3",
		"main.main()",
	}, "\n")

	tests := []struct {
		name   string
		err    error
		misc   map[string]any
		config AggregatorConfig
		want   string
	}{
		{
			name: "from error",
			err:  &domain.StackError{Err: errors.New("boom"), Trace: stack},
			want: stack,
		},
		{
			name: "from wrapped error",
			err:  fmt.Errorf("outer: %w", &domain.StackError{Err: errors.New("boom"), Trace: stack}),
			want: stack,
		},
		{
			name: "from misc data",
			err:  errors.New("boom"),
			misc: map[string]any{"stack": "a\nb"},
			want: "a\nb",
		},
		{
			name:   "limited",
			err:    &domain.StackError{Err: errors.New("boom"), Trace: stack},
			config: AggregatorConfig{StackLimit: 2},
			want:   "main.handler()\n\t/app/handler.go:10",
		},
		{
			name:   "filtered",
			err:    &domain.StackError{Err: errors.New("boom"), Trace: stack},
			config: AggregatorConfig{IgnoreStackMatcher: regexp.MustCompile(`wrap`), StackLimit: 3},
			want:   "main.handler()\n\t/app/handler.go:10\nmain.main()",
		},
		{
			name: "none",
			err:  errors.New("boom"),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			agg, _ := newTestAggregator(sender, tt.config)
			agg.RecordAction(ActionOptions{})

			agg.RecordError(tt.err, tt.misc)

			events := sender.Events()
			require.Len(t, events, 2)
			assert.Equal(t, tt.want, events[1][domain.FieldStack])
		})
	}
}

func TestStartSession(t *testing.T) {
	sender := &recordingSender{}
	agg, _ := newTestAggregator(sender, AggregatorConfig{})
	agg.RecordAction(ActionOptions{})

	agg.StartSession(map[string]any{"sessionStart": int64(900_000), "userId": "u1"})

	assert.Equal(t, 1, sender.Flushes())
	assert.Equal(t, map[string]any{"userId": "u1"}, agg.DefaultParams())
	assert.Equal(t, int64(100_000), agg.RelativeTime(0))
	assert.Equal(t, int64(900_050), agg.AbsoluteTime(50))

	agg.RecordAction(ActionOptions{})
	ev := sender.Events()[1]
	assert.Equal(t, "u1", ev["userId"])
	assert.NotContains(t, ev, "sessionStart")
}

func TestDefaultParams_IsCopy(t *testing.T) {
	sender := &recordingSender{}
	agg, _ := newTestAggregator(sender, AggregatorConfig{})
	agg.StartSession(map[string]any{"userId": "u1"})

	params := agg.DefaultParams()
	params["userId"] = "u2"

	assert.Equal(t, "u1", agg.DefaultParams()["userId"])
}

func TestEventIDsAreUnique(t *testing.T) {
	sender := &recordingSender{}
	agg := NewAggregator(AggregatorConfig{}, sender)

	agg.RecordAction(ActionOptions{})
	for i := 0; i < 50; i++ {
		agg.StartSpan(SpanOptions{}).End(EndOptions{})
		agg.RecordComponentReady(ComponentReadyOptions{})
	}

	seen := make(map[string]bool)
	for _, ev := range sender.Events() {
		require.False(t, seen[ev.ID()], "duplicate id %s", ev.ID())
		seen[ev.ID()] = true
	}
}

func TestExampleScenario(t *testing.T) {
	transport := &fakeTransport{}
	sender := inlineSender(transport, nil)
	agg := NewAggregator(AggregatorConfig{}, sender)
	component := struct{ name string }{"panel"}

	traceID := agg.RecordAction(ActionOptions{Component: component, Description: "click"})
	agg.StartSpan(SpanOptions{Component: component, Description: "panel load"}).End(EndOptions{})

	events := sender.PendingEvents()
	require.Len(t, events, 2)
	assert.Equal(t, traceID, events[1].TraceID())
	assert.Equal(t, traceID, events[1].ParentID())
	assert.Equal(t, domain.EventLoad, events[1].Type())
	assert.NotContains(t, events[0], domain.FieldComponent)

	agg.SendAllRemainingEvents()
	assert.Empty(t, sender.PendingEvents())
	assert.Equal(t, 1, transport.Creates())
}
