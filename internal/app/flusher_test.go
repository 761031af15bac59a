package app

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlusher_Ticks(t *testing.T) {
	var calls atomic.Int32
	f := startFlusher(10*time.Millisecond, func() { calls.Add(1) })
	defer f.Stop()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestFlusher_StopIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	f := startFlusher(5*time.Millisecond, func() { calls.Add(1) })

	f.Stop()
	f.Stop()
	n := calls.Load()
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, n, calls.Load())
}

func TestFlusher_ResetNeverBlocks(t *testing.T) {
	f := startFlusher(time.Hour, func() {})
	defer f.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			f.Reset()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Reset blocked")
	}
}

func TestAggregator_PeriodicFlush(t *testing.T) {
	transport := &fakeTransport{}
	sender := inlineSender(transport, nil)
	agg := NewAggregator(AggregatorConfig{FlushInterval: 10 * time.Millisecond}, sender)
	defer agg.Close()

	agg.RecordAction(ActionOptions{Description: "click"})

	require.Eventually(t, func() bool { return transport.Creates() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, sender.PendingEvents())
}

func TestAggregator_CloseStopsFlush(t *testing.T) {
	transport := &fakeTransport{}
	sender := inlineSender(transport, nil)
	agg := NewAggregator(AggregatorConfig{FlushInterval: 5 * time.Millisecond}, sender)

	agg.Close()
	agg.Close()
	agg.RecordAction(ActionOptions{})
	time.Sleep(30 * time.Millisecond)

	assert.Zero(t, transport.Creates())
	assert.Len(t, sender.PendingEvents(), 1)
}
