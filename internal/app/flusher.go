package app

import (
	"context"
	"sync"
	"time"
)

// flusher calls flush every interval until stopped. A reset pushes the next
// tick a full interval into the future.
type flusher struct {
	interval time.Duration
	flush    func()

	reset  chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func startFlusher(interval time.Duration, flush func()) *flusher {
	ctx, cancel := context.WithCancel(context.Background())
	f := &flusher{
		interval: interval,
		flush:    flush,
		reset:    make(chan struct{}, 1),
		cancel:   cancel,
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.loop(ctx)
	}()
	return f
}

func (f *flusher) loop(ctx context.Context) {
	t := time.NewTicker(f.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.reset:
			t.Reset(f.interval)
		case <-t.C:
			f.flush()
		}
	}
}

// Reset re-arms the interval. It never blocks.
func (f *flusher) Reset() {
	select {
	case f.reset <- struct{}{}:
	default:
	}
}

// Stop ends the loop and waits for it. Safe to call more than once.
func (f *flusher) Stop() {
	f.once.Do(func() {
		f.cancel()
		f.wg.Wait()
	})
}
