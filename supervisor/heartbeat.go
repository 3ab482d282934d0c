package supervisor

import (
	"context"
	"sync"
	"time"
)

// BeatFunc records one liveness snapshot.
type BeatFunc func(ctx context.Context)

// Heartbeat is a running periodic task. The owner must call Stop, which
// returns only after the last beat has finished.
type Heartbeat struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartHeartbeat calls beat every interval until Stop is called or ctx ends.
// The first beat happens one interval after the start.
func StartHeartbeat(ctx context.Context, interval time.Duration, beat BeatFunc) *Heartbeat {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &Heartbeat{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// a tick and a cancel may be ready together
				if ctx.Err() != nil {
					return
				}
				beat(ctx)
			}
		}
	}()

	return h
}

// Stop cancels the heartbeat and waits for it to exit. Safe to call twice.
func (h *Heartbeat) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}
