// Package poller drives periodic thread-list refreshes. It has no backoff:
// a failed refresh just waits for the next tick.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval matches the hosted client's refresh cadence.
const DefaultInterval = 5 * time.Second

// Poller calls Refresh once per Interval between Start and Stop.
type Poller struct {
	Interval time.Duration
	Refresh  func(ctx context.Context)
	Logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Start begins ticking. The first refresh happens one interval after Start.
// Starting a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil || p.Refresh == nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	go p.run(ctx, done)
}

// Stop cancels the timer and waits for an in-progress refresh to return.
// Stopping an idle poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the poller is ticking.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if p.Logger != nil {
				p.Logger.Debug("poller stopped")
			}
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}
