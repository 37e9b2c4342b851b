package telegram

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sendGate throttles all outbound calls with one shared limiter and honors
// platform backpressure: a retry-after pauses every send until the
// signaled instant, it does not retry the failed call.
type sendGate struct {
	limiter *rate.Limiter

	mu          sync.Mutex
	pausedUntil time.Time
}

func newSendGate(rps float64, burst int) *sendGate {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 25
	}
	return &sendGate{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (g *sendGate) wait(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	g.mu.Lock()
	pause := time.Until(g.pausedUntil)
	g.mu.Unlock()
	if pause <= 0 {
		return nil
	}

	timer := time.NewTimer(pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (g *sendGate) pause(d time.Duration) {
	if d <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	until := time.Now().Add(d)
	if until.After(g.pausedUntil) {
		g.pausedUntil = until
	}
}
