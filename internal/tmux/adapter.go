package tmux

import (
	"context"
	"time"
)

// Adapter exposes the tmux operations the monitor consumes behind a value the
// monitor can fake in tests. Every call carries a bounded timeout so one
// unresponsive tmux server cannot stall a whole cycle.
type Adapter struct {
	// Timeout bounds each underlying tmux invocation.
	Timeout time.Duration
	// CaptureLines is how much scrollback a snapshot includes.
	CaptureLines int
}

// DefaultAdapter returns an adapter with the timeouts used in production.
func DefaultAdapter() *Adapter {
	return &Adapter{
		Timeout:      10 * time.Second,
		CaptureLines: 100,
	}
}

func (a *Adapter) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// Exists reports whether the named session is alive.
func (a *Adapter) Exists(ctx context.Context, name string) bool {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	return SessionExists(ctx, name)
}

// Capture returns the session's current visible output.
func (a *Adapter) Capture(ctx context.Context, name string) (string, error) {
	ctx, cancel := a.bounded(ctx)
	defer cancel()

	lines := a.CaptureLines
	if lines <= 0 {
		lines = 100
	}
	return CapturePane(ctx, name, lines)
}

// Send types literal text into the session followed by Enter.
func (a *Adapter) Send(ctx context.Context, name, text string) error {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	return SendKeys(ctx, name, text, true)
}
