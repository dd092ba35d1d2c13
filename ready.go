package framegraph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

func (g *FrameGraph) tasksReady() bool {
	for _, t := range g.tasks {
		if !t.IsReady() {
			return false
		}
	}
	return true
}

// WhenReady polls IsReady of every task each interval until all report
// ready. A zero interval uses Config.ReadyPollInterval. By default it waits
// as long as ctx allows. When Config.ReadyTimeout is set the wait also ends
// with ErrReadyTimeout after that long. A built graph moves to StateReady on
// success.
func (g *FrameGraph) WhenReady(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = g.config.ReadyPollInterval.Duration
	}
	if interval <= 0 {
		interval = DefaultReadyPollInterval
	}
	if timeout := g.config.ReadyTimeout.Duration; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, ErrReadyTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if g.tasksReady() {
			g.mu.Lock()
			if g.state == StateBuilt {
				g.state = StateReady
			}
			g.mu.Unlock()
			return nil
		}
		select {
		case <-ctx.Done():
			if cause := context.Cause(ctx); errors.Is(cause, ErrReadyTimeout) {
				return fmt.Errorf("%w after %s", ErrReadyTimeout, g.config.ReadyTimeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WhenReadyAsync runs WhenReady on its own goroutine. The returned channel
// receives its result once and is then closed.
func (g *FrameGraph) WhenReadyAsync(ctx context.Context, interval time.Duration) <-chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		ch <- g.WhenReady(ctx, interval)
	}()
	return ch
}
