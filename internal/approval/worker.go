package approval

import (
	"context"
	"time"
)

// RunCleanup calls CleanupPromoted every interval until ctx ends. A failed
// pass is logged and retried on the next tick.
func (e *Engine) RunCleanup(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := e.CleanupPromoted(ctx, retention); err != nil && ctx.Err() == nil {
				e.log.Warn("cleanup pass failed", "error", err)
			}
		}
	}
}
