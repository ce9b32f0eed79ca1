package clara

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// startRetentionWorker runs a background goroutine that periodically deletes
// archived turns older than retention. Close cancels it and waits.
func (e *Engine) startRetentionWorker(interval, retention time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancelRetention = cancel
	e.retentionDone = make(chan struct{})
	log := e.logger.Named("store")

	go func() {
		defer close(e.retentionDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				deleted, err := e.store.PruneBefore(ctx, time.Now().Add(-retention))
				if err != nil {
					log.Warn("transcript prune failed", zap.Error(err))
				} else if deleted > 0 {
					log.Info("transcript prune", zap.Int64("deleted", deleted))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
