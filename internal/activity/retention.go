package activity

import (
	"context"
	"time"
)

// RunRetention prunes entries older than retention every interval until
// ctx is cancelled. A first prune runs immediately.
func RunRetention(ctx context.Context, repo Repository, retention, interval time.Duration, logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	if retention <= 0 || interval <= 0 {
		return
	}

	prune := func() {
		n, err := repo.Prune(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("activity prune failed", "error", err)
			}
			return
		}
		if n > 0 {
			logger.Info("pruned activity log", "deleted", n, "retention", retention)
		}
	}

	prune()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
