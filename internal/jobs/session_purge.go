package jobs

import (
	"context"
	"log"
	"time"

	"campusboard/internal/config"
	"campusboard/internal/repository"
)

// StartSessionPurgeJob deletes expired and revoked refresh sessions on
// a fixed interval until ctx is cancelled.
func StartSessionPurgeJob(ctx context.Context, cfg config.Config, store *repository.Store) {
	if !cfg.SessionPurgeEnabled {
		return
	}
	interval := cfg.SessionPurgeInterval
	if interval <= 0 {
		interval = time.Hour
	}
	timeout := cfg.SessionPurgeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				deleted, err := store.DeleteExpiredSessions(tickCtx, time.Now().UTC())
				cancel()
				if err != nil {
					log.Printf("session purge error: %v", err)
					continue
				}
				if deleted > 0 {
					log.Printf("session purge removed %d sessions", deleted)
				}
			}
		}
	}()
}
