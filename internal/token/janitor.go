package token

import (
	"context"
	"log"
	"time"
)

// DefaultSweepInterval is how often the cleanup loop runs when no interval
// is configured.
const DefaultSweepInterval = 5 * time.Minute

// RunCleanupLoop sweeps expired blacklist and validation-cache entries every
// interval until ctx is canceled. Intended to run on its own goroutine from
// the server binary.
func (s *Service) RunCleanupLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			blRemoved, cacheRemoved := s.Cleanup()
			if blRemoved > 0 || cacheRemoved > 0 {
				log.Printf("cleanup: removed %d expired blacklist entries, %d stale cache entries", blRemoved, cacheRemoved)
			}
		}
	}
}
