/**
 * @description
 * Background expirer that sweeps lapsed subscriptions. Queries filter on
 * expires_at as well, so the sweep is a tidiness measure (and what drives
 * member-removal events downstream), not a correctness requirement.
 */

package app

import (
	"context"
	"log"
	"time"
)

// DefaultExpirerInterval is how often the sweep runs.
const DefaultExpirerInterval = 5 * time.Minute

// RunExpirer marks lapsed subscriptions as expired on a fixed interval until
// the context is cancelled. Intended to be launched as a goroutine from main.
func (s *Service) RunExpirer(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultExpirerInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("level=info component=expirer msg=\"starting\" interval=%s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("level=info component=expirer msg=\"stopping\"")
			return
		case <-ticker.C:
			s.expireOnce(ctx)
		}
	}
}

func (s *Service) expireOnce(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	expired, err := s.repo.ExpireLapsedSubscriptions(sweepCtx, time.Now().UTC())
	if err != nil {
		log.Printf("level=error component=expirer msg=\"sweep failed\" err=%v", err)
		return
	}
	if expired > 0 {
		log.Printf("level=info component=expirer msg=\"subscriptions expired\" count=%d", expired)
	}
}
