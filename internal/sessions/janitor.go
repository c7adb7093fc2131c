package sessions

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Pruner is a store that cannot expire entries on its own.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// Janitor periodically forgets sessions idle for longer than the TTL. Redis
// expires keys itself; the in-memory store needs a janitor.
type Janitor struct {
	store    Pruner
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewJanitor creates a janitor that sweeps every interval. A zero interval
// sweeps every ttl/4, and never more often than once a second.
func NewJanitor(store Pruner, ttl, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = ttl / 4
	}
	if interval < time.Second {
		interval = time.Second
	}
	return &Janitor{store: store, ttl: ttl, interval: interval, now: time.Now}
}

// Start runs sweeps until ctx is canceled. It blocks.
func (j *Janitor) Start(ctx context.Context) {
	log.Info().Dur("ttl", j.ttl).Dur("interval", j.interval).Msg("Session janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Session janitor stopped")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep performs one pass and returns how many sessions it removed.
func (j *Janitor) Sweep(ctx context.Context) int {
	start := j.now()
	n, err := j.store.Prune(ctx, start.Add(-j.ttl))
	if err != nil {
		log.Warn().Err(err).Msg("Session janitor: prune failed")
		return 0
	}
	if n > 0 {
		log.Info().Int("expired", n).Dur("elapsed", time.Since(start)).Msg("Session sweep complete")
	}
	return n
}
