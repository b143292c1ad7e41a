// Package ratelimit keeps one token bucket per caller identity and evicts idle ones.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Konseptt/ai-lecture-notes/internal/observability/metrics"
)

// Config holds limiter settings.
type Config struct {
	RequestsPerMinute int
	Burst             int
	SweepInterval     time.Duration
	IdleTTL           time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is safe for concurrent use.
type Limiter struct {
	cfg     Config
	limit   rate.Limit
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
	metrics *metrics.Metrics
}

// New creates a Limiter. RequestsPerMinute <= 0 disables limiting.
func New(cfg Config) *Limiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}
	return &Limiter{
		cfg:     cfg,
		limit:   limit,
		entries: make(map[string]*entry),
		now:     time.Now,
		metrics: metrics.DefaultMetrics,
	}
}

// Allow reports whether key may proceed now, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.cfg.Burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// Sweep evicts identities idle longer than IdleTTL and returns how many were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.IdleTTL)
	removed := 0
	for k, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, k)
			removed++
		}
	}
	l.metrics.RateLimiterSize.Set(float64(len(l.entries)))
	return removed
}

// Len returns the number of tracked identities.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run sweeps on SweepInterval until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	if l.cfg.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				log.Debug().Int("evicted", n).Int("tracked", l.Len()).Msg("Rate limiter sweep")
			}
		}
	}
}
