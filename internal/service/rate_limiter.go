package service

import (
	"context"
	"sync"
	"time"

	"assessment-jobs/internal/errors"

	"golang.org/x/time/rate"
)

// pruneThreshold is the number of tracked clients above which idle limiters are dropped.
const pruneThreshold = 1024

// RateLimiter implements per-client submission rate limiting
type RateLimiter struct {
	mu sync.Mutex

	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing perMinute submissions per client
// with the given burst. perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   limit,
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
}

// CheckSubmissionRate reports ErrRateLimited when the client has exhausted its budget
func (rl *RateLimiter) CheckSubmissionRate(ctx context.Context, clientKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cl, exists := rl.clients[clientKey]
	if !exists {
		if len(rl.clients) >= pruneThreshold {
			rl.pruneLocked(now)
		}
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientKey] = cl
	}
	cl.lastSeen = now

	if !cl.limiter.AllowN(now, 1) {
		return errors.Mark(errors.Newf("client %s exceeded %d submissions per minute", clientKey, int(float64(rl.limit)*60)), errors.ErrRateLimited)
	}
	return nil
}

// Tracked returns the number of clients currently holding a limiter
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) pruneLocked(now time.Time) {
	for key, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > rl.idleTTL {
			delete(rl.clients, key)
		}
	}
}
