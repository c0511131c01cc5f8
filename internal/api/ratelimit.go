package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TenantLimiter hands out one token bucket per tenant.
type TenantLimiter struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	buckets map[string]*bucket
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewTenantLimiter(rps float64, burst int) *TenantLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &TenantLimiter{rps: rate.Limit(rps), burst: burst, buckets: map[string]*bucket{}}
}

// Allow consumes a token for tenant. Buckets idle for ten minutes are
// dropped on the next call.
func (l *TenantLimiter) Allow(tenant string) bool {
	now := time.Now()
	l.mu.Lock()
	for k, b := range l.buckets {
		if now.Sub(b.seen) > 10*time.Minute {
			delete(l.buckets, k)
		}
	}
	b := l.buckets[tenant]
	if b == nil {
		b = &bucket{lim: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[tenant] = b
	}
	b.seen = now
	l.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

// RetryAfter is the wait before the next token for tenant, rounded up to a second.
func (l *TenantLimiter) RetryAfter() time.Duration {
	if l.rps <= 0 {
		return time.Second
	}
	d := time.Duration(float64(time.Second) / float64(l.rps))
	if d < time.Second {
		d = time.Second
	}
	return d.Round(time.Second)
}
