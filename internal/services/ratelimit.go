package services

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP. Scan traffic is
// long-tail (most IPs hit a flyer once and never return), so entries carry
// a last-seen stamp and idle ones are evicted instead of living forever.
type IPRateLimiter struct {
	ips    map[string]*limiterEntry
	mu     sync.Mutex
	r      rate.Limit
	b      int
	logger *slog.Logger
}

func NewIPRateLimiter(r rate.Limit, b int, logger *slog.Logger) *IPRateLimiter {
	return &IPRateLimiter{
		ips:    make(map[string]*limiterEntry),
		r:      r,
		b:      b,
		logger: logger,
	}
}

// StartCleanup evicts entries idle for longer than maxIdle, checking every
// interval. Runs for the life of the process.
func (i *IPRateLimiter) StartCleanup(interval, maxIdle time.Duration) {
	go func() {
		for {
			time.Sleep(interval)
			i.evictIdle(maxIdle)
		}
	}()
}

func (i *IPRateLimiter) evictIdle(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)

	i.mu.Lock()
	defer i.mu.Unlock()

	evicted := 0
	for ip, entry := range i.ips {
		if entry.lastSeen.Before(cutoff) {
			delete(i.ips, ip)
			evicted++
		}
	}
	if evicted > 0 {
		i.logger.Info("Evicted idle rate limiter entries", "evicted", evicted, "remaining", len(i.ips))
	}
}

func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	entry, exists := i.ips[ip]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(i.r, i.b)}
		i.ips[ip] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter
}
