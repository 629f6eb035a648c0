// Package ratelimit enforces per-client request quotas using token buckets.
//
// Each Rule names a quota and the routes that draw from it. A client has one
// bucket per quota, so every route in a rule shares the same allowance: the
// blocking and streaming analyze endpoints spend one "analysis" quota no
// matter which session they target.
package ratelimit

import (
	"sync"
	"time"
)

// bucket holds the tokens for one client and quota.
type bucket struct {
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
	lastUsed   time.Time
}

func newBucket(capacity int, refillRate float64, now time.Time) *bucket {
	return &bucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: now,
		lastUsed:   now,
	}
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
	}
	b.lastRefill = now
}

// take consumes one token if available.
func (b *bucket) take(now time.Time) bool {
	b.refill(now)
	b.lastUsed = now
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// status reports whole tokens left and when the bucket will be full again.
func (b *bucket) status(now time.Time) (remaining int, full time.Time) {
	missing := b.capacity - b.tokens
	if missing <= 0 || b.refillRate <= 0 {
		return int(b.tokens), now
	}
	return int(b.tokens), now.Add(time.Duration(missing / b.refillRate * float64(time.Second)))
}

// nextToken is how long until one token is available.
func (b *bucket) nextToken() time.Duration {
	if b.tokens >= 1 || b.refillRate <= 0 {
		return 0
	}
	return time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
}

// Info describes the outcome of one Allow call.
type Info struct {
	Quota      string
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter tracks quotas for many clients. Idle buckets are dropped by a
// background sweep started by NewLimiter; call Stop to end it.
type Limiter struct {
	config *Config
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewLimiter creates a limiter. A nil config uses LoadConfig.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = LoadConfig()
	}
	l := &Limiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}

	if config.Enabled && config.CleanupInterval > 0 {
		l.stop = make(chan struct{})
		l.done = make(chan struct{})
		go l.sweepLoop(config.CleanupInterval)
	}
	return l
}

// Allow spends one token from the quota covering method and path for clientID.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	if !l.config.Enabled || isExempt(path, method) {
		return true, Info{Allowed: true}
	}

	rule := Match(path, method, l.config.Rules)
	if rule == nil {
		rule = l.config.defaultRule()
	}
	if rule.Limit <= 0 {
		return true, Info{Quota: rule.Quota, Allowed: true}
	}

	now := l.now()
	key := clientID + ":" + rule.Quota

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = newBucket(rule.capacity(), rule.refillRate(), now)
		l.buckets[key] = b
	}
	allowed := b.take(now)
	remaining, full := b.status(now)
	var retryAfter time.Duration
	if !allowed {
		retryAfter = b.nextToken()
	}
	l.mu.Unlock()

	return allowed, Info{
		Quota:      rule.Quota,
		Allowed:    allowed,
		Limit:      rule.Limit,
		Remaining:  remaining,
		ResetTime:  full,
		RetryAfter: retryAfter,
	}
}

// Sweep drops buckets unused for longer than the configured idle TTL and
// returns how many were removed.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.config.idleTTL())

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if b.lastUsed.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) sweepLoop(interval time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-l.stop:
			return
		}
	}
}

// Stop ends the background sweep and waits for it to exit. Safe to call twice.
func (l *Limiter) Stop() {
	if l.stop == nil {
		return
	}
	l.stopOnce.Do(func() {
		close(l.stop)
		<-l.done
	})
}
