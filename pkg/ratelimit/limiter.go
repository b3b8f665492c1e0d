package ratelimit

import (
	"sync"
	"time"
)

// bucket is a single token bucket. Tokens refill continuously at rate
// tokens/second up to burst.
type bucket struct {
	mu       sync.Mutex
	tokens   float64
	burst    float64
	rate     float64
	lastSeen time.Time
}

func newBucket(burst int, rate float64) *bucket {
	return &bucket{
		tokens:   float64(burst),
		burst:    float64(burst),
		rate:     rate,
		lastSeen: time.Now(),
	}
}

func (b *bucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens += now.Sub(b.lastSeen).Seconds() * b.rate
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Limiter tracks a token bucket per key. Idle buckets are dropped after ttl
// so the map does not grow with every client ever seen.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	burst   int
	rate    float64
	ttl     time.Duration
	done    chan struct{}
}

// NewLimiter creates a keyed limiter allowing burst requests at once and
// rate requests per second sustained, per key.
func NewLimiter(burst int, rate float64, ttl time.Duration) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		burst:   burst,
		rate:    rate,
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	if ttl > 0 {
		go l.evictLoop()
	}
	return l
}

// Allow reports whether the request for key is within its budget
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = newBucket(l.burst, l.rate)
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.allow()
}

// Close stops the background eviction loop
func (l *Limiter) Close() {
	close(l.done)
}

func (l *Limiter) evictLoop() {
	ticker := time.NewTicker(l.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for key, b := range l.buckets {
				b.mu.Lock()
				idle := now.Sub(b.lastSeen) > l.ttl
				b.mu.Unlock()
				if idle {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
