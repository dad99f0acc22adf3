package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter spaces out consecutive requests against a third-party site. The
// scrape loop calls Wait before each property fetch.
type Limiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// PolitenessLimiter enforces a minimum gap with optional jitter between
// actions. A zero min/max delay makes Wait return immediately, which is how
// tests disable it.
type PolitenessLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
}

func NewPolitenessLimiter(minDelay, maxDelay time.Duration) *PolitenessLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &PolitenessLimiter{minDelay: minDelay, maxDelay: maxDelay}
}

func (l *PolitenessLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := time.Since(l.lastAction)
	delay := l.delay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	l.lastAction = time.Now()
	return nil
}

func (l *PolitenessLimiter) SetDelay(min, max time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minDelay = min
	l.maxDelay = max
	if l.maxDelay < l.minDelay {
		l.maxDelay = l.minDelay
	}
}

func (l *PolitenessLimiter) delay() time.Duration {
	if l.maxDelay <= l.minDelay {
		return l.minDelay
	}
	jitter := time.Duration(rand.Int63n(int64(l.maxDelay - l.minDelay)))
	return l.minDelay + jitter
}
