// Package ratelimit gates question intake per client identity with an
// in-memory sliding window. It protects the provider budget from a single
// noisy client; it is intake control, not part of the fan-out pipeline.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result reports one admission decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter is a sliding-window request limiter keyed by client identity.
// Timestamps inside the window are kept per key; expired entries are pruned
// on access and by a background sweep so idle keys do not accumulate.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*window
	limit   int
	span    time.Duration
	now     func() time.Time
}

type window struct {
	timestamps []time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New builds a limiter admitting limit requests per span for each key.
func New(limit int, span time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*window),
		limit:   limit,
		span:    span,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records an admission attempt for the key and reports the decision.
// A denied attempt is not recorded, so hammering while limited does not
// extend the lockout.
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.buckets[key]
	if w == nil {
		w = &window{}
		l.buckets[key] = w
	}
	w.prune(now.Add(-l.span))

	if len(w.timestamps) >= l.limit {
		return Result{
			Allowed:   false,
			Limit:     l.limit,
			Remaining: 0,
			ResetAt:   w.timestamps[0].Add(l.span),
		}
	}

	w.timestamps = append(w.timestamps, now)
	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(w.timestamps),
		ResetAt:   w.timestamps[0].Add(l.span),
	}
}

// prune drops timestamps at or before the cutoff.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for ; i < len(w.timestamps); i++ {
		if w.timestamps[i].After(cutoff) {
			break
		}
	}
	w.timestamps = w.timestamps[i:]
}

// Sweep periodically removes idle keys until the context is cancelled.
func (l *Limiter) Sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweepOnce()
		}
	}
}

func (l *Limiter) sweepOnce() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.span)
	for key, w := range l.buckets {
		w.prune(cutoff)
		if len(w.timestamps) == 0 {
			delete(l.buckets, key)
		}
	}
}
