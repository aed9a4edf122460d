// Package circuit implements a small counting circuit breaker. The reply
// generator keeps one breaker per model provider: after enough consecutive
// failures the breaker opens and the generator routes straight to the fallback
// provider instead of burning an attempt on a provider that is down. Once the
// cooldown elapses the breaker admits probe calls again, so a provider that
// recovers is picked back up without a restart.
package circuit

import (
	"sync"
	"time"
)

// State is the breaker position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// StateChange reports a transition caused by a recorded outcome, so callers
// can log open/close events exactly once.
type StateChange struct {
	Opened bool
	Closed bool
}

// Breaker counts consecutive failures and successes. A run of failures of
// length failureThreshold opens it for the cooldown period; calls are refused
// while open. Once the cooldown expires the breaker goes half-open and admits
// calls again: a run of successes of length successThreshold closes it, a
// failure reopens it for another cooldown.
type Breaker struct {
	mu               sync.Mutex
	name             string
	state            State
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	failures         int
	successes        int
	openUntil        time.Time
	now              func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open the breaker.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many consecutive successes close it again.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithCooldown sets how long the breaker stays open before admitting probes.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock overrides the time source. Tests use it to step past the
// cooldown without sleeping.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// New builds a closed breaker with thresholds 5/2 and a 30s cooldown unless
// overridden.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: 5,
		successThreshold: 2,
		cooldown:         30 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the breaker's identifier.
func (b *Breaker) Name() string { return b.name }

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. An open breaker whose cooldown
// has expired flips to half-open and admits the call as a probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().After(b.openUntil) {
		b.state = StateHalfOpen
		b.successes = 0
	}
	return b.state != StateOpen
}

// IsOpen reports whether a call would currently be refused. An open breaker
// past its cooldown counts as admitting, so health checks see recovery as
// soon as probes would be allowed.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateOpen && !b.now().After(b.openUntil)
}

// RecordFailure notes a failed call. It returns whether the breaker is now
// open and whether this call transitioned it. A half-open probe failing
// reopens immediately for another cooldown.
func (b *Breaker) RecordFailure() (useFallback bool, change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0
	switch b.state {
	case StateOpen:
		return true, StateChange{}
	case StateHalfOpen:
		b.state = StateOpen
		b.openUntil = b.now().Add(b.cooldown)
		return true, StateChange{Opened: true}
	}

	b.failures++
	if b.failures >= b.failureThreshold {
		b.state = StateOpen
		b.openUntil = b.now().Add(b.cooldown)
		b.failures = 0
		return true, StateChange{Opened: true}
	}
	return false, StateChange{}
}

// RecordSuccess notes a successful call. It returns whether the breaker is now
// closed and whether this call transitioned it.
func (b *Breaker) RecordSuccess() (usePrimary bool, change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateClosed {
		return true, StateChange{}
	}

	b.successes++
	if b.successes >= b.successThreshold {
		b.state = StateClosed
		b.successes = 0
		return true, StateChange{Closed: true}
	}
	return false, StateChange{}
}
