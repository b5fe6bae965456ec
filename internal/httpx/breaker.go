package httpx

import (
	"sync"
	"time"

	"github.com/gamedex/catalog/errs"
)

// BreakerState enumerates circuit breaker phases.
type BreakerState int

const (
	// BreakerClosed allows requests through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects requests until the cooldown elapses.
	BreakerOpen
	// BreakerHalfOpen admits a single trial request.
	BreakerHalfOpen
)

// Breaker is a per-domain consecutive-failure circuit breaker. After trip
// consecutive failures the breaker opens for the cooldown window, then admits
// one trial request before deciding to close or re-open.
type Breaker struct {
	mu       sync.Mutex
	domain   string
	trip     int
	cooldown time.Duration
	clock    func() time.Time

	state    BreakerState
	failures int
	openedAt time.Time
	trialing bool
}

// NewBreaker constructs a breaker for the domain.
func NewBreaker(domain string, trip int, cooldown time.Duration) *Breaker {
	if trip <= 0 {
		trip = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		domain:   domain,
		trip:     trip,
		cooldown: cooldown,
		clock:    time.Now,
		state:    BreakerClosed,
	}
}

// WithClock overrides the breaker clock, primarily for testing.
func (b *Breaker) WithClock(clock func() time.Time) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if clock != nil {
		b.clock = clock
	}
	return b
}

// Allow reports whether a request may proceed. When the breaker is open and
// the cooldown has not elapsed it fails fast with a circuit_open error.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if b.clock().Sub(b.openedAt) < b.cooldown {
			return errs.New(b.domain, errs.CodeCircuitOpen,
				errs.WithMessage("circuit open"),
				errs.WithField("domain", b.domain))
		}
		b.state = BreakerHalfOpen
		b.trialing = true
		return nil
	default: // BreakerHalfOpen
		if b.trialing {
			return errs.New(b.domain, errs.CodeCircuitOpen,
				errs.WithMessage("circuit half-open, trial in flight"),
				errs.WithField("domain", b.domain))
		}
		b.trialing = true
		return nil
	}
}

// RecordSuccess closes the breaker and clears the failure run.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.trialing = false
}

// RecordFailure extends the failure run, tripping the breaker once the run
// reaches the threshold. A failed half-open trial re-opens immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerHalfOpen {
		b.open()
		return
	}
	b.failures++
	if b.failures >= b.trip {
		b.open()
	}
}

// State returns the current breaker phase.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) open() {
	b.state = BreakerOpen
	b.failures = 0
	b.trialing = false
	b.openedAt = b.clock()
}
