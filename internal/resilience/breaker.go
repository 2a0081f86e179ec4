// Package resilience keeps callers from hammering a dependency that is
// already failing.
//
// [Breaker] is a three-state circuit breaker. It starts closed and counts
// consecutive failures; once the limit is reached it opens and rejects calls
// with [ErrOpen] until a cooldown passes. It then lets a few probe calls
// through (half-open): if they all succeed it closes again, and any probe
// failure re-opens it.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [Breaker].
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Defaults applied to zero-valued [Config] fields.
const (
	DefaultMaxFailures = 5
	DefaultCooldown    = 30 * time.Second
	DefaultProbes      = 1
)

// Config tunes a [Breaker].
type Config struct {
	// Name labels log lines, e.g. the host a breaker guards.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker.
	MaxFailures int

	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration

	// Probes is the number of successful half-open calls needed to close.
	Probes int

	// IsFailure decides whether an error returned by the guarded call counts
	// against the dependency. Nil counts every non-nil error. Errors that
	// do not count are still returned to the caller.
	IsFailure func(error) bool

	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(name string, from, to State)

	// Now is the clock. Nil uses [time.Now].
	Now func() time.Time
}

// Breaker is safe for concurrent use.
type Breaker struct {
	cfg Config

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	inFlight int // half-open probes started
	passed   int // half-open probes succeeded
}

// New returns a closed Breaker.
func New(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Probes <= 0 {
		cfg.Probes = DefaultProbes
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg}
}

// Do calls fn unless the breaker is open, and records its outcome.
func (b *Breaker) Do(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn()
	b.record(probe, b.cfg.IsFailure(err))
	return err
}

// admit decides whether a call may proceed and whether it is a probe.
func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	var from State
	changed := false
	defer func() {
		b.mu.Unlock()
		if changed {
			b.notify(from, StateHalfOpen)
		}
	}()

	if b.state == StateOpen {
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.Cooldown {
			return false, ErrOpen
		}
		from, changed = b.state, true
		b.state = StateHalfOpen
		b.inFlight, b.passed = 0, 0
	}
	if b.state == StateHalfOpen {
		if b.inFlight >= b.cfg.Probes {
			return false, ErrOpen
		}
		b.inFlight++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) record(probe, failed bool) {
	b.mu.Lock()
	from := b.state
	switch {
	case failed && (probe || b.state == StateClosed):
		b.failures++
		if probe || b.failures >= b.cfg.MaxFailures {
			b.state = StateOpen
			b.openedAt = b.cfg.Now()
		}
	case !failed && probe && b.state == StateHalfOpen:
		b.passed++
		if b.passed >= b.cfg.Probes {
			b.state = StateClosed
			b.failures = 0
		}
	case !failed && b.state == StateClosed:
		b.failures = 0
	}
	to := b.state
	failures := b.failures
	b.mu.Unlock()

	if from != to {
		if to == StateOpen {
			slog.Warn("circuit breaker opened", "name", b.cfg.Name, "consecutive_failures", failures)
		}
		b.notify(from, to)
	}
}

func (b *Breaker) notify(from, to State) {
	slog.Debug("circuit breaker state change", "name", b.cfg.Name, "from", from, "to", to)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}

// State returns the current state. An open breaker whose cooldown has
// passed reports [StateHalfOpen]; the transition itself happens on the next
// call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.cfg.Now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures, b.inFlight, b.passed = 0, 0, 0
	b.mu.Unlock()
	if from != StateClosed {
		b.notify(from, StateClosed)
	}
}
