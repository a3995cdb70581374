package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned without calling the wrapped function while the
// breaker rejects requests.
var ErrOpen = errors.New("circuit breaker open")

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
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config tunes a CircuitBreaker.
type Config struct {
	// FailureThreshold consecutive failures open a closed breaker.
	FailureThreshold int
	// SuccessThreshold successes while half-open close the breaker.
	SuccessThreshold int
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// MaxRequestsHalfOpen caps the probes admitted per half-open period.
	MaxRequestsHalfOpen int

	// IsFailure decides whether an error counts against the breaker.
	// Nil counts every error.
	IsFailure func(error) bool

	// Now overrides the clock. Nil uses time.Now.
	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		MaxRequestsHalfOpen: 3,
	}
}

// Stats is a point-in-time view of a breaker.
type Stats struct {
	State            State
	FailureCount     int
	SuccessCount     int
	HalfOpenRequests int
	LastFailureTime  time.Time
	StateChangeTime  time.Time
}

// CircuitBreaker stops calling a failing dependency for a while and then
// lets a few probes through to decide whether it recovered.
//
// Every state change starts a new generation. A call admitted in one
// generation that finishes in another is not recorded.
type CircuitBreaker struct {
	cfg Config

	mu         sync.Mutex
	generation uint64
	stats      Stats
	notify     func(from, to State)
}

func New(cfg Config) *CircuitBreaker {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(error) bool { return true }
	}
	return &CircuitBreaker{
		cfg:   cfg,
		stats: Stats{State: StateClosed, StateChangeTime: cfg.Now()},
	}
}

// OnStateChange sets a callback invoked asynchronously on every transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	cb.notify = fn
	cb.mu.Unlock()
}

// Execute runs fn unless the breaker is open. Errors from fn are returned
// unchanged.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gen, state, ok := cb.admit()
	if !ok {
		return fmt.Errorf("%w (%s)", ErrOpen, state)
	}

	err := fn()
	cb.settle(gen, err == nil || !cb.cfg.IsFailure(err))
	return err
}

// Do is Execute for functions returning a value.
func Do[T any](ctx context.Context, cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var result T
	err := cb.Execute(ctx, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}

func (cb *CircuitBreaker) admit() (uint64, State, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.cfg.Now()
	if cb.stats.State == StateOpen && now.Sub(cb.stats.StateChangeTime) >= cb.cfg.Timeout {
		cb.setState(StateHalfOpen, now)
	}

	switch cb.stats.State {
	case StateOpen:
		return cb.generation, StateOpen, false
	case StateHalfOpen:
		if cb.stats.HalfOpenRequests >= cb.cfg.MaxRequestsHalfOpen {
			return cb.generation, StateHalfOpen, false
		}
		cb.stats.HalfOpenRequests++
	}
	return cb.generation, cb.stats.State, true
}

func (cb *CircuitBreaker) settle(gen uint64, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if gen != cb.generation {
		return
	}
	now := cb.cfg.Now()

	if ok {
		cb.stats.SuccessCount++
		cb.stats.FailureCount = 0
		if cb.stats.State == StateHalfOpen && cb.stats.SuccessCount >= cb.cfg.SuccessThreshold {
			cb.setState(StateClosed, now)
		}
		return
	}

	cb.stats.FailureCount++
	cb.stats.SuccessCount = 0
	cb.stats.LastFailureTime = now
	switch {
	case cb.stats.State == StateHalfOpen:
		cb.setState(StateOpen, now)
	case cb.stats.State == StateClosed && cb.stats.FailureCount >= cb.cfg.FailureThreshold:
		cb.setState(StateOpen, now)
	}
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(to State, now time.Time) {
	from := cb.stats.State
	if from == to {
		return
	}
	cb.generation++
	cb.stats = Stats{State: to, StateChangeTime: now, LastFailureTime: cb.stats.LastFailureTime}
	if cb.notify != nil {
		go cb.notify(from, to)
	}
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stats.State
}

func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stats
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed, cb.cfg.Now())
	cb.stats.FailureCount, cb.stats.SuccessCount = 0, 0
}
