package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/remoteguard/internal/config"
	"github.com/LavishGent/remoteguard/internal/types"
)

// State is a circuit breaker state.
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the lowercase state name used in logs and metric tags.
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

// CircuitBreakerOptions configures when a breaker opens and how long it stays open.
type CircuitBreakerOptions struct {
	Name             string
	OpenTimeout      time.Duration
	FailureThreshold int
}

// DefaultCircuitBreakerOptions opens after 5 consecutive failures for one minute.
func DefaultCircuitBreakerOptions() CircuitBreakerOptions {
	return CircuitBreakerOptions{Name: "remote", FailureThreshold: 5, OpenTimeout: time.Minute}
}

// AggressiveCircuitBreakerOptions trips early and recovers quickly.
func AggressiveCircuitBreakerOptions() CircuitBreakerOptions {
	return CircuitBreakerOptions{Name: "remote", FailureThreshold: 3, OpenTimeout: 30 * time.Second}
}

// ConservativeCircuitBreakerOptions tolerates more failures and waits longer.
func ConservativeCircuitBreakerOptions() CircuitBreakerOptions {
	return CircuitBreakerOptions{Name: "remote", FailureThreshold: 10, OpenTimeout: 5 * time.Minute}
}

// CircuitBreakerOptionsFromConfig maps the circuitBreaker config section onto
// breaker options.
func CircuitBreakerOptionsFromConfig(cfg config.CircuitBreakerConfig) CircuitBreakerOptions {
	return CircuitBreakerOptions{
		Name:             cfg.Name,
		FailureThreshold: cfg.FailureThreshold,
		OpenTimeout:      cfg.OpenTimeout,
	}
}

// BreakerOption customizes a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithBreakerClock replaces the breaker's time source.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) {
		if now != nil {
			cb.now = now
		}
	}
}

// CircuitBreakerExecutor is satisfied by CircuitBreaker and DisabledCircuitBreaker.
type CircuitBreakerExecutor interface {
	Execute(ctx context.Context, fn func(context.Context) error) error
	State() State
	Stats() CircuitBreakerStats
	Reset()
	SetOnStateChange(fn func(from, to State))
}

// CircuitBreaker gates calls to a failing dependency. All check-then-act
// sequences run under mu; Stats reads a snapshot published on every change.
type CircuitBreaker struct {
	now func() time.Time

	name             string
	failureThreshold int
	openTimeout      time.Duration

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
	nextAttemptTime time.Time
	probeInFlight   bool
	totalSuccesses  int64
	totalFailures   int64
	totalRejected   int64
	onStateChange   func(from, to State)

	snapshot atomic.Pointer[CircuitBreakerStats]
}

// stateTransition allows callbacks to be invoked outside the mutex to prevent deadlocks.
type stateTransition struct {
	from     State
	to       State
	callback func(from, to State)
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(opts CircuitBreakerOptions, options ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		now:              time.Now,
		name:             opts.Name,
		failureThreshold: opts.FailureThreshold,
		openTimeout:      opts.OpenTimeout,
		state:            StateClosed,
	}

	if cb.name == "" {
		cb.name = "remote"
	}
	if cb.failureThreshold <= 0 {
		cb.failureThreshold = 5
	}
	if cb.openTimeout <= 0 {
		cb.openTimeout = time.Minute
	}

	for _, opt := range options {
		opt(cb)
	}

	cb.publishLocked()
	return cb
}

// Name returns the breaker's name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs fn if the breaker admits the call. Cancellation outcomes are
// returned unchanged and never counted.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return types.NewCancellationError(err)
	}

	probe, transition, err := cb.admit()
	transition.invoke()
	if err != nil {
		return err
	}

	completed := false
	defer func() {
		if !completed {
			cb.release(probe)
		}
	}()

	err = fn(ctx)
	completed = true

	switch {
	case err == nil:
		cb.onSuccess()
	case IsCancellation(err) || ctx.Err() != nil:
		cb.release(probe)
	default:
		cb.onFailure()
	}
	return err
}

// admit decides whether a call may proceed and whether it is the half-open probe.
func (cb *CircuitBreaker) admit() (bool, *stateTransition, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Before(cb.nextAttemptTime) {
			return false, nil, cb.rejectLocked()
		}
		transition := cb.transitionLocked(StateHalfOpen)
		cb.probeInFlight = true
		cb.publishLocked()
		return true, transition, nil

	case StateHalfOpen:
		if cb.probeInFlight {
			return false, nil, cb.rejectLocked()
		}
		cb.probeInFlight = true
		return true, nil, nil

	default:
		return false, nil, nil
	}
}

func (cb *CircuitBreaker) rejectLocked() error {
	cb.totalRejected++
	cb.publishLocked()
	return &types.CircuitOpenError{Name: cb.name, NextAttemptTime: cb.nextAttemptTime}
}

func (cb *CircuitBreaker) release(probe bool) {
	if !probe {
		return
	}
	cb.mu.Lock()
	cb.probeInFlight = false
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) onSuccess() {
	var transition *stateTransition

	cb.mu.Lock()
	cb.totalSuccesses++
	cb.failureCount = 0
	cb.probeInFlight = false
	if cb.state != StateClosed {
		transition = cb.transitionLocked(StateClosed)
	}
	cb.publishLocked()
	cb.mu.Unlock()

	transition.invoke()
}

func (cb *CircuitBreaker) onFailure() {
	var transition *stateTransition

	cb.mu.Lock()
	cb.totalFailures++
	cb.failureCount++
	cb.lastFailureTime = cb.now()
	switch cb.state {
	case StateHalfOpen:
		cb.probeInFlight = false
		transition = cb.transitionLocked(StateOpen)
	case StateClosed:
		if cb.failureCount >= cb.failureThreshold {
			transition = cb.transitionLocked(StateOpen)
		}
	}
	cb.publishLocked()
	cb.mu.Unlock()

	transition.invoke()
}

// transitionLocked changes the state. Must be called while holding the mutex;
// the returned transition must be invoked after releasing it.
func (cb *CircuitBreaker) transitionLocked(newState State) *stateTransition {
	oldState := cb.state
	if oldState == newState {
		return nil
	}

	switch newState {
	case StateClosed:
		cb.failureCount = 0
		cb.nextAttemptTime = time.Time{}
	case StateOpen:
		cb.nextAttemptTime = cb.now().Add(cb.openTimeout)
	}
	cb.state = newState

	if cb.onStateChange == nil {
		return nil
	}
	return &stateTransition{from: oldState, to: newState, callback: cb.onStateChange}
}

func (cb *CircuitBreaker) publishLocked() {
	cb.snapshot.Store(&CircuitBreakerStats{
		Name:             cb.name,
		State:            cb.state,
		FailureCount:     cb.failureCount,
		FailureThreshold: cb.failureThreshold,
		OpenTimeout:      cb.openTimeout,
		LastFailureTime:  cb.lastFailureTime,
		NextAttemptTime:  cb.nextAttemptTime,
		TotalSuccesses:   cb.totalSuccesses,
		TotalFailures:    cb.totalFailures,
		TotalRejected:    cb.totalRejected,
	})
}

func (t *stateTransition) invoke() {
	if t != nil && t.callback != nil {
		t.callback(t.from, t.to)
	}
}

// State returns the current state. An open breaker whose timeout has passed
// still reports open until the next call moves it to half-open.
func (cb *CircuitBreaker) State() State {
	return cb.snapshot.Load().State
}

// SetOnStateChange sets a callback for state changes. The callback runs
// synchronously after the lock is released and may read breaker state.
func (cb *CircuitBreaker) SetOnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Reset forces the breaker closed and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	var transition *stateTransition

	cb.mu.Lock()
	cb.probeInFlight = false
	transition = cb.transitionLocked(StateClosed)
	cb.failureCount = 0
	cb.publishLocked()
	cb.mu.Unlock()

	transition.invoke()
}

// Stats returns the most recently published statistics without locking.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	return *cb.snapshot.Load()
}

// CircuitBreakerStats contains circuit breaker statistics.
type CircuitBreakerStats struct {
	LastFailureTime  time.Time
	NextAttemptTime  time.Time
	Name             string
	OpenTimeout      time.Duration
	State            State
	FailureCount     int
	FailureThreshold int
	TotalSuccesses   int64
	TotalFailures    int64
	TotalRejected    int64
}

// DisabledCircuitBreaker is a no-op circuit breaker that allows all requests.
type DisabledCircuitBreaker struct{}

// NewDisabledCircuitBreaker creates a disabled circuit breaker.
func NewDisabledCircuitBreaker() *DisabledCircuitBreaker {
	return &DisabledCircuitBreaker{}
}

// Execute runs fn without circuit breaker protection.
func (cb *DisabledCircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return types.NewCancellationError(err)
	}
	return fn(ctx)
}

// A disabled breaker is always closed and ignores resets and callbacks.
func (cb *DisabledCircuitBreaker) State() State                             { return StateClosed }
func (cb *DisabledCircuitBreaker) Stats() CircuitBreakerStats               { return CircuitBreakerStats{Name: "disabled"} }
func (cb *DisabledCircuitBreaker) Reset()                                   {}
func (cb *DisabledCircuitBreaker) SetOnStateChange(fn func(from, to State)) {}
