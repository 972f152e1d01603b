// Package resilience provides reliability patterns for external service calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// StateChangeFunc observes circuit transitions. It is called without the
// breaker lock held.
type StateChangeFunc func(name, from, to string)

// Breaker guards one external dependency. It opens after maxFailures
// consecutive failures and rejects calls until timeout elapses. It then lets
// a single probe through (half-open); the probe's outcome closes or reopens
// the circuit, and other calls are rejected while it runs.
type Breaker struct {
	name        string
	mu          sync.Mutex
	state       state
	probing     bool
	failures    int
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	onChange    StateChangeFunc
	now         func() time.Time // for testing
}

// NewBreaker creates a breaker. maxFailures below 1 is treated as 1.
func NewBreaker(name string, maxFailures int, timeout time.Duration) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{
		name:        name,
		maxFailures: maxFailures,
		timeout:     timeout,
		now:         time.Now,
	}
}

// OnStateChange registers fn to observe transitions. Call before use.
func (b *Breaker) OnStateChange(fn StateChangeFunc) { b.onChange = fn }

// Name returns the protected dependency's name.
func (b *Breaker) Name() string { return b.name }

// State returns "closed", "open" or "half-open".
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

// Execute runs fn unless the circuit rejects it with ErrCircuitOpen. A non-nil
// error from fn counts as a failure.
func (b *Breaker) Execute(fn func() error) error {
	from, to, ok := b.admit()
	b.notify(from, to)
	if !ok {
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	from = b.state
	if err != nil {
		b.onFailure()
	} else {
		b.onSuccess()
	}
	to = b.state
	b.mu.Unlock()
	b.notify(from, to)
	return err
}

// admit decides whether a call may run and reports any transition it caused.
func (b *Breaker) admit() (from, to state, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from = b.state
	switch b.state {
	case stateClosed:
		ok = true
	case stateOpen:
		if b.now().Sub(b.openedAt) >= b.timeout {
			b.state = stateHalfOpen
			b.probing = true
			ok = true
		}
	case stateHalfOpen:
		if !b.probing {
			b.probing = true
			ok = true
		}
	}
	return from, b.state, ok
}

func (b *Breaker) notify(from, to state) {
	if from != to && b.onChange != nil {
		b.onChange(b.name, from.String(), to.String())
	}
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure() {
	b.failures++
	b.probing = false
	if b.state == stateHalfOpen || b.failures >= b.maxFailures {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess() {
	b.failures = 0
	b.probing = false
	b.state = stateClosed
}
