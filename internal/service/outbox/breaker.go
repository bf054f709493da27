package outbox

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// circuitBreaker приостанавливает публикацию после maxFailures подряд недоставленных сообщений.
// Пока он открыт, сообщения остаются pending и не уходят в DLQ.
type circuitBreaker struct {
	mu           sync.Mutex
	maxFailures  int
	cooldown     time.Duration
	failures     int
	openedAt     time.Time
	state        breakerState
	onTransition func(from, to breakerState)
}

func newCircuitBreaker(maxFailures int, cooldown time.Duration) *circuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	return &circuitBreaker{maxFailures: maxFailures, cooldown: cooldown}
}

// allow сообщает, можно ли публиковать. По истечении cooldown пропускает пробную попытку.
func (cb *circuitBreaker) allow(now time.Time) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != breakerOpen {
		return true
	}
	if now.Sub(cb.openedAt) < cb.cooldown {
		return false
	}
	cb.transition(breakerHalfOpen)
	return true
}

// failure учитывает недоставленное сообщение и возвращает true, если breaker открыт.
func (cb *circuitBreaker) failure(now time.Time) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == breakerHalfOpen || cb.failures >= cb.maxFailures {
		cb.openedAt = now
		cb.transition(breakerOpen)
		return true
	}
	return false
}

func (cb *circuitBreaker) success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.transition(breakerClosed)
}

func (cb *circuitBreaker) current() breakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// transition вызывается под mu.
func (cb *circuitBreaker) transition(to breakerState) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if cb.onTransition != nil {
		cb.onTransition(from, to)
	}
}
