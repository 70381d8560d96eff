package edge

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings configure the circuit breakers of the origins. Each
// origin host has its own breaker.
type BreakerSettings struct {
	// Failures is the number of consecutive failures opening the
	// breaker. Zero disables the breakers.
	Failures int

	// Timeout is the time an open breaker waits before letting trial
	// requests through.
	Timeout time.Duration

	// HalfOpenRequests is the number of trial requests in the half
	// open state.
	HalfOpenRequests int
}

type breakers struct {
	settings BreakerSettings
	mu       sync.Mutex
	hosts    map[string]*gobreaker.TwoStepCircuitBreaker
}

func newBreakers(s BreakerSettings) *breakers {
	return &breakers{settings: s, hosts: make(map[string]*gobreaker.TwoStepCircuitBreaker)}
}

func (b *breakers) get(host string) *gobreaker.TwoStepCircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.hosts[host]; ok {
		return cb
	}

	failures := uint32(b.settings.Failures)
	cb := gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: uint32(b.settings.HalfOpenRequests),
		Timeout:     b.settings.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
	})

	b.hosts[host] = cb
	return cb
}

// allow returns the function reporting the outcome of the request, or
// false when the breaker of the host is open.
func (b *breakers) allow(host string) (func(bool), bool) {
	if b.settings.Failures <= 0 {
		return func(bool) {}, true
	}

	done, err := b.get(host).Allow()

	// this error can only indicate that the breaker is not closed
	if err != nil {
		return nil, false
	}

	return done, true
}
