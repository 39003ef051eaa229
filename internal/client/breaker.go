package client

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// circuitBreaker blocks all requests for delay once the site starts rate limiting us.
type circuitBreaker struct {
	mu        sync.RWMutex
	openUntil time.Time
	delay     time.Duration
	now       func() time.Time
}

func newCircuitBreaker(delay time.Duration) *circuitBreaker {
	return &circuitBreaker{delay: delay, now: time.Now}
}

func (b *circuitBreaker) isOpen() bool {
	b.mu.RLock()
	now := b.now()
	open := now.Before(b.openUntil)
	tripped := !b.openUntil.IsZero()
	b.mu.RUnlock()

	if !open && tripped {
		b.mu.Lock()
		if !b.openUntil.IsZero() && !now.Before(b.openUntil) {
			b.openUntil = time.Time{}
			log.Infof("✅ Circuit breaker automatically re-enabled - requests are now allowed")
		}
		b.mu.Unlock()
	}

	return open
}

func (b *circuitBreaker) trip() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.openUntil = b.now().Add(b.delay)
	log.Warnf("🚫 Circuit breaker activated! All requests disabled until %v", b.openUntil.Format("15:04:05"))
}

func (b *circuitBreaker) remaining() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()

	remaining := b.openUntil.Sub(b.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
