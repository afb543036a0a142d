package sshterminal

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Limits applied to the terminal websocket.
const (
	// MaxMessageSize is the largest inbound websocket frame accepted.
	MaxMessageSize = 64 * 1024

	// MessageRateLimit is the sustained number of inbound messages per second.
	MessageRateLimit = 100
	// MessageRateBurst is the burst allowance on top of MessageRateLimit.
	MessageRateBurst = 200
)

// MessageLimiter is a token bucket limiting inbound websocket messages.
type MessageLimiter struct {
	mu         sync.Mutex
	clock      clock.PassiveClock
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
}

// NewMessageLimiter creates a limiter refilling at rate tokens per second
// with the given burst size.
func NewMessageLimiter(c clock.PassiveClock, rate float64, burst int) *MessageLimiter {
	if c == nil {
		c = clock.RealClock{}
	}
	return &MessageLimiter{
		clock:      c,
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: c.Now(),
	}
}

// Allow consumes one token and reports whether the message may be handled.
func (l *MessageLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.lastRefill = now

	l.tokens = min(l.tokens+elapsed*l.refillRate, l.maxTokens)
	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}
