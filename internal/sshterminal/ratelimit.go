// ratelimit.go throttles terminal login attempts per client address.
//
// Two limits apply to each client:
//
//  1. Sliding window: at most 10 login attempts per minute.
//  2. Consecutive failures: after 5 failed logins in a row the client is
//     blocked for 30s, doubling on every further block up to 5 minutes.
//     A successful login clears the failure count and the block.

package sshterminal

import (
	"fmt"
	"log"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

const (
	loginWindow           = 1 * time.Minute
	loginMaxAttempts      = 10
	loginFailureThreshold = 5
	loginInitialBlock     = 30 * time.Second
	loginMaxBlock         = 5 * time.Minute
)

// ErrRateLimited is returned when a login attempt is rejected by the limiter.
type ErrRateLimited struct {
	Client     string
	Reason     string
	RetryAfter time.Duration
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("too many login attempts from %s: %s (retry after %s)",
		e.Client, e.Reason, e.RetryAfter.Round(time.Second))
}

type clientLoginState struct {
	attempts []time.Time

	consecutiveFailures int
	blockedUntil        time.Time
	blockDuration       time.Duration
}

// LoginLimiter enforces login rate limits per client.
type LoginLimiter struct {
	mu     sync.Mutex
	states map[string]*clientLoginState
	clock  clock.PassiveClock
}

// NewLoginLimiter creates a limiter driven by c, or the wall clock if c is nil.
func NewLoginLimiter(c clock.PassiveClock) *LoginLimiter {
	if c == nil {
		c = clock.RealClock{}
	}
	return &LoginLimiter{
		states: make(map[string]*clientLoginState),
		clock:  c,
	}
}

// Caller must hold l.mu.
func (l *LoginLimiter) getOrCreate(client string) *clientLoginState {
	state, ok := l.states[client]
	if !ok {
		state = &clientLoginState{}
		l.states[client] = state
	}
	return state
}

// Allow records a login attempt from client. It returns nil if the attempt
// may proceed, or an *ErrRateLimited.
func (l *LoginLimiter) Allow(client string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	state := l.getOrCreate(client)

	if !state.blockedUntil.IsZero() && now.Before(state.blockedUntil) {
		return &ErrRateLimited{
			Client:     client,
			Reason:     fmt.Sprintf("blocked after %d consecutive failures", state.consecutiveFailures),
			RetryAfter: state.blockedUntil.Sub(now),
		}
	}

	cutoff := now.Add(-loginWindow)
	recent := state.attempts[:0]
	for _, t := range state.attempts {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	state.attempts = recent

	if len(state.attempts) >= loginMaxAttempts {
		retryAfter := state.attempts[0].Add(loginWindow).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		log.Printf("[terminal] login rate limit: %s exceeded %d attempts in %s", client, loginMaxAttempts, loginWindow)
		return &ErrRateLimited{
			Client:     client,
			Reason:     fmt.Sprintf("exceeded %d attempts in %s", loginMaxAttempts, loginWindow),
			RetryAfter: retryAfter,
		}
	}

	state.attempts = append(state.attempts, now)
	return nil
}

// RecordSuccess clears the failure count and any block for client.
func (l *LoginLimiter) RecordSuccess(client string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.states[client]
	if !ok {
		return
	}
	state.consecutiveFailures = 0
	state.blockedUntil = time.Time{}
	state.blockDuration = 0
}

// RecordFailure counts a failed login and blocks the client once the
// threshold is reached.
func (l *LoginLimiter) RecordFailure(client string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := l.getOrCreate(client)
	state.consecutiveFailures++
	if state.consecutiveFailures < loginFailureThreshold {
		return
	}

	if state.blockDuration == 0 {
		state.blockDuration = loginInitialBlock
	} else {
		state.blockDuration = min(state.blockDuration*2, loginMaxBlock)
	}
	state.blockedUntil = l.clock.Now().Add(state.blockDuration)
	log.Printf("[terminal] login rate limit: %s blocked for %s after %d consecutive failures",
		client, state.blockDuration, state.consecutiveFailures)
}

// Failures returns the current consecutive failure count for client.
func (l *LoginLimiter) Failures(client string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if state, ok := l.states[client]; ok {
		return state.consecutiveFailures
	}
	return 0
}
