package sshterminal

import (
	"log"

	"k8s.io/utils/clock"
)

// Detach clears the session's subscriber and arms the grace-period reaper.
// Output produced while detached is dropped. Detaching an unknown or
// already-detached token is a no-op.
func (r *Registry) Detach(token string) {
	r.detach(token, "")
}

// DetachSubscriber detaches every session currently routed to the
// subscriber with the given id and returns their tokens. Each token is
// checked again under the lock, so a session that another connection
// resumed in the meantime is left alone.
func (r *Registry) DetachSubscriber(subscriberID string) []string {
	var detached []string
	for _, token := range r.TokensFor(subscriberID) {
		if r.detach(token, subscriberID) {
			detached = append(detached, token)
		}
	}
	return detached
}

func (r *Registry) detach(token, subscriberID string) bool {
	now := r.clock.Now()

	r.mu.Lock()
	s, ok := r.sessions[token]
	if !ok || s.subscriber == nil {
		r.mu.Unlock()
		return false
	}
	if subscriberID != "" && s.subscriber.ID() != subscriberID {
		r.mu.Unlock()
		return false
	}
	s.subscriber = nil
	s.detachedAt = now
	stale := r.disarmLocked(s)
	gen := s.reaperGen
	r.mu.Unlock()

	if stale != nil {
		stale.Stop()
	}

	// The timer is created without the registry lock held: a fake clock may
	// run the callback synchronously from Step, and reap takes the lock.
	timer := r.clock.AfterFunc(r.grace, func() { r.reap(token, gen) })

	r.mu.Lock()
	if cur, ok := r.sessions[token]; ok && cur == s && s.reaperGen == gen && s.subscriber == nil {
		s.reaper = timer
		r.mu.Unlock()
		log.Printf("[terminal] session %s detached, expires in %s", shortToken(token), r.grace)
		return true
	}
	r.mu.Unlock()
	timer.Stop()
	return true
}

// disarmLocked invalidates any pending reaper and returns its timer so the
// caller can stop it after releasing the lock.
func (r *Registry) disarmLocked(s *Session) clock.Timer {
	s.reaperGen++
	t := s.reaper
	s.reaper = nil
	return t
}

// reap is the reaper callback. It destroys the session only if the reaper
// that fired is still the current one and nobody has re-attached. It must
// not touch the clock or the firing timer.
func (r *Registry) reap(token string, gen uint64) {
	r.mu.Lock()
	s, ok := r.sessions[token]
	if !ok || s.reaperGen != gen || s.subscriber != nil {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, token)
	s.reaper = nil
	s.reaperGen++
	info := r.infoLocked(s)
	r.mu.Unlock()

	r.teardown(s, info, ReasonExpired)
}
