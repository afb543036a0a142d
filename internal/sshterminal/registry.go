package sshterminal

import (
	"errors"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"
)

// DefaultGracePeriod is how long a session with no subscriber is kept alive.
const DefaultGracePeriod = 600 * time.Second

// DefaultMaxSessions caps concurrent sessions when no explicit cap is given.
const DefaultMaxSessions = 16

var (
	// ErrSessionNotFound is returned for tokens that were never issued,
	// were logged out, or expired.
	ErrSessionNotFound = errors.New("session expired or invalid")
	// ErrTooManySessions is returned by Create when the session cap is reached.
	ErrTooManySessions = errors.New("too many terminal sessions")
)

// Subscriber is the client connection currently entitled to a session's output.
type Subscriber interface {
	// ID identifies the connection; it is the key for enumeration by subscriber.
	ID() string
	// Deliver hands one chunk of shell output to the client. It must not block.
	Deliver(token, data string)
}

// DestroyReason records which path tore a session down.
type DestroyReason string

const (
	ReasonLogout   DestroyReason = "logout"
	ReasonExpired  DestroyReason = "expired"
	ReasonShutdown DestroyReason = "shutdown"
)

// Session is one logical remote shell. All mutable fields are guarded by
// the owning Registry's mutex.
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time

	conn    io.Closer
	channel Channel

	subscriber Subscriber
	reaper     clock.Timer
	// reaperGen is bumped whenever the pending reaper is armed or disarmed;
	// a firing timer whose generation is stale does nothing.
	reaperGen    uint64
	detachedAt   time.Time
	pumpFinished chan struct{}
}

// Channel returns the session's command stream.
func (s *Session) Channel() Channel { return s.channel }

// PumpDone is closed when the output pump for this session has stopped.
func (s *Session) PumpDone() <-chan struct{} { return s.pumpFinished }

// SessionInfo is a point-in-time view of a session for listings.
type SessionInfo struct {
	Token      string    `json:"token"`
	Username   string    `json:"username"`
	Attached   bool      `json:"attached"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	DetachedAt time.Time `json:"detached_at,omitzero"`
}

// Registry maps session tokens to live sessions. It owns each session's
// connection and channel and runs the output pump and grace-period reaper.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	clock       clock.WithDelayedExecution
	grace       time.Duration
	maxSessions int
	onDestroy   func(SessionInfo, DestroyReason)
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces the wall clock used for reaper timers.
func WithClock(c clock.WithDelayedExecution) Option {
	return func(r *Registry) { r.clock = c }
}

// WithGracePeriod overrides DefaultGracePeriod.
func WithGracePeriod(d time.Duration) Option {
	return func(r *Registry) { r.grace = d }
}

// WithMaxSessions caps concurrent sessions. Zero or negative means no cap.
func WithMaxSessions(n int) Option {
	return func(r *Registry) { r.maxSessions = n }
}

// WithDestroyHook registers fn to run after a session has been torn down.
func WithDestroyHook(fn func(SessionInfo, DestroyReason)) Option {
	return func(r *Registry) { r.onDestroy = fn }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:    make(map[string]*Session),
		clock:       clock.RealClock{},
		grace:       DefaultGracePeriod,
		maxSessions: DefaultMaxSessions,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GracePeriod returns the detach-to-reap window.
func (r *Registry) GracePeriod() time.Duration { return r.grace }

// Full reports whether Create would currently be refused.
func (r *Registry) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxSessions > 0 && len(r.sessions) >= r.maxSessions
}

// Create registers a new session owning conn and ch, attached to sub, and
// starts its output pump. onCreate, if non-nil, runs after the session is
// registered and before the pump delivers any output, so callers can
// announce the token first.
func (r *Registry) Create(conn io.Closer, ch Channel, sub Subscriber, username string, onCreate func(token string)) (string, error) {
	s := &Session{
		Token:        uuid.NewString(),
		Username:     username,
		CreatedAt:    r.clock.Now(),
		conn:         conn,
		channel:      ch,
		subscriber:   sub,
		pumpFinished: make(chan struct{}),
	}

	r.mu.Lock()
	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		return "", ErrTooManySessions
	}
	r.sessions[s.Token] = s
	r.mu.Unlock()

	log.Printf("[terminal] session %s created for user %q", shortToken(s.Token), username)

	if onCreate != nil {
		onCreate(s.Token)
	}
	go r.pump(s)
	return s.Token, nil
}

// Get returns the session for token.
func (r *Registry) Get(token string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	return s, ok
}

// Attach makes sub the session's subscriber, displacing any previous one,
// and cancels a pending reaper. It reports false if token is unknown.
func (r *Registry) Attach(token string, sub Subscriber) bool {
	r.mu.Lock()
	s, ok := r.sessions[token]
	if !ok {
		r.mu.Unlock()
		return false
	}
	pending := r.disarmLocked(s)
	s.subscriber = sub
	s.detachedAt = time.Time{}
	r.mu.Unlock()

	if pending != nil {
		pending.Stop()
	}
	return true
}

// TokensFor returns the tokens currently attached to the subscriber with
// the given id, sorted for stable iteration.
func (r *Registry) TokensFor(subscriberID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var tokens []string
	for token, s := range r.sessions {
		if s.subscriber != nil && s.subscriber.ID() == subscriberID {
			tokens = append(tokens, token)
		}
	}
	sort.Strings(tokens)
	return tokens
}

// Destroy closes the session's channel and connection and forgets it.
// Close errors are swallowed; the entry is always removed. Destroying an
// unknown token is a no-op that reports false.
func (r *Registry) Destroy(token string) bool {
	return r.destroy(token, ReasonLogout)
}

func (r *Registry) destroy(token string, reason DestroyReason) bool {
	r.mu.Lock()
	s, ok := r.sessions[token]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, token)
	pending := r.disarmLocked(s)
	s.subscriber = nil
	info := r.infoLocked(s)
	r.mu.Unlock()

	if pending != nil {
		pending.Stop()
	}
	r.teardown(s, info, reason)
	return true
}

// teardown runs after s has been removed from the map, without the lock held.
func (r *Registry) teardown(s *Session, info SessionInfo, reason DestroyReason) {
	release(s)
	log.Printf("[terminal] session %s destroyed (%s)", shortToken(s.Token), reason)

	if r.onDestroy != nil {
		r.onDestroy(info, reason)
	}
}

// release closes the channel before the connection it runs over.
func release(s *Session) {
	if err := s.channel.Close(); err != nil {
		log.Printf("[terminal] session %s: close channel: %v", shortToken(s.Token), err)
	}
	if err := s.conn.Close(); err != nil {
		log.Printf("[terminal] session %s: close connection: %v", shortToken(s.Token), err)
	}
}

// List returns a snapshot of all sessions ordered by creation time.
func (r *Registry) List() []SessionInfo {
	r.mu.Lock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, r.infoLocked(s))
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll destroys every session. Used on server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	tokens := make([]string, 0, len(r.sessions))
	for token := range r.sessions {
		tokens = append(tokens, token)
	}
	r.mu.Unlock()

	for _, token := range tokens {
		r.destroy(token, ReasonShutdown)
	}
}

func (r *Registry) infoLocked(s *Session) SessionInfo {
	return SessionInfo{
		Token:      s.Token,
		Username:   s.Username,
		Attached:   s.subscriber != nil,
		Active:     s.channel.Active(),
		CreatedAt:  s.CreatedAt,
		DetachedAt: s.detachedAt,
	}
}

// shortToken trims a token for log lines.
func shortToken(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
