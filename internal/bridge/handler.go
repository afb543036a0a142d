package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/falkyre/scoreboard-hub/internal/logutil"
	"github.com/falkyre/scoreboard-hub/internal/sshaudit"
	"github.com/falkyre/scoreboard-hub/internal/sshterminal"
)

// Client is one websocket connection. It receives session output as the
// registry's subscriber and protocol events through Emit.
type Client interface {
	sshterminal.Subscriber
	// Emit queues an event for the client. It must not block.
	Emit(event string, payload any)
	// RemoteAddr is the client address used for login throttling and audit.
	RemoteAddr() string
}

// Dialer opens an authenticated remote shell.
type Dialer interface {
	Connect(ctx context.Context, username, password string) (io.Closer, sshterminal.Channel, error)
}

// Auditor records terminal lifecycle events. *sshaudit.Auditor satisfies it.
type Auditor interface {
	Log(entry sshaudit.AuditEntry) error
}

// Handler implements the terminal protocol on top of a Registry.
type Handler struct {
	registry *sshterminal.Registry
	dialer   Dialer
	limiter  *sshterminal.LoginLimiter
	audit    Auditor
}

// NewHandler creates a protocol handler. limiter and audit may be nil.
func NewHandler(registry *sshterminal.Registry, dialer Dialer, limiter *sshterminal.LoginLimiter, audit Auditor) *Handler {
	return &Handler{
		registry: registry,
		dialer:   dialer,
		limiter:  limiter,
		audit:    audit,
	}
}

// Dispatch decodes one inbound frame and runs the matching operation.
// Malformed frames and unknown events are logged and ignored.
func (h *Handler) Dispatch(ctx context.Context, c Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("[bridge] %s: malformed frame: %v", c.ID(), err)
		return
	}

	switch env.Event {
	case EventLogin:
		var req LoginRequest
		if !decode(c, env, &req) {
			return
		}
		h.Login(ctx, c, req.Username, req.Password)
	case EventResume:
		var req ResumeRequest
		if !decode(c, env, &req) {
			return
		}
		h.Resume(c, req.Token)
	case EventInput:
		var req InputRequest
		if !decode(c, env, &req) {
			return
		}
		h.Input(req.Token, req.Data)
	case EventLogout:
		var req LogoutRequest
		if !decode(c, env, &req) {
			return
		}
		h.Logout(req.Token)
	default:
		log.Printf("[bridge] %s: unknown event %q", c.ID(), logutil.SanitizeForLog(env.Event))
	}
}

func decode(c Client, env Envelope, v any) bool {
	if len(env.Data) == 0 {
		env.Data = []byte("{}")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		log.Printf("[bridge] %s: bad %s payload: %v", c.ID(), logutil.SanitizeForLog(env.Event), err)
		return false
	}
	return true
}

// Login connects to the remote host as username and, on success, registers
// a session attached to c. The outcome is reported to c as login_status;
// success is emitted before any shell output.
func (h *Handler) Login(ctx context.Context, c Client, username, password string) {
	remote := c.RemoteAddr()
	safeUser := logutil.SanitizeForLog(username)

	if h.limiter != nil {
		if err := h.limiter.Allow(remote); err != nil {
			var rl *sshterminal.ErrRateLimited
			msg := "Too many login attempts."
			if errors.As(err, &rl) {
				msg = fmt.Sprintf("Too many login attempts. Try again in %s.", rl.RetryAfter.Round(time.Second))
			}
			h.record(sshaudit.EventRateLimited, "", username, remote, err.Error())
			c.Emit(EventLoginStatus, LoginStatus{Status: StatusError, Message: msg})
			return
		}
	}

	if h.registry.Full() {
		log.Printf("[bridge] login for user %q refused: %v", safeUser, sshterminal.ErrTooManySessions)
		c.Emit(EventLoginStatus, LoginStatus{Status: StatusError, Message: "Too many open terminal sessions."})
		return
	}

	conn, ch, err := h.dialer.Connect(ctx, username, password)
	if err != nil {
		log.Printf("[bridge] SSH login failed for user %q: %v", safeUser, err)
		if h.limiter != nil && errors.Is(err, sshterminal.ErrAuthentication) {
			h.limiter.RecordFailure(remote)
		}
		h.record(sshaudit.EventLoginFailed, "", username, remote, err.Error())
		c.Emit(EventLoginStatus, LoginStatus{Status: StatusError, Message: err.Error()})
		return
	}

	token, err := h.registry.Create(conn, ch, c, username, func(token string) {
		c.Emit(EventLoginStatus, LoginStatus{Status: StatusSuccess, Token: token})
	})
	if err != nil {
		ch.Close()
		conn.Close()
		log.Printf("[bridge] login for user %q refused: %v", safeUser, err)
		c.Emit(EventLoginStatus, LoginStatus{Status: StatusError, Message: "Too many open terminal sessions."})
		return
	}

	if h.limiter != nil {
		h.limiter.RecordSuccess(remote)
	}
	h.record(sshaudit.EventLoginSuccess, token, username, remote, "")
	log.Printf("[bridge] SSH login successful for user %q (session %s)", safeUser, short(token))
}

// Resume attaches c to an existing session. If the session's shell is no
// longer active, c is told so right after the success status.
func (h *Handler) Resume(c Client, token string) {
	s, ok := h.registry.Get(token)
	if !ok || !h.registry.Attach(token, c) {
		c.Emit(EventLoginStatus, LoginStatus{Status: StatusError, Message: SessionInvalidMessage})
		return
	}

	c.Emit(EventLoginStatus, LoginStatus{Status: StatusSuccess, Token: token})
	h.record(sshaudit.EventResumed, token, s.Username, c.RemoteAddr(), "")
	log.Printf("[bridge] session %s resumed by %s", short(token), c.ID())

	if !s.Channel().Active() {
		c.Emit(EventResponse, Response{Data: SessionClosedNotice, Token: token})
	}
}

// Input writes data to the session's shell. Unknown tokens are ignored and
// write errors are only logged.
func (h *Handler) Input(token, data string) {
	s, ok := h.registry.Get(token)
	if !ok {
		return
	}
	if _, err := io.WriteString(s.Channel(), data); err != nil {
		log.Printf("[bridge] session %s: write input: %v", short(token), err)
	}
}

// Logout destroys the session. Logging out an unknown token is a no-op.
// The registry's destroy hook records the audit event.
func (h *Handler) Logout(token string) {
	h.registry.Destroy(token)
}

// Disconnect detaches every session routed to c. The sessions stay alive
// for the registry's grace period.
func (h *Handler) Disconnect(c Client) {
	for _, token := range h.registry.DetachSubscriber(c.ID()) {
		h.record(sshaudit.EventDetached, token, "", c.RemoteAddr(), "")
	}
}

func (h *Handler) record(event, token, username, remote, details string) {
	if h.audit == nil {
		return
	}
	h.audit.Log(sshaudit.AuditEntry{
		EventType:    event,
		SessionToken: token,
		Username:     username,
		SourceIP:     remote,
		Details:      details,
	})
}

func short(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
