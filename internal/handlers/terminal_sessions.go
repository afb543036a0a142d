package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/falkyre/scoreboard-hub/internal/sshterminal"
	"github.com/go-chi/chi/v5"
)

// minTokenPrefix is the shortest prefix accepted when closing a session.
const minTokenPrefix = 8

// Sessions is set from main.go during init.
var Sessions *sshterminal.Registry

// sessionInfo is a terminal session as listed by the API. Full tokens are
// never returned; they are bearer credentials for resume.
type sessionInfo struct {
	TokenPrefix string     `json:"token_prefix"`
	Username    string     `json:"username"`
	Attached    bool       `json:"attached"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	DetachedAt  *time.Time `json:"detached_at,omitempty"`
}

func toSessionInfo(s sshterminal.SessionInfo) sessionInfo {
	info := sessionInfo{
		TokenPrefix: tokenPrefix(s.Token),
		Username:    s.Username,
		Attached:    s.Attached,
		Active:      s.Active,
		CreatedAt:   s.CreatedAt,
	}
	if !s.DetachedAt.IsZero() {
		detached := s.DetachedAt
		info.DetachedAt = &detached
	}
	return info
}

func tokenPrefix(token string) string {
	if len(token) > minTokenPrefix {
		return token[:minTokenPrefix]
	}
	return token
}

// ListTerminalSessions handles GET /api/terminal/sessions.
func ListTerminalSessions(w http.ResponseWriter, r *http.Request) {
	if Sessions == nil {
		writeJSON(w, http.StatusOK, map[string][]sessionInfo{"sessions": {}})
		return
	}

	sessions := Sessions.List()
	result := make([]sessionInfo, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, toSessionInfo(s))
	}
	writeJSON(w, http.StatusOK, map[string][]sessionInfo{"sessions": result})
}

// DeleteTerminalSession handles DELETE /api/terminal/sessions/{prefix}. The
// prefix must identify exactly one live session.
func DeleteTerminalSession(w http.ResponseWriter, r *http.Request) {
	prefix := chi.URLParam(r, "prefix")
	if len(prefix) < minTokenPrefix {
		writeError(w, http.StatusBadRequest, "Session prefix must be at least 8 characters.")
		return
	}
	if Sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "Terminal sessions not available.")
		return
	}

	var matches []string
	for _, s := range Sessions.List() {
		if strings.HasPrefix(s.Token, prefix) {
			matches = append(matches, s.Token)
		}
	}
	switch len(matches) {
	case 0:
		writeError(w, http.StatusNotFound, "Session not found.")
		return
	case 1:
	default:
		writeError(w, http.StatusConflict, "Session prefix is ambiguous.")
		return
	}

	if !Sessions.Destroy(matches[0]) {
		writeError(w, http.StatusNotFound, "Session not found.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}
