package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/falkyre/scoreboard-hub/internal/sshaudit"
)

// AuditLog is set from main.go during init.
var AuditLog *sshaudit.Auditor

// GetTerminalAuditLogs handles GET /api/terminal/audit.
// Query parameters:
//   - event_type (optional): filter by event type
//   - username (optional): filter by user
//   - since (optional): RFC 3339 lower bound on the event time
//   - limit (optional): entries per page (default 50, max 1000)
//   - offset (optional): pagination offset
func GetTerminalAuditLogs(w http.ResponseWriter, r *http.Request) {
	if AuditLog == nil {
		writeError(w, http.StatusServiceUnavailable, "Audit logging not initialized")
		return
	}

	q := r.URL.Query()
	opts := sshaudit.QueryOptions{
		EventType: q.Get("event_type"),
		Username:  q.Get("username"),
	}

	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since")
			return
		}
		opts.Since = &since
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		opts.Limit = limit
	}

	if offsetStr := q.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		opts.Offset = offset
	}

	res, err := AuditLog.Query(opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit logs")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
