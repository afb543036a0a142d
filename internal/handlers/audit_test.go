package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/falkyre/scoreboard-hub/internal/database"
	"github.com/falkyre/scoreboard-hub/internal/sshaudit"
)

func setupAudit(t *testing.T) *sshaudit.Auditor {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })

	prev, prevDB := AuditLog, DB
	t.Cleanup(func() { AuditLog, DB = prev, prevDB })
	AuditLog = sshaudit.NewAuditor(db, 30)
	DB = db
	return AuditLog
}

func TestGetTerminalAuditLogs(t *testing.T) {
	a := setupAudit(t)
	a.Log(sshaudit.AuditEntry{EventType: sshaudit.EventLoginSuccess, SessionToken: "0123456789abcdef", Username: "pi"})
	a.Log(sshaudit.AuditEntry{EventType: sshaudit.EventLoginFailed, Username: "root"})

	w := httptest.NewRecorder()
	GetTerminalAuditLogs(w, httptest.NewRequest(http.MethodGet, "/api/terminal/audit?event_type=login_success", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var res sshaudit.QueryResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || len(res.Entries) != 1 || res.Entries[0].TokenPrefix != "01234567" {
		t.Errorf("result = %+v", res)
	}
}

func TestGetTerminalAuditLogs_BadParams(t *testing.T) {
	setupAudit(t)

	for _, q := range []string{"limit=0", "limit=x", "offset=-1", "since=yesterday"} {
		w := httptest.NewRecorder()
		GetTerminalAuditLogs(w, httptest.NewRequest(http.MethodGet, "/api/terminal/audit?"+q, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

func TestGetTerminalAuditLogs_NotInitialized(t *testing.T) {
	prev := AuditLog
	t.Cleanup(func() { AuditLog = prev })
	AuditLog = nil

	w := httptest.NewRecorder()
	GetTerminalAuditLogs(w, httptest.NewRequest(http.MethodGet, "/api/terminal/audit", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", w.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	setupAudit(t)

	w := httptest.NewRecorder()
	HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	body := decodeBody(t, w)
	if body["status"] != "healthy" || body["database"] != "connected" {
		t.Errorf("body = %v", body)
	}

	DB = nil
	w = httptest.NewRecorder()
	HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if body := decodeBody(t, w); body["status"] != "unhealthy" {
		t.Errorf("body without db = %v", body)
	}
}
