package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/falkyre/scoreboard-hub/internal/config"
	"github.com/falkyre/scoreboard-hub/internal/supervisor"
)

func TestGetStatus_DebugForcesSupervisor(t *testing.T) {
	cfg := setupTestEnv(t)
	cfg.Debug = true
	writeFile(t, cfg.VersionFile(), "2025.10.3\n")

	w := httptest.NewRecorder()
	GetStatus(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	body := decodeBody(t, w)
	if body["version"] != "V2025.10.3" {
		t.Errorf("version = %v", body["version"])
	}
	if body["control_hub_version"] != config.Version {
		t.Errorf("control_hub_version = %v", body["control_hub_version"])
	}
	if body["supervisor_available"] != true {
		t.Errorf("supervisor_available = %v, want true in debug", body["supervisor_available"])
	}
}

func TestGetStatus_SupervisorUnreachable(t *testing.T) {
	setupTestEnv(t)
	prev := Supervisor
	t.Cleanup(func() { Supervisor = prev })
	// Port 1 is never listening in the test environment.
	Supervisor = supervisor.NewClient("http://127.0.0.1:1/RPC2", "127.0.0.1:1")

	w := httptest.NewRecorder()
	GetStatus(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	body := decodeBody(t, w)
	if body["supervisor_available"] != false {
		t.Errorf("supervisor_available = %v", body["supervisor_available"])
	}
	if body["version"] != "Unknown" {
		t.Errorf("version = %v, want Unknown without VERSION file", body["version"])
	}
}

func TestListBoards(t *testing.T) {
	cfg := setupTestEnv(t)
	writeFile(t, filepath.Join(cfg.PluginBoardsDir(), "holiday", "plugin.json"),
		`{"boards": [{"id": "holiday_countdown"}]}`)

	w := httptest.NewRecorder()
	ListBoards(w, httptest.NewRequest(http.MethodGet, "/api/boards", nil))

	var boards []struct{ V, N string }
	if err := json.Unmarshal(w.Body.Bytes(), &boards); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, b := range boards {
		if b.V == "holiday_countdown" && b.N == "Holiday Countdown" {
			found = true
		}
	}
	if !found {
		t.Errorf("plugin board missing from %+v", boards)
	}
	if len(boards) != 6 {
		t.Errorf("len = %d, want base boards plus one", len(boards))
	}
}
