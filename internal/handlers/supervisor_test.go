package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/falkyre/scoreboard-hub/internal/supervisor"
)

const startReply = `<?xml version="1.0"?>
<methodResponse><params><param><value><boolean>1</boolean></value></param></params></methodResponse>`

const tailReplyXML = `<?xml version="1.0"?>
<methodResponse><params><param><value><array><data>
<value><string>Traceback: boom</string></value>
<value><int>8192</int></value>
<value><boolean>1</boolean></value>
</data></array></value></param></params></methodResponse>`

// fakeSupervisor answers XML-RPC calls by method name.
func fakeSupervisor(t *testing.T, replies map[string]string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		for method, reply := range replies {
			if strings.Contains(string(body), "<methodName>"+method+"</methodName>") {
				w.Header().Set("Content-Type", "text/xml")
				io.WriteString(w, reply)
				return
			}
		}
		http.Error(w, "unknown method", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	prev := Supervisor
	t.Cleanup(func() { Supervisor = prev })
	Supervisor = supervisor.NewClient(srv.URL+"/RPC2", strings.TrimPrefix(srv.URL, "http://"))
}

func TestStartProcess(t *testing.T) {
	fakeSupervisor(t, map[string]string{"supervisor.startProcess": startReply})

	w := httptest.NewRecorder()
	StartProcess(w, jsonRequest(http.MethodPost, "/api/supervisor/start", map[string]string{"name": "scoreboard"}))
	body := decodeBody(t, w)
	if body["success"] != true || body["result"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestTailProcessStderr(t *testing.T) {
	fakeSupervisor(t, map[string]string{"supervisor.tailProcessStderrLog": tailReplyXML})

	w := httptest.NewRecorder()
	TailProcessStderr(w, jsonRequest(http.MethodPost, "/api/supervisor/tail_stderr", map[string]string{"name": "scoreboard"}))
	body := decodeBody(t, w)
	if body["log"] != "Traceback: boom" || body["offset"] != float64(8192) || body["overflow"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestSupervisorHandlers_RequireName(t *testing.T) {
	fakeSupervisor(t, nil)

	for _, h := range []http.HandlerFunc{StartProcess, StopProcess, TailProcessStderr} {
		w := httptest.NewRecorder()
		h(w, jsonRequest(http.MethodPost, "/api/supervisor", map[string]string{}))
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	}
}

func TestSupervisorHandlers_Unreachable(t *testing.T) {
	prev := Supervisor
	t.Cleanup(func() { Supervisor = prev })
	Supervisor = supervisor.NewClient("http://127.0.0.1:1/RPC2", "127.0.0.1:1")

	w := httptest.NewRecorder()
	ListProcesses(w, httptest.NewRequest(http.MethodGet, "/api/supervisor/processes", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["success"] != false || body["message"] == "" {
		t.Errorf("body = %v", body)
	}

	w = httptest.NewRecorder()
	StopProcess(w, jsonRequest(http.MethodPost, "/api/supervisor/stop", map[string]string{"name": "scoreboard"}))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("stop status = %d", w.Code)
	}
}
