package handlers

import (
	"net/http"

	"github.com/falkyre/scoreboard-hub/internal/supervisor"
)

// Supervisor is set from main.go during init.
var Supervisor *supervisor.Client

type processRequest struct {
	Name string `json:"name"`
}

func decodeProcessName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req processRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return "", false
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, `"name" is required.`)
		return "", false
	}
	return req.Name, true
}

// ListProcesses handles GET /api/supervisor/processes.
func ListProcesses(w http.ResponseWriter, r *http.Request) {
	procs, err := Supervisor.Processes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if procs == nil {
		procs = []supervisor.ProcessInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "processes": procs})
}

// StartProcess handles POST /api/supervisor/start.
func StartProcess(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeProcessName(w, r)
	if !ok {
		return
	}
	result, err := Supervisor.Start(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "result": result})
}

// StopProcess handles POST /api/supervisor/stop.
func StopProcess(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeProcessName(w, r)
	if !ok {
		return
	}
	result, err := Supervisor.Stop(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "result": result})
}

// TailProcessStderr handles POST /api/supervisor/tail_stderr.
func TailProcessStderr(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeProcessName(w, r)
	if !ok {
		return
	}
	tail, err := Supervisor.TailStderr(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"log":      tail.Log,
		"offset":   tail.Offset,
		"overflow": tail.Overflow,
	})
}
