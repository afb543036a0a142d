package handlers

import (
	"log"
	"net/http"

	"github.com/falkyre/scoreboard-hub/internal/onboard"
)

// Onboard is set from main.go during init.
var Onboard *onboard.Onboarder

type setupRequest struct {
	Team         string `json:"team"`
	BoardCommand string `json:"board_command"`
	UpdateCheck  bool   `json:"update_check"`
}

func decodeSetupRequest(w http.ResponseWriter, r *http.Request) (setupRequest, bool) {
	var req setupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return req, false
	}
	return req, true
}

func writeSetupResult(w http.ResponseWriter, message string, err error) {
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": message})
}

// SetupCreateConfig handles POST /api/setup/config.
func SetupCreateConfig(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSetupRequest(w, r)
	if !ok {
		return
	}
	if req.Team == "" {
		writeError(w, http.StatusBadRequest, `"team" is required.`)
		return
	}
	msg, err := Onboard.CreateConfig(req.Team)
	writeSetupResult(w, msg, err)
}

// SetupTestScript handles POST /api/setup/test-script.
func SetupTestScript(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSetupRequest(w, r)
	if !ok {
		return
	}
	if req.BoardCommand == "" {
		writeError(w, http.StatusBadRequest, `"board_command" is required.`)
		return
	}
	msg, err := Onboard.GenerateTestScript(req.BoardCommand)
	writeSetupResult(w, msg, err)
}

// SetupSupervisor handles POST /api/setup/supervisor.
func SetupSupervisor(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSetupRequest(w, r)
	if !ok {
		return
	}
	if req.BoardCommand == "" {
		writeError(w, http.StatusBadRequest, `"board_command" is required.`)
		return
	}
	msg, err := Onboard.UpdateSupervisor(r.Context(), req.BoardCommand, req.UpdateCheck)
	writeSetupResult(w, msg, err)
}

// SetupFinish handles POST /api/setup/finish.
func SetupFinish(w http.ResponseWriter, r *http.Request) {
	log.Printf("[onboard] finishing setup for %s", r.RemoteAddr)
	msg, err := Onboard.Finish()
	writeSetupResult(w, msg, err)
}
