package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/falkyre/scoreboard-hub/internal/logoeditor"
)

// LogoEditor is set from main.go during init.
var LogoEditor *logoeditor.Manager

type launchRequest struct {
	Venv string `json:"venv"`
	// Port arrives as a number or a numeric string.
	Port interface{} `json:"port"`
}

// requestPort parses a port from a query or body value, falling back to
// the default editor port.
func requestPort(v interface{}) int {
	var port int
	switch p := v.(type) {
	case float64:
		port = int(p)
	case string:
		port, _ = strconv.Atoi(p)
	}
	if port <= 0 || port > 65535 {
		return logoeditor.DefaultPort
	}
	return port
}

// GetLogoEditorStatus handles GET /api/logo-editor/status?port=N.
func GetLogoEditorStatus(w http.ResponseWriter, r *http.Request) {
	port := requestPort(r.URL.Query().Get("port"))
	writeJSON(w, http.StatusOK, LogoEditor.Status(r.Context(), port))
}

// LaunchLogoEditor handles POST /api/logo-editor/launch.
func LaunchLogoEditor(w http.ResponseWriter, r *http.Request) {
	log.Printf("[logo-editor] launch requested")
	var req launchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	st, err := LogoEditor.Launch(r.Context(), req.Venv, requestPort(req.Port))
	if err != nil {
		var flaskErr *logoeditor.FlaskMissingError
		switch {
		case errors.Is(err, logoeditor.ErrScriptMissing):
			writeError(w, http.StatusNotFound, "logo_editor.py not found.")
		case errors.As(err, &flaskErr):
			writeError(w, http.StatusBadRequest, flaskErr.Error())
		default:
			log.Printf("[logo-editor] launch failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to launch: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logo Editor launch command issued.",
		"port":    st.Port,
	})
}

// StopLogoEditor handles POST /api/logo-editor/stop.
func StopLogoEditor(w http.ResponseWriter, r *http.Request) {
	log.Printf("[logo-editor] stop requested")
	if err := LogoEditor.Stop(); err != nil {
		if errors.Is(err, logoeditor.ErrNotTracked) {
			writeError(w, http.StatusNotFound, "No running Logo Editor tracked.")
			return
		}
		log.Printf("[logo-editor] stop failed: %v", err)
		writeError(w, http.StatusInternalServerError, "An error occurred: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Logo Editor stopped."})
}
