package handlers

import (
	"net/http"

	"github.com/falkyre/scoreboard-hub/internal/config"
	"github.com/falkyre/scoreboard-hub/internal/scoreboard"
)

// GetStatus handles GET /api/status. Supervisor is reported available in
// debug mode so the UI can be exercised off-device.
func GetStatus(w http.ResponseWriter, r *http.Request) {
	available := config.Cfg.Debug
	if !available && Supervisor != nil {
		available = Supervisor.Check(r.Context())
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":              scoreboard.ReadVersion(config.Cfg.VersionFile()),
		"control_hub_version":  config.Version,
		"supervisor_available": available,
	})
}

// ListBoards handles GET /api/boards.
func ListBoards(w http.ResponseWriter, r *http.Request) {
	boards := scoreboard.Boards(config.Cfg.BuiltinBoardsDir(), config.Cfg.PluginBoardsDir())
	writeJSON(w, http.StatusOK, boards)
}
