package handlers

import (
	"log"
	"net/http"

	"github.com/falkyre/scoreboard-hub/internal/plugins"
)

// Plugins is set from main.go during init.
var Plugins *plugins.Manager

type pluginRequest struct {
	URL        string `json:"url"`
	Name       string `json:"name"`
	KeepConfig bool   `json:"keep_config"`
}

func decodePluginRequest(w http.ResponseWriter, r *http.Request) (pluginRequest, bool) {
	var req pluginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeOutputError(w, http.StatusBadRequest, "Error: invalid request body.")
		return req, false
	}
	return req, true
}

// RefreshPluginIndex handles POST /api/plugins/refresh.
func RefreshPluginIndex(w http.ResponseWriter, r *http.Request) {
	log.Printf("[plugins] refreshing plugin index")
	writeJSON(w, http.StatusOK, Plugins.DownloadIndex(r.Context(), true))
}

// GetPluginStatus handles GET /api/plugins/status.
func GetPluginStatus(w http.ResponseWriter, r *http.Request) {
	list, err := Plugins.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error reading plugins.json: "+err.Error())
		return
	}
	log.Printf("[plugins] returning %d plugins", len(list))
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "plugins": list})
}

// AddPlugin handles POST /api/plugins/add.
func AddPlugin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePluginRequest(w, r)
	if !ok {
		return
	}
	if req.URL == "" {
		writeOutputError(w, http.StatusBadRequest, `Error: "url" is required.`)
		return
	}
	writeJSON(w, http.StatusOK, Plugins.Add(r.Context(), req.URL))
}

// RemovePlugin handles POST /api/plugins/remove.
func RemovePlugin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePluginRequest(w, r)
	if !ok {
		return
	}
	if req.Name == "" {
		writeOutputError(w, http.StatusBadRequest, `Error: "name" is required.`)
		return
	}
	writeJSON(w, http.StatusOK, Plugins.Remove(r.Context(), req.Name, req.KeepConfig))
}

// UpdatePlugin handles POST /api/plugins/update.
func UpdatePlugin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePluginRequest(w, r)
	if !ok {
		return
	}
	if req.Name == "" {
		writeOutputError(w, http.StatusBadRequest, `Error: "name" is required.`)
		return
	}
	writeJSON(w, http.StatusOK, Plugins.Update(r.Context(), req.Name))
}

// SyncPlugins handles POST /api/plugins/sync.
func SyncPlugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Plugins.Sync(r.Context()))
}
