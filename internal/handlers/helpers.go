package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError replies {"success": false, "message": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "message": message})
}

// writeOutputError replies {"success": false, "output": output}, the shape
// used by the script-running endpoints.
func writeOutputError(w http.ResponseWriter, status int, output string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "output": output})
}

// decodeJSON reads the request body into v. An empty body leaves v unchanged.
func decodeJSON(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
