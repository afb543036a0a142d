package handlers

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/falkyre/scoreboard-hub/internal/config"
	"github.com/falkyre/scoreboard-hub/internal/runner"
)

const (
	mqttTestTimeout    = 30 * time.Second
	issueUploadTimeout = 180 * time.Second
)

// Scripts runs helper scripts from the scoreboard directory. Set from
// main.go during init.
var Scripts *runner.Runner

type mqttTestRequest struct {
	Broker   string      `json:"broker"`
	Port     interface{} `json:"port"`
	Username string      `json:"username"`
	Password string      `json:"password"`
}

// portString accepts the port as a JSON number or string.
func portString(v interface{}) string {
	switch p := v.(type) {
	case nil:
		return ""
	case string:
		return p
	case float64:
		return fmt.Sprintf("%d", int64(p))
	default:
		return fmt.Sprint(p)
	}
}

// MQTTTest handles POST /api/mqtt-test. The probe script prints "yes" when
// it can connect to the broker.
func MQTTTest(w http.ResponseWriter, r *http.Request) {
	var req mqttTestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeOutputError(w, http.StatusBadRequest, "Error: invalid request body.")
		return
	}
	port := portString(req.Port)
	if req.Broker == "" || port == "" {
		writeOutputError(w, http.StatusBadRequest, `Error: "broker" and "port" are required.`)
		return
	}

	script := config.Cfg.MQTTTestScript()
	if _, err := os.Stat(script); err != nil {
		log.Printf("[utilities] script not found at %s", script)
		writeOutputError(w, http.StatusNotFound, "Error: Script not found at "+script)
		return
	}

	args := []string{req.Broker, port}
	if req.Username != "" && req.Password != "" {
		args = append(args, "-u", req.Username, "-p", req.Password)
	}
	res := Scripts.Python(r.Context(), mqttTestTimeout, script, args...)

	res.Success = res.Success && strings.Contains(strings.ToLower(res.Output), "yes")
	writeJSON(w, http.StatusOK, res)
}

// RunIssueUploader handles POST /api/run-issue-uploader.
func RunIssueUploader(w http.ResponseWriter, r *http.Request) {
	log.Printf("[utilities] running issue uploader")
	script := config.Cfg.IssueUploadScript()
	if _, err := os.Stat(script); err != nil {
		log.Printf("[utilities] script not found at %s", script)
		writeOutputError(w, http.StatusNotFound, "Error: Script not found at "+script)
		return
	}

	res := Scripts.Python(r.Context(), issueUploadTimeout, script, "--scoreboard_dir", config.Cfg.ScoreboardDir)
	writeJSON(w, http.StatusOK, res)
}
