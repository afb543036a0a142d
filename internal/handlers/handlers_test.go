package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/falkyre/scoreboard-hub/internal/config"
	"github.com/falkyre/scoreboard-hub/internal/scoreboard"
)

// setupTestEnv points config.Cfg at a scratch scoreboard checkout and
// restores the previous configuration afterwards.
func setupTestEnv(t *testing.T) *config.Settings {
	t.Helper()
	root := t.TempDir()

	prev := config.Cfg
	prevConfigs := Configs
	t.Cleanup(func() {
		config.Cfg = prev
		Configs = prevConfigs
	})

	cfg := config.Defaults()
	cfg.ScoreboardDir = filepath.Join(root, "nhl-led-scoreboard")
	cfg.ScriptDir = filepath.Join(root, "web")
	cfg.PortalDir = filepath.Join(root, "portal")
	cfg.ToolsDir = filepath.Join(root, "sbtools")
	cfg.SupervisorConfPath = filepath.Join(root, "scoreboard.conf")
	cfg.DeviceModelPath = filepath.Join(root, "model")
	for _, dir := range []string{cfg.ScoreboardDir, cfg.ScriptDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}
	config.Cfg = cfg
	Configs = scoreboard.NewConfigStore(config.Cfg.ConfigPath())
	return &config.Cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}
