// Package plugins wraps the scoreboard's plugins.py tool and the plugin
// index it installs from.
package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/falkyre/scoreboard-hub/internal/config"
	"github.com/falkyre/scoreboard-hub/internal/runner"
	"github.com/tidwall/jsonc"
)

// ListTimeout bounds `plugins.py list`; other commands use runner.DefaultTimeout.
const ListTimeout = 30 * time.Second

// ErrScriptMissing means plugins.py does not exist in the scoreboard checkout.
var ErrScriptMissing = errors.New("plugin script not found")

// Entry is a plugin record in plugins_index.json or plugins.json.
type Entry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type pluginFile struct {
	Plugins []Entry `json:"plugins"`
}

// DownloadResult is the outcome of an index download.
type DownloadResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Manager runs plugin commands and maintains the index and installed files.
type Manager struct {
	Runner        *runner.Runner
	Script        string
	IndexFile     string
	InstalledFile string
	ExampleFile   string
	IndexURL      string
	HTTPClient    *http.Client
}

// NewManager returns a Manager for the scoreboard described by cfg.
func NewManager(cfg *config.Settings, r *runner.Runner) *Manager {
	return &Manager{
		Runner:        r,
		Script:        cfg.PluginsScript(),
		IndexFile:     cfg.PluginsIndexFile(),
		InstalledFile: cfg.PluginsInstalledFile(),
		ExampleFile:   cfg.PluginsExampleFile(),
		IndexURL:      cfg.PluginIndexURL,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Run executes plugins.py with args. A missing script is reported in the
// result rather than as an error.
func (m *Manager) Run(ctx context.Context, timeout time.Duration, args ...string) runner.Result {
	if _, err := os.Stat(m.Script); err != nil {
		log.Printf("[plugins] %v at %s", ErrScriptMissing, m.Script)
		return runner.Result{Output: "Error: Script not found at " + m.Script}
	}
	return m.Runner.Python(ctx, timeout, m.Script, args...)
}

// Add installs the plugin at url.
func (m *Manager) Add(ctx context.Context, url string) runner.Result {
	return m.Run(ctx, runner.DefaultTimeout, "add", url)
}

// Remove uninstalls name, optionally keeping its configuration.
func (m *Manager) Remove(ctx context.Context, name string, keepConfig bool) runner.Result {
	args := []string{"rm", name}
	if keepConfig {
		args = append(args, "--keep-config")
	}
	return m.Run(ctx, runner.DefaultTimeout, args...)
}

// Update pulls the latest version of name.
func (m *Manager) Update(ctx context.Context, name string) runner.Result {
	return m.Run(ctx, runner.DefaultTimeout, "update", name)
}

// Sync installs every plugin listed in plugins.json.
func (m *Manager) Sync(ctx context.Context) runner.Result {
	return m.Run(ctx, runner.DefaultTimeout, "sync")
}

// DownloadIndex fetches the plugin index. Unless force is set an existing
// index file is kept.
func (m *Manager) DownloadIndex(ctx context.Context, force bool) DownloadResult {
	if !force {
		if _, err := os.Stat(m.IndexFile); err == nil {
			return DownloadResult{Success: true, Message: "Plugin index already exists."}
		}
	}

	log.Printf("[plugins] downloading plugin index from %s", m.IndexURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.IndexURL, nil)
	if err != nil {
		return DownloadResult{Message: fmt.Sprintf("An error occurred: %v", err)}
	}
	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		log.Printf("[plugins] index download failed: %v", err)
		return DownloadResult{Message: fmt.Sprintf("An error occurred: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[plugins] index download returned status %d", resp.StatusCode)
		return DownloadResult{Message: fmt.Sprintf("Failed to download. Status: %d", resp.StatusCode)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return DownloadResult{Message: fmt.Sprintf("An error occurred: %v", err)}
	}
	if err := os.WriteFile(m.IndexFile, data, 0o644); err != nil {
		return DownloadResult{Message: fmt.Sprintf("An error occurred: %v", err)}
	}
	log.Printf("[plugins] saved plugin index to %s", m.IndexFile)
	return DownloadResult{Success: true, Message: "Plugin index downloaded successfully."}
}

// EnsureInstalledFile restores plugins.json from plugins.json.example when
// it is missing, empty, not valid JSON or lists no plugins.
func (m *Manager) EnsureInstalledFile() {
	reason := m.installedFileProblem()
	if reason == "" {
		return
	}
	log.Printf("[plugins] %s %s", m.InstalledFile, reason)

	data, err := os.ReadFile(m.ExampleFile)
	if err != nil {
		log.Printf("[plugins] cannot restore plugins file: %v", err)
		return
	}
	if err := os.WriteFile(m.InstalledFile, data, 0o644); err != nil {
		log.Printf("[plugins] failed to copy %s: %v", m.ExampleFile, err)
		return
	}
	log.Printf("[plugins] restored %s from %s", m.InstalledFile, m.ExampleFile)
}

func (m *Manager) installedFileProblem() string {
	data, err := os.ReadFile(m.InstalledFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "not found"
		}
		return "unreadable: " + err.Error()
	}
	if strings.TrimSpace(string(data)) == "" {
		return "is empty"
	}
	var f pluginFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
		return "is invalid: " + err.Error()
	}
	if len(f.Plugins) == 0 {
		return "has no plugins"
	}
	return ""
}

// readEntries loads a plugin file keyed by name. Entries without a name
// are ignored.
func readEntries(path string) (map[string]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f pluginFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	entries := make(map[string]Entry, len(f.Plugins))
	for _, e := range f.Plugins {
		if e.Name != "" {
			entries[e.Name] = e
		}
	}
	return entries, nil
}

// Status downloads the index if needed, repairs plugins.json and merges both
// with the live `plugins.py list` output. Only a failure to read plugins.json
// is returned as an error; an unreadable index or failed list command
// degrades the result.
func (m *Manager) Status(ctx context.Context) ([]Plugin, error) {
	m.DownloadIndex(ctx, false)

	available, err := readEntries(m.IndexFile)
	if err != nil {
		log.Printf("[plugins] reading index: %v", err)
		available = map[string]Entry{}
	}

	m.EnsureInstalledFile()
	installed, err := readEntries(m.InstalledFile)
	if err != nil {
		log.Printf("[plugins] reading installed plugins: %v", err)
		return nil, err
	}

	live := map[string]ListEntry{}
	if res := m.Run(ctx, ListTimeout, "list"); res.Success {
		live = ParseList(res.Output)
	} else {
		log.Printf("[plugins] plugins.py list failed")
	}
	log.Printf("[plugins] parsed %d live plugin statuses", len(live))

	return Merge(available, installed, live), nil
}
