// Package logoeditor manages the scoreboard's standalone logo editor web
// app: probing it, launching it detached and stopping the copy it launched.
package logoeditor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/falkyre/scoreboard-hub/internal/config"
	"golang.org/x/sys/unix"
)

// DefaultPort is the editor's port when the UI does not pick one.
const DefaultPort = 5000

// healthTimeout bounds one health probe.
const healthTimeout = 2 * time.Second

// Health is the result of probing the editor port.
type Health string

const (
	// HealthRunning means the editor answered its health endpoint.
	HealthRunning Health = "running"
	// HealthAvailable means nothing is listening; the editor can be launched.
	HealthAvailable Health = "available"
	// HealthConflict means something else owns the port.
	HealthConflict Health = "conflict"
	// HealthUnavailable means the editor script is not installed.
	HealthUnavailable Health = "unavailable"
)

var (
	// ErrScriptMissing means logo_editor.py is not in the scoreboard checkout.
	ErrScriptMissing = errors.New("logo_editor.py not found")
	// ErrNotTracked means no launched editor is recorded in the state file.
	ErrNotTracked = errors.New("no running Logo Editor tracked")
)

// FlaskMissingError means the chosen interpreter cannot import flask.
type FlaskMissingError struct {
	Venv   string
	Output string
}

func (e *FlaskMissingError) Error() string {
	return fmt.Sprintf("Flask is not installed in the selected environment (%s). Please install it or choose a valid venv.", e.Venv)
}

// State is the launched editor recorded on disk.
type State struct {
	Port int `json:"port"`
	PID  int `json:"pid"`
}

// StatusReport is the response of the status endpoint.
type StatusReport struct {
	Success     bool   `json:"success"`
	Available   bool   `json:"available"`
	Running     bool   `json:"running"`
	Status      Health `json:"status"`
	Port        int    `json:"port"`
	Managed     bool   `json:"managed"`
	ManagedPort *int   `json:"managed_port"`
}

// Manager launches and tracks the logo editor.
type Manager struct {
	Script        string
	StateFile     string
	DebugLog      string
	ScoreboardDir string
	Python        string
	Debug         bool
	// Host is probed for the health endpoint.
	Host       string
	HTTPClient *http.Client
}

// NewManager returns a Manager for the scoreboard described by cfg.
func NewManager(cfg *config.Settings) *Manager {
	return &Manager{
		Script:        cfg.LogoEditorScript(),
		StateFile:     cfg.LogoEditorStateFile(),
		DebugLog:      cfg.LogoEditorDebugLog(),
		ScoreboardDir: cfg.ScoreboardDir,
		Python:        cfg.PythonExec,
		Debug:         cfg.Debug,
		Host:          "127.0.0.1",
		HTTPClient:    &http.Client{Timeout: healthTimeout},
	}
}

// Health probes http://host:port/api/health. A 200 reply with status "ok"
// is the editor; any other HTTP reply is a conflict; no reply at all means
// the port is free.
func (m *Manager) Health(ctx context.Context, port int) Health {
	url := fmt.Sprintf("http://%s/api/health", hostPort(m.Host, port))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return HealthAvailable
	}
	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		log.Printf("[logo-editor] health check %s: %v", url, err)
		return HealthAvailable
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil && body.Status == "ok" {
			return HealthRunning
		}
	}
	log.Printf("[logo-editor] port %d answered with status %d, treating as conflict", port, resp.StatusCode)
	return HealthConflict
}

// Status reports whether the editor is installed and running on port, and
// whether this hub launched it. A state file left by an editor that has
// exited is removed.
func (m *Manager) Status(ctx context.Context, port int) StatusReport {
	_, statErr := os.Stat(m.Script)
	exists := statErr == nil

	health := m.Health(ctx, port)
	status := HealthUnavailable
	if exists {
		status = health
		if health == HealthAvailable {
			m.cleanStaleState(port)
		}
	}

	report := StatusReport{
		Success:   true,
		Available: exists,
		Running:   status == HealthRunning,
		Status:    status,
		Port:      port,
	}
	if _, err := os.Stat(m.StateFile); err == nil {
		report.Managed = true
		if st, err := m.readState(); err == nil {
			p := st.Port
			report.ManagedPort = &p
		}
	}
	log.Printf("[logo-editor] status port=%d exists=%v health=%s status=%s", port, exists, health, status)
	return report
}

func (m *Manager) cleanStaleState(port int) {
	st, err := m.readState()
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[logo-editor] reading state file: %v", err)
		}
		return
	}
	if st.PID > 0 && processAlive(st.PID) {
		log.Printf("[logo-editor] port %d closed but pid %d is running, keeping state", port, st.PID)
		return
	}
	log.Printf("[logo-editor] port %d closed and pid %d gone, removing state file", port, st.PID)
	if err := os.Remove(m.StateFile); err != nil {
		log.Printf("[logo-editor] removing state file: %v", err)
	}
}

// Launch starts the editor detached from the hub's session using the
// interpreter from venv (or the default one) and records its pid. An empty
// venv defaults to the scoreboard's nhlsb-venv in the invoking user's home.
func (m *Manager) Launch(ctx context.Context, venv string, port int) (*State, error) {
	if _, err := os.Stat(m.Script); err != nil {
		return nil, ErrScriptMissing
	}
	if port <= 0 {
		port = DefaultPort
	}

	python := m.Python
	if venv != "" {
		if p, ok := venvPython(venv); ok {
			python = p
			log.Printf("[logo-editor] using venv python %s", python)
		} else {
			log.Printf("[logo-editor] no python in venv %s, falling back to %s", venv, python)
		}
	} else {
		venv = DefaultVenv()
		log.Printf("[logo-editor] no venv provided, defaulting to %s", venv)
	}

	check := exec.CommandContext(ctx, python, "-c", "import flask")
	if out, err := check.CombinedOutput(); err != nil {
		log.Printf("[logo-editor] flask check with %s failed: %v: %s", python, err, strings.TrimSpace(string(out)))
		return nil, &FlaskMissingError{Venv: venv, Output: string(out)}
	}

	argv := []string{m.Script, "--venv", venv, "--dir", m.ScoreboardDir, "--port", strconv.Itoa(port)}
	log.Printf("[logo-editor] launching %s %s", python, strings.Join(argv, " "))

	// Not tied to ctx: the editor outlives the request that launched it.
	cmd := exec.Command(python, argv...)
	cmd.Dir = m.ScoreboardDir
	cmd.Env = launchEnv(os.Environ(), venv)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	var debugLog *os.File
	if m.Debug {
		f, err := os.Create(m.DebugLog)
		if err != nil {
			log.Printf("[logo-editor] opening debug log: %v", err)
		} else {
			log.Printf("[logo-editor] debug mode: editor output goes to %s", m.DebugLog)
			debugLog = f
			cmd.Stdout = f
			cmd.Stderr = f
		}
	}

	if err := cmd.Start(); err != nil {
		if debugLog != nil {
			debugLog.Close()
		}
		return nil, fmt.Errorf("failed to launch: %w", err)
	}
	if debugLog != nil {
		debugLog.Close()
	}
	// Reap the child; a zombie still answers signal 0.
	go cmd.Wait()

	st := &State{Port: port, PID: cmd.Process.Pid}
	if err := m.writeState(st); err != nil {
		log.Printf("[logo-editor] writing state file: %v", err)
	}
	return st, nil
}

// Stop sends SIGTERM to the launched editor and forgets it. An editor that
// already exited is not an error.
func (m *Manager) Stop() error {
	if _, err := os.Stat(m.StateFile); err != nil {
		return ErrNotTracked
	}
	st, err := m.readState()
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}

	if st.PID > 0 {
		switch err := unix.Kill(st.PID, unix.SIGTERM); {
		case err == nil:
			log.Printf("[logo-editor] sent SIGTERM to %d", st.PID)
		case errors.Is(err, unix.ESRCH):
			log.Printf("[logo-editor] process %d not found, cleaning up state", st.PID)
		default:
			return fmt.Errorf("failed to stop process: %w", err)
		}
	}

	if err := os.Remove(m.StateFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state: %w", err)
	}
	return nil
}

func (m *Manager) readState() (*State, error) {
	data, err := os.ReadFile(m.StateFile)
	if err != nil {
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse %s: %w", m.StateFile, err)
	}
	return &st, nil
}

func (m *Manager) writeState(st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return os.WriteFile(m.StateFile, data, 0o644)
}

// DefaultVenv is the scoreboard virtualenv of the user running the hub,
// preferring the sudo caller.
func DefaultVenv() string {
	user := os.Getenv("SUDO_USER")
	if user == "" {
		user = os.Getenv("USER")
	}
	if user == "" {
		user = "pi"
	}
	return "/home/" + user + "/nhlsb-venv/"
}

func venvPython(venv string) (string, bool) {
	for _, p := range []string{
		filepath.Join(venv, "bin", "python"),
		filepath.Join(venv, "bin", "python3"),
		filepath.Join(venv, "Scripts", "python.exe"),
	} {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// launchEnv drops the reloader variables of a parent dev server and
// activates venv.
func launchEnv(base []string, venv string) []string {
	env := make([]string, 0, len(base)+2)
	path := ""
	for _, kv := range base {
		k, v, _ := strings.Cut(kv, "=")
		switch k {
		case "WERKZEUG_SERVER_FD", "WERKZEUG_RUN_MAIN", "PYTHONHOME", "VIRTUAL_ENV":
			continue
		case "PATH":
			path = v
			continue
		}
		env = append(env, kv)
	}
	return append(env,
		"VIRTUAL_ENV="+venv,
		"PATH="+filepath.Join(venv, "bin")+string(os.PathListSeparator)+path,
	)
}

func processAlive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}

func hostPort(host string, port int) string {
	if host == "" {
		host = "127.0.0.1"
	}
	return host + ":" + strconv.Itoa(port)
}
