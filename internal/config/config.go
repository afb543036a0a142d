package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Version is the control hub release.
const Version = "2026.02.1"

// DefaultFile is the config file looked up beside the binary when --config
// is not given.
const DefaultFile = "config.toml"

// Settings holds the hub configuration. Keys in the config file keep the
// upper-case names of the original hub; environment overrides use the HUB_
// prefix (HUB_PORT, HUB_SCOREBOARD_DIR, ...).
type Settings struct {
	Port           int    `toml:"PORT" yaml:"PORT" envconfig:"HUB_PORT"`
	PythonExec     string `toml:"PYTHON_EXEC" yaml:"PYTHON_EXEC" envconfig:"HUB_PYTHON_EXEC"`
	SupervisorURL  string `toml:"SUPERVISOR_URL" yaml:"SUPERVISOR_URL" envconfig:"HUB_SUPERVISOR_URL"`
	SupervisorPort int    `toml:"SUPERVISOR_PORT" yaml:"SUPERVISOR_PORT" envconfig:"HUB_SUPERVISOR_PORT"`
	ScoreboardDir  string `toml:"scoreboard_dir" yaml:"scoreboard_dir" envconfig:"HUB_SCOREBOARD_DIR"`
	Debug          bool   `toml:"DEBUG" yaml:"DEBUG" envconfig:"HUB_DEBUG"`

	// ScriptDir holds the hub's helper scripts (mqtt_test.py, issue_upload.py)
	// and, by default, its templates and static assets.
	ScriptDir    string `toml:"SCRIPT_DIR" yaml:"SCRIPT_DIR" envconfig:"HUB_SCRIPT_DIR"`
	TemplatesDir string `toml:"TEMPLATES_DIR" yaml:"TEMPLATES_DIR" envconfig:"HUB_TEMPLATES_DIR"`
	AssetsDir    string `toml:"ASSETS_DIR" yaml:"ASSETS_DIR" envconfig:"HUB_ASSETS_DIR"`

	LogPath            string `toml:"LOG_PATH" yaml:"LOG_PATH" envconfig:"HUB_LOG_PATH"`
	AuditDBPath        string `toml:"AUDIT_DB_PATH" yaml:"AUDIT_DB_PATH" envconfig:"HUB_AUDIT_DB_PATH"`
	AuditRetentionDays int    `toml:"AUDIT_RETENTION_DAYS" yaml:"AUDIT_RETENTION_DAYS" envconfig:"HUB_AUDIT_RETENTION_DAYS"`

	TerminalMaxSessions int `toml:"TERMINAL_MAX_SESSIONS" yaml:"TERMINAL_MAX_SESSIONS" envconfig:"HUB_TERMINAL_MAX_SESSIONS"`

	PluginIndexURL        string `toml:"PLUGIN_INDEX_URL" yaml:"PLUGIN_INDEX_URL" envconfig:"HUB_PLUGIN_INDEX_URL"`
	PluginRefreshSchedule string `toml:"PLUGIN_REFRESH_SCHEDULE" yaml:"PLUGIN_REFRESH_SCHEDULE" envconfig:"HUB_PLUGIN_REFRESH_SCHEDULE"`

	// Device paths used by the download archive and onboarding.
	PortalDir          string `toml:"PORTAL_DIR" yaml:"PORTAL_DIR" envconfig:"HUB_PORTAL_DIR"`
	ToolsDir           string `toml:"TOOLS_DIR" yaml:"TOOLS_DIR" envconfig:"HUB_TOOLS_DIR"`
	SupervisorConfPath string `toml:"SUPERVISOR_CONF" yaml:"SUPERVISOR_CONF" envconfig:"HUB_SUPERVISOR_CONF"`
	DeviceModelPath    string `toml:"DEVICE_MODEL_PATH" yaml:"DEVICE_MODEL_PATH" envconfig:"HUB_DEVICE_MODEL_PATH"`
}

// Cfg is the process-wide configuration, set by Load.
var Cfg Settings

// Defaults returns the built-in configuration.
func Defaults() Settings {
	scriptDir := "."
	if exe, err := os.Executable(); err == nil {
		scriptDir = filepath.Dir(exe)
	}
	return Settings{
		Port:                  8000,
		PythonExec:            "python3",
		SupervisorURL:         "127.0.0.1",
		SupervisorPort:        9001,
		ScoreboardDir:         ".",
		ScriptDir:             scriptDir,
		LogPath:               "scoreboard-hub.log",
		AuditDBPath:           "scoreboard-hub.db",
		AuditRetentionDays:    90,
		TerminalMaxSessions:   16,
		PluginIndexURL:        "https://raw.githubusercontent.com/falkyre/nhl-led-scoreboard/main/plugins_index.json",
		PluginRefreshSchedule: "@every 6h",
		PortalDir:             "/home/pi/.nhlledportal",
		ToolsDir:              "/home/pi/sbtools",
		SupervisorConfPath:    "/etc/supervisor/conf.d/scoreboard.conf",
		DeviceModelPath:       "/sys/firmware/devicetree/base/model",
	}
}

// Load builds the configuration from defaults, the config file at path and
// HUB_* environment variables, in that order, and stores it in Cfg. An empty
// path means DefaultFile beside the binary, which may be absent; an explicit
// path must exist. Command-line flags are applied by the caller afterwards.
func Load(path string) (*Settings, error) {
	s := Defaults()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(s.ScriptDir, DefaultFile)
	}
	if err := decodeFile(path, &s); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Tags carry the full HUB_ name so envconfig never falls back to an
	// unprefixed variable such as PORT.
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	Cfg = s
	return &Cfg, nil
}

func decodeFile(path string, s *Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, s); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if _, err := toml.Decode(string(data), s); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return nil
}

// Finalize resolves relative directories and fills in paths that default
// to locations under other settings. Call it after flags are applied.
func (s *Settings) Finalize() error {
	abs, err := filepath.Abs(s.ScoreboardDir)
	if err != nil {
		return fmt.Errorf("resolve scoreboard_dir: %w", err)
	}
	s.ScoreboardDir = abs
	if s.TemplatesDir == "" {
		s.TemplatesDir = filepath.Join(s.ScriptDir, "templates")
	}
	if s.AssetsDir == "" {
		s.AssetsDir = filepath.Join(s.ScriptDir, "static")
	}
	return nil
}

// ConfigDir is the scoreboard's config directory.
func (s *Settings) ConfigDir() string { return filepath.Join(s.ScoreboardDir, "config") }

// ConfigPath is the scoreboard's config.json.
func (s *Settings) ConfigPath() string { return filepath.Join(s.ConfigDir(), "config.json") }

// SampleConfigPath is the template used to create config.json during onboarding.
func (s *Settings) SampleConfigPath() string {
	return filepath.Join(s.ConfigDir(), "config.json.sample")
}

func (s *Settings) VersionFile() string { return filepath.Join(s.ScoreboardDir, "VERSION") }

func (s *Settings) PluginsScript() string { return filepath.Join(s.ScoreboardDir, "plugins.py") }

func (s *Settings) PluginsIndexFile() string {
	return filepath.Join(s.ScoreboardDir, "plugins_index.json")
}

func (s *Settings) PluginsInstalledFile() string {
	return filepath.Join(s.ScoreboardDir, "plugins.json")
}

func (s *Settings) PluginsExampleFile() string {
	return filepath.Join(s.ScoreboardDir, "plugins.json.example")
}

func (s *Settings) BuiltinBoardsDir() string {
	return filepath.Join(s.ScoreboardDir, "src", "boards", "builtins")
}

func (s *Settings) PluginBoardsDir() string {
	return filepath.Join(s.ScoreboardDir, "src", "boards", "plugins")
}

func (s *Settings) LayoutDir() string { return filepath.Join(s.ConfigDir(), "layout") }

func (s *Settings) LogosDir() string { return filepath.Join(s.ScoreboardDir, "assets", "logos") }

func (s *Settings) LogoEditorScript() string {
	return filepath.Join(s.ScoreboardDir, "src", "logo_editor.py")
}

func (s *Settings) LogoEditorStateFile() string {
	return filepath.Join(s.ScoreboardDir, "logo_editor_state.json")
}

func (s *Settings) LogoEditorDebugLog() string {
	return filepath.Join(s.ScoreboardDir, "logo_editor_debug.log")
}

func (s *Settings) MQTTTestScript() string { return filepath.Join(s.ScriptDir, "mqtt_test.py") }

func (s *Settings) IssueUploadScript() string { return filepath.Join(s.ScriptDir, "issue_upload.py") }

// SetupMarker exists until onboarding finishes.
func (s *Settings) SetupMarker() string { return filepath.Join(s.PortalDir, "SETUP") }

// StatusFile holds the text shown by the matrix test script.
func (s *Settings) StatusFile() string { return filepath.Join(s.PortalDir, "status") }

func (s *Settings) TestScriptPath() string { return filepath.Join(s.ToolsDir, "testMatrix.sh") }

func (s *Settings) SplashScriptPath() string { return filepath.Join(s.ToolsDir, "splash.sh") }

// SupervisorAddr is the host:port of the supervisor HTTP server.
func (s *Settings) SupervisorAddr() string {
	return net.JoinHostPort(s.SupervisorURL, strconv.Itoa(s.SupervisorPort))
}

// SupervisorRPCURL is the supervisor XML-RPC endpoint.
func (s *Settings) SupervisorRPCURL() string {
	return "http://" + s.SupervisorAddr() + "/RPC2"
}

// ListenAddr is the hub's HTTP listen address.
func (s *Settings) ListenAddr() string { return ":" + strconv.Itoa(s.Port) }
