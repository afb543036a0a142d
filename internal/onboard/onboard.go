// Package onboard implements the first-run setup steps of a freshly
// imaged scoreboard.
package onboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/falkyre/scoreboard-hub/internal/config"
	"github.com/falkyre/scoreboard-hub/internal/logutil"
)

// DefaultStatusText is shown by the matrix test when no status file exists.
const DefaultStatusText = "You are running a TEST version"

const (
	supervisorCommandPrefix = "command=/home/pi/nhlsb-venv/bin/python3 src/main.py "
	slowdownPi4             = "--led-slowdown-gpio=4"
	slowdownDefault         = "--led-slowdown-gpio=2"
)

// ExecFunc runs a command and returns its standard output.
type ExecFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Onboarder writes the initial scoreboard configuration.
type Onboarder struct {
	SampleConfig   string
	ConfigPath     string
	StatusFile     string
	SetupMarker    string
	TestScript     string
	SupervisorConf string
	ModelPath      string
	// Debug makes every step report what it would write instead of writing.
	Debug bool
	Exec  ExecFunc
}

// New returns an Onboarder using the paths in cfg.
func New(cfg *config.Settings) *Onboarder {
	return &Onboarder{
		SampleConfig:   cfg.SampleConfigPath(),
		ConfigPath:     cfg.ConfigPath(),
		StatusFile:     cfg.StatusFile(),
		SetupMarker:    cfg.SetupMarker(),
		TestScript:     cfg.TestScriptPath(),
		SupervisorConf: cfg.SupervisorConfPath,
		ModelPath:      cfg.DeviceModelPath,
		Debug:          cfg.Debug,
		Exec:           execOutput,
	}
}

func execOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// SetupPending reports whether the first-run marker is still present.
func (o *Onboarder) SetupPending() bool {
	_, err := os.Stat(o.SetupMarker)
	return err == nil
}

// CreateConfig writes config.json from the sample with team as the only
// preferred team and the standings board removed from every state. In
// debug mode the generated document is returned instead of written.
func (o *Onboarder) CreateConfig(team string) (string, error) {
	data, err := os.ReadFile(o.SampleConfig)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("Sample config not found at %s", o.SampleConfig)
		}
		return "", err
	}

	var doc object
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse sample config: %w", err)
	}

	var prefs object
	if raw, ok := doc.get("preferences"); ok {
		if err := json.Unmarshal(raw, &prefs); err != nil {
			return "", fmt.Errorf("preferences: %w", err)
		}
	}
	teams, _ := json.Marshal([]string{team})
	prefs.set("teams", teams)
	if doc, err = setMember(doc, "preferences", prefs); err != nil {
		return "", err
	}

	if raw, ok := doc.get("states"); ok {
		var states object
		if err := json.Unmarshal(raw, &states); err != nil {
			return "", fmt.Errorf("states: %w", err)
		}
		for i, st := range states {
			states[i].Value = withoutStandings(st.Value)
		}
		if doc, err = setMember(doc, "states", states); err != nil {
			return "", err
		}
	}

	compact, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "    "); err != nil {
		return "", err
	}

	if o.Debug {
		log.Printf("[onboard] debug mode: returning generated config instead of saving")
		return out.String(), nil
	}
	if err := os.WriteFile(o.ConfigPath, out.Bytes(), 0o644); err != nil {
		log.Printf("[onboard] failed to create config.json: %v", err)
		return "", err
	}
	log.Printf("[onboard] created %s for team %q", o.ConfigPath, logutil.SanitizeForLog(team))
	return "Configuration created successfully.", nil
}

func setMember(doc object, key string, v object) (object, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	doc.set(key, raw)
	return doc, nil
}

// withoutStandings drops the first "standings" entry from a board list.
// Values that are not lists are returned unchanged.
func withoutStandings(raw json.RawMessage) json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return raw
	}
	for i, it := range items {
		var s string
		if json.Unmarshal(it, &s) == nil && s == "standings" {
			items = append(items[:i], items[i+1:]...)
			out, err := json.Marshal(items)
			if err != nil {
				return raw
			}
			return out
		}
	}
	return raw
}

// StatusText is the message the matrix test scrolls.
func (o *Onboarder) StatusText() string {
	data, err := os.ReadFile(o.StatusFile)
	if err != nil {
		return DefaultStatusText
	}
	if s := strings.TrimSpace(string(data)); s != "" {
		return s
	}
	return DefaultStatusText
}

// TestScriptContent renders testMatrix.sh for the given matrix options.
func (o *Onboarder) TestScriptContent(boardCommand string) string {
	status := o.StatusText()
	return fmt.Sprintf(`#!/bin/bash
echo 'Watch your display for $(tput setaf 3)%[1]s$(tput sgr0) to be displayed'
echo 'This will run for about 15 seconds and then exit itself'
cd /home/pi/nhl-led-scoreboard/submodules/matrix/bindings/python/samples
sudo /home/pi/nhlsb-venv/bin/python3 runtext.py %[2]s -y 20 -l 1 -C 255,255,0 -t '%[1]s' >/dev/null 2>&1
clear
exit
`, status, boardCommand)
}

// GenerateTestScript writes the executable matrix test script. In debug
// mode its content is returned instead.
func (o *Onboarder) GenerateTestScript(boardCommand string) (string, error) {
	content := o.TestScriptContent(boardCommand)
	if o.Debug {
		log.Printf("[onboard] debug mode: returning test script instead of writing it")
		return content, nil
	}

	if err := os.MkdirAll(filepath.Dir(o.TestScript), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(o.TestScript, []byte(content), 0o755); err != nil {
		log.Printf("[onboard] failed to write test script: %v", err)
		return "", err
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(o.TestScript, 0o755); err != nil {
		return "", err
	}
	log.Printf("[onboard] test script created at %s", o.TestScript)
	return "Test script generated successfully.", nil
}

// Slowdown picks the GPIO slowdown flag for the board's Pi model.
func (o *Onboarder) Slowdown() string {
	data, err := os.ReadFile(o.ModelPath)
	if err != nil {
		log.Printf("[onboard] could not read Pi model, defaulting to slowdown 2: %v", err)
		return slowdownDefault
	}
	model := strings.TrimSpace(strings.TrimRight(string(data), "\x00"))
	log.Printf("[onboard] detected model: %s", model)
	if strings.Contains(model, "Raspberry Pi 4") {
		return slowdownPi4
	}
	return slowdownDefault
}

// SupervisorCommand is the program command line written to scoreboard.conf.
func (o *Onboarder) SupervisorCommand(boardCommand string, updateCheck bool) string {
	cmd := supervisorCommandPrefix + o.Slowdown() + " " + boardCommand
	if updateCheck {
		cmd += " --updatecheck"
	}
	return cmd
}

// UpdateSupervisor replaces the command line in scoreboard.conf, enables
// supervisor and returns the resulting file.
func (o *Onboarder) UpdateSupervisor(ctx context.Context, boardCommand string, updateCheck bool) (string, error) {
	cmd := o.SupervisorCommand(boardCommand, updateCheck)
	if o.Debug {
		log.Printf("[onboard] debug mode: skipping supervisor update, command would be: %s", logutil.SanitizeForLog(cmd))
		return "Debug mode: Supervisor config update skipped.", nil
	}

	steps := [][]string{
		{"sudo", "sed", "-i", "/command=/d", o.SupervisorConf},
		{"sudo", "sed", "-i", "/program/a " + cmd, o.SupervisorConf},
		{"sudo", "systemctl", "enable", "supervisor"},
	}
	for _, argv := range steps {
		if _, err := o.Exec(ctx, argv[0], argv[1:]...); err != nil {
			log.Printf("[onboard] %s failed: %v", strings.Join(argv, " "), err)
			return "", fmt.Errorf("%s: %w", strings.Join(argv[:3], " "), err)
		}
	}

	out, err := o.Exec(ctx, "sudo", "cat", o.SupervisorConf)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", o.SupervisorConf, err)
	}
	log.Printf("[onboard] updated supervisor command: %s", logutil.SanitizeForLog(cmd))
	return string(out), nil
}

// Finish removes the first-run marker.
func (o *Onboarder) Finish() (string, error) {
	if err := os.Remove(o.SetupMarker); err != nil && !os.IsNotExist(err) {
		log.Printf("[onboard] failed to delete SETUP file: %v", err)
		return "", err
	}
	log.Printf("[onboard] SETUP marker removed")
	return "Onboarding finished.", nil
}
