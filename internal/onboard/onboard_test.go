package onboard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleConfig = `{
  "debug": false,
  "preferences": {
    "time_format": "12h",
    "teams": ["Avalanche"],
    "sog_display_frequency": 4
  },
  "states": {
    "off_day": ["scoreticker", "standings", "clock"],
    "scheduled": ["standings"],
    "intermission": ["scoreticker"],
    "post_game": "clock"
  },
  "boards": {"clock": {"duration": 15}}
}`

func newTestOnboarder(t *testing.T) (*Onboarder, string) {
	t.Helper()
	dir := t.TempDir()
	o := &Onboarder{
		SampleConfig:   filepath.Join(dir, "config", "config.json.sample"),
		ConfigPath:     filepath.Join(dir, "config", "config.json"),
		StatusFile:     filepath.Join(dir, "portal", "status"),
		SetupMarker:    filepath.Join(dir, "portal", "SETUP"),
		TestScript:     filepath.Join(dir, "sbtools", "testMatrix.sh"),
		SupervisorConf: filepath.Join(dir, "scoreboard.conf"),
		ModelPath:      filepath.Join(dir, "model"),
	}
	os.MkdirAll(filepath.Join(dir, "config"), 0o755)
	os.MkdirAll(filepath.Join(dir, "portal"), 0o755)
	return o, dir
}

func TestCreateConfig(t *testing.T) {
	o, _ := newTestOnboarder(t)
	os.WriteFile(o.SampleConfig, []byte(sampleConfig), 0o644)

	msg, err := o.CreateConfig("Canadiens")
	if err != nil {
		t.Fatalf("CreateConfig: %v", err)
	}
	if msg != "Configuration created successfully." {
		t.Errorf("msg = %q", msg)
	}

	data, _ := os.ReadFile(o.ConfigPath)
	got := string(data)
	want := `{
    "debug": false,
    "preferences": {
        "time_format": "12h",
        "teams": [
            "Canadiens"
        ],
        "sog_display_frequency": 4
    },
    "states": {
        "off_day": [
            "scoreticker",
            "clock"
        ],
        "scheduled": [],
        "intermission": [
            "scoreticker"
        ],
        "post_game": "clock"
    },
    "boards": {
        "clock": {
            "duration": 15
        }
    }
}`
	if got != want {
		t.Errorf("config.json =\n%s\nwant\n%s", got, want)
	}
}

func TestCreateConfig_AddsPreferences(t *testing.T) {
	o, _ := newTestOnboarder(t)
	o.Debug = true
	os.WriteFile(o.SampleConfig, []byte(`{"debug": true}`), 0o644)

	out, err := o.CreateConfig("Kraken")
	if err != nil {
		t.Fatalf("CreateConfig: %v", err)
	}
	if !strings.Contains(out, `"teams": [`) || !strings.Contains(out, `"Kraken"`) {
		t.Errorf("generated = %s", out)
	}
	if _, err := os.Stat(o.ConfigPath); !os.IsNotExist(err) {
		t.Error("debug mode wrote config.json")
	}
}

func TestCreateConfig_MissingSample(t *testing.T) {
	o, _ := newTestOnboarder(t)
	_, err := o.CreateConfig("Canadiens")
	if err == nil || err.Error() != "Sample config not found at "+o.SampleConfig {
		t.Errorf("err = %v", err)
	}
}

func TestStatusText(t *testing.T) {
	o, _ := newTestOnboarder(t)
	if got := o.StatusText(); got != DefaultStatusText {
		t.Errorf("missing file = %q", got)
	}
	os.WriteFile(o.StatusFile, []byte("  \n"), 0o644)
	if got := o.StatusText(); got != DefaultStatusText {
		t.Errorf("blank file = %q", got)
	}
	os.WriteFile(o.StatusFile, []byte("Image v2026.01\n"), 0o644)
	if got := o.StatusText(); got != "Image v2026.01" {
		t.Errorf("status = %q", got)
	}
}

func TestGenerateTestScript(t *testing.T) {
	o, _ := newTestOnboarder(t)
	os.WriteFile(o.StatusFile, []byte("Hello"), 0o644)

	msg, err := o.GenerateTestScript("--led-rows=32 --led-cols=64")
	if err != nil {
		t.Fatalf("GenerateTestScript: %v", err)
	}
	if msg != "Test script generated successfully." {
		t.Errorf("msg = %q", msg)
	}

	info, err := os.Stat(o.TestScript)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %v, want 0755", info.Mode().Perm())
	}
	data, _ := os.ReadFile(o.TestScript)
	want := `#!/bin/bash
echo 'Watch your display for $(tput setaf 3)Hello$(tput sgr0) to be displayed'
echo 'This will run for about 15 seconds and then exit itself'
cd /home/pi/nhl-led-scoreboard/submodules/matrix/bindings/python/samples
sudo /home/pi/nhlsb-venv/bin/python3 runtext.py --led-rows=32 --led-cols=64 -y 20 -l 1 -C 255,255,0 -t 'Hello' >/dev/null 2>&1
clear
exit
`
	if string(data) != want {
		t.Errorf("script =\n%s", data)
	}
}

func TestGenerateTestScript_Debug(t *testing.T) {
	o, _ := newTestOnboarder(t)
	o.Debug = true
	out, err := o.GenerateTestScript("--led-rows=32")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "#!/bin/bash\n") || !strings.Contains(out, DefaultStatusText) {
		t.Errorf("content = %q", out)
	}
	if _, err := os.Stat(o.TestScript); !os.IsNotExist(err) {
		t.Error("debug mode wrote the script")
	}
}

func TestSlowdown(t *testing.T) {
	o, _ := newTestOnboarder(t)
	if got := o.Slowdown(); got != "--led-slowdown-gpio=2" {
		t.Errorf("unreadable model = %q", got)
	}
	os.WriteFile(o.ModelPath, []byte("Raspberry Pi 4 Model B Rev 1.4\x00"), 0o644)
	if got := o.Slowdown(); got != "--led-slowdown-gpio=4" {
		t.Errorf("Pi 4 = %q", got)
	}
	os.WriteFile(o.ModelPath, []byte("Raspberry Pi 3 Model B Plus Rev 1.3\x00"), 0o644)
	if got := o.Slowdown(); got != "--led-slowdown-gpio=2" {
		t.Errorf("Pi 3 = %q", got)
	}
}

type recorder struct {
	calls [][]string
	fail  string
}

func (r *recorder) exec(_ context.Context, name string, args ...string) ([]byte, error) {
	argv := append([]string{name}, args...)
	r.calls = append(r.calls, argv)
	if r.fail != "" && strings.Contains(strings.Join(argv, " "), r.fail) {
		return nil, errors.New("exit status 1")
	}
	if len(args) > 0 && args[0] == "cat" {
		return []byte("[program:scoreboard]\ncommand=...\n"), nil
	}
	return nil, nil
}

func TestUpdateSupervisor(t *testing.T) {
	o, _ := newTestOnboarder(t)
	os.WriteFile(o.ModelPath, []byte("Raspberry Pi 4 Model B"), 0o644)
	rec := &recorder{}
	o.Exec = rec.exec

	out, err := o.UpdateSupervisor(context.Background(), "--led-rows=32 --led-cols=64", true)
	if err != nil {
		t.Fatalf("UpdateSupervisor: %v", err)
	}
	if out != "[program:scoreboard]\ncommand=...\n" {
		t.Errorf("out = %q", out)
	}

	cmd := "command=/home/pi/nhlsb-venv/bin/python3 src/main.py --led-slowdown-gpio=4 --led-rows=32 --led-cols=64 --updatecheck"
	want := [][]string{
		{"sudo", "sed", "-i", "/command=/d", o.SupervisorConf},
		{"sudo", "sed", "-i", "/program/a " + cmd, o.SupervisorConf},
		{"sudo", "systemctl", "enable", "supervisor"},
		{"sudo", "cat", o.SupervisorConf},
	}
	if len(rec.calls) != len(want) {
		t.Fatalf("calls = %q", rec.calls)
	}
	for i := range want {
		if strings.Join(rec.calls[i], "\x00") != strings.Join(want[i], "\x00") {
			t.Errorf("call %d = %q, want %q", i, rec.calls[i], want[i])
		}
	}
}

func TestUpdateSupervisor_StepFails(t *testing.T) {
	o, _ := newTestOnboarder(t)
	rec := &recorder{fail: "systemctl"}
	o.Exec = rec.exec

	if _, err := o.UpdateSupervisor(context.Background(), "--led-rows=32", false); err == nil {
		t.Fatal("UpdateSupervisor succeeded despite failing step")
	}
	if len(rec.calls) != 3 {
		t.Errorf("calls after failure = %d, want 3", len(rec.calls))
	}
}

func TestUpdateSupervisor_Debug(t *testing.T) {
	o, _ := newTestOnboarder(t)
	o.Debug = true
	rec := &recorder{}
	o.Exec = rec.exec

	out, err := o.UpdateSupervisor(context.Background(), "--led-rows=32", false)
	if err != nil || out != "Debug mode: Supervisor config update skipped." {
		t.Errorf("out = %q, err %v", out, err)
	}
	if len(rec.calls) != 0 {
		t.Errorf("debug mode ran %q", rec.calls)
	}
}

func TestSupervisorCommand_NoUpdateCheck(t *testing.T) {
	o, _ := newTestOnboarder(t)
	got := o.SupervisorCommand("--led-rows=32", false)
	if got != "command=/home/pi/nhlsb-venv/bin/python3 src/main.py --led-slowdown-gpio=2 --led-rows=32" {
		t.Errorf("command = %q", got)
	}
}

func TestFinish(t *testing.T) {
	o, _ := newTestOnboarder(t)
	os.WriteFile(o.SetupMarker, nil, 0o644)
	if !o.SetupPending() {
		t.Fatal("SetupPending = false with marker present")
	}

	msg, err := o.Finish()
	if err != nil || msg != "Onboarding finished." {
		t.Errorf("Finish = %q, %v", msg, err)
	}
	if o.SetupPending() {
		t.Error("marker still present")
	}
	if _, err := o.Finish(); err != nil {
		t.Errorf("second Finish: %v", err)
	}
}
