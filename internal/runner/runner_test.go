package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRun_Success(t *testing.T) {
	r := New(t.TempDir(), "")
	res := r.Run(context.Background(), time.Second*5, "sh", "-c", "echo out; echo err >&2")
	if !res.Success {
		t.Fatalf("Success = false, output %q", res.Output)
	}
	if res.Output != "out\n\nerr\n" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestRun_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker"), []byte("here"), 0o644); err != nil {
		t.Fatal(err)
	}
	res := New(dir, "").Run(context.Background(), 5*time.Second, "cat", "marker")
	if !res.Success || !strings.HasPrefix(res.Output, "here") {
		t.Errorf("result = %+v", res)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	res := New(t.TempDir(), "").Run(context.Background(), 5*time.Second, "sh", "-c", "echo failing >&2; exit 3")
	if res.Success {
		t.Error("Success = true for exit 3")
	}
	if !strings.Contains(res.Output, "failing") {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestRun_Timeout(t *testing.T) {
	res := New(t.TempDir(), "").Run(context.Background(), time.Second, "sleep", "10")
	if res.Success {
		t.Error("Success = true after timeout")
	}
	if res.Output != "Error: Script timed out after 1 seconds." {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestRun_MissingExecutable(t *testing.T) {
	res := New(t.TempDir(), "").Run(context.Background(), time.Second, "/nonexistent/binary")
	if res.Success {
		t.Error("Success = true for missing binary")
	}
	if !strings.HasPrefix(res.Output, "An unexpected error occurred: ") {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestRun_EmptyCommand(t *testing.T) {
	res := New("", "").Run(context.Background(), time.Second)
	if res.Success || !strings.Contains(res.Output, "empty command") {
		t.Errorf("result = %+v", res)
	}
}

func TestPython_UsesInterpreter(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "tool.sh")
	if err := os.WriteFile(script, []byte("echo args:$1,$2\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	// sh stands in for the Python interpreter.
	res := New(dir, "sh").Python(context.Background(), 5*time.Second, script, "a", "b")
	if !res.Success || !strings.HasPrefix(res.Output, "args:a,b") {
		t.Errorf("result = %+v", res)
	}
}

func TestNew_DefaultInterpreter(t *testing.T) {
	if r := New("", ""); r.Interpreter != "python3" {
		t.Errorf("Interpreter = %q, want python3", r.Interpreter)
	}
	if r := New("", "/opt/venv/bin/python"); r.Interpreter != "/opt/venv/bin/python" {
		t.Errorf("Interpreter = %q", r.Interpreter)
	}
}

func TestRedact(t *testing.T) {
	argv := []string{"python3", "mqtt_test.py", "broker", "1883", "-u", "pi", "-p", "secret"}
	got := strings.Join(redact(argv), " ")
	if strings.Contains(got, "secret") || !strings.HasSuffix(got, "-p ****") {
		t.Errorf("redact = %q", got)
	}
	if argv[7] != "secret" {
		t.Error("redact modified its input")
	}
}
