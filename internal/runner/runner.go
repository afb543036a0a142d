// Package runner executes the scoreboard's helper scripts and captures their
// combined output in the shape the web UI expects.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"

	"github.com/falkyre/scoreboard-hub/internal/logutil"
)

// DefaultTimeout bounds a script run when the caller passes zero.
const DefaultTimeout = 300 * time.Second

// Result is the outcome of one script run.
type Result struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
}

// Runner runs commands from a fixed working directory.
type Runner struct {
	// Dir is the working directory, normally the scoreboard checkout.
	Dir string
	// Interpreter runs the scripts passed to Python.
	Interpreter string
}

// New returns a Runner rooted at dir using python as the interpreter.
func New(dir, python string) *Runner {
	if python == "" {
		python = "python3"
	}
	return &Runner{Dir: dir, Interpreter: python}
}

// Run executes argv and waits at most timeout. Output is stdout, a newline,
// then stderr. A non-zero exit is reported through Success, never as a Go
// error; timeouts and start failures are described in Output.
func (r *Runner) Run(ctx context.Context, timeout time.Duration, argv ...string) Result {
	if len(argv) == 0 {
		return Result{Output: "An unexpected error occurred: empty command"}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	cmd.WaitDelay = 2 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Printf("[runner] exec %s", logutil.SanitizeForLog(strings.Join(redact(argv), " ")))
	err := cmd.Run()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		log.Printf("[runner] %s timed out after %s", argv[0], timeout)
		return Result{Output: fmt.Sprintf("Error: Script timed out after %d seconds.", int(timeout.Seconds()))}
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		log.Printf("[runner] %s: %v", argv[0], err)
		return Result{Output: fmt.Sprintf("An unexpected error occurred: %v", err)}
	}

	return Result{
		Success: err == nil,
		Output:  stdout.String() + "\n" + stderr.String(),
	}
}

// Python runs script with the configured interpreter.
func (r *Runner) Python(ctx context.Context, timeout time.Duration, script string, args ...string) Result {
	argv := append([]string{r.Interpreter, script}, args...)
	return r.Run(ctx, timeout, argv...)
}

// redact masks values following password flags for logging.
func redact(argv []string) []string {
	out := make([]string, len(argv))
	copy(out, argv)
	for i := 1; i < len(out); i++ {
		if out[i-1] == "-p" || out[i-1] == "--password" {
			out[i] = "****"
		}
	}
	return out
}
