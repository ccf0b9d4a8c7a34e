// Package hook runs external commands on navigation events, passing a
// JSON event on stdin and reading an optional JSON reply from stdout.
package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"time"

	"github.com/ayusman/porter/internal/config"
)

// Event is the JSON document a hook receives on stdin.
type Event struct {
	Event      string  `json:"event"`
	Payload    string  `json:"payload"`
	DistanceCM float64 `json:"distance_cm"`
}

// Reply is the optional JSON document a hook may print on stdout.
// An empty stdout counts as success.
type Reply struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Executor runs configured hooks with a per-hook timeout.
type Executor struct {
	hooks []config.HookConfig
}

// NewExecutor creates an Executor for the given hook list.
func NewExecutor(hooks []config.HookConfig) *Executor {
	return &Executor{hooks: hooks}
}

// Run executes every configured hook with the event. Failures are
// returned but a failing hook never stops the others.
func (e *Executor) Run(ev Event) []error {
	var errs []error
	for _, h := range e.hooks {
		if err := e.runOne(h, ev); err != nil {
			errs = append(errs, fmt.Errorf("hook %s: %w", h.Name, err))
		}
	}
	return errs
}

// RunLogged executes every hook and logs failures instead of
// returning them, for callers inside control loops.
func (e *Executor) RunLogged(ev Event) {
	for _, err := range e.Run(ev) {
		log.Printf("Arrival hook failed: %v", err)
	}
}

func (e *Executor) runOne(h config.HookConfig, ev Event) error {
	if len(h.Command) == 0 {
		return fmt.Errorf("no command configured")
	}

	timeout := time.Duration(h.TimeoutS) * time.Second

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, h.Command[0], h.Command[1:]...)

	// Marshal the event to JSON
	evJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Set up stdin with the event JSON
	cmd.Stdin = bytes.NewReader(evJSON)

	// Capture stdout and stderr
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Run the command
	err = cmd.Run()

	// Check for context deadline exceeded (timeout)
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("execution timeout after %s", timeout)
	}

	// Check for execution error
	if err != nil {
		stderrStr := stderr.String()
		if stderrStr != "" {
			return fmt.Errorf("execution failed: %w, stderr: %s", err, stderrStr)
		}
		return fmt.Errorf("execution failed: %w", err)
	}

	// An empty reply is fine, otherwise it must parse.
	if stdout.Len() == 0 {
		return nil
	}

	var reply Reply
	if err := json.Unmarshal(stdout.Bytes(), &reply); err != nil {
		return fmt.Errorf("failed to parse reply: %w, stdout: %s", err, stdout.String())
	}
	if !reply.Success {
		return fmt.Errorf("hook reported failure: %s", reply.Error)
	}

	return nil
}
