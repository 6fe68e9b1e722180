// Package executor runs the analytic as a subprocess.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Run describes one analytic invocation. The resolved inputs and parameters
// are written to a JSON manifest whose path, along with the output
// directory, is handed to the process through the environment.
type Run struct {
	Command    []string
	Inputs     map[string]string
	Parameters map[string]any
	OutputDir  string
	WorkDir    string
}

type manifest struct {
	Inputs     map[string]string `json:"inputs"`
	Parameters map[string]any    `json:"parameters"`
	OutputDir  string            `json:"output_dir"`
}

// Result holds the outcome of an analytic run.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Executor executes analytic subprocesses with a bounded runtime.
type Executor struct {
	timeout time.Duration
	logger  *zap.Logger
}

// New creates an Executor. A zero timeout defaults to one hour.
func New(timeout time.Duration, logger *zap.Logger) *Executor {
	if timeout == 0 {
		timeout = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{timeout: timeout, logger: logger}
}

// Execute runs the analytic and waits for it to finish. The process
// receives TASK_MANIFEST and TASK_OUTPUT_DIR in its environment. A non-zero
// exit or a timeout is returned as an error alongside the captured result.
func (e *Executor) Execute(ctx context.Context, run Run) (*Result, error) {
	if len(run.Command) == 0 {
		return nil, fmt.Errorf("no analytic command configured")
	}

	manifestPath, err := writeManifest(run)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, run.Command[0], run.Command[1:]...)
	cmd.Dir = run.WorkDir
	cmd.Env = append(os.Environ(),
		"TASK_MANIFEST="+manifestPath,
		"TASK_OUTPUT_DIR="+run.OutputDir,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Info("analytic_start",
		zap.Strings("command", run.Command),
		zap.String("manifest", manifestPath),
	)

	start := time.Now()
	err = cmd.Run()
	result := &Result{
		Duration: time.Since(start),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.ExitCode = -1
			return result, fmt.Errorf("analytic timed out after %v", e.timeout)
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		e.logger.Error("analytic_failed",
			zap.Int("exit_code", result.ExitCode),
			zap.Duration("duration", result.Duration),
			zap.Error(err),
		)
		return result, fmt.Errorf("analytic failed: %w", err)
	}

	e.logger.Info("analytic_done", zap.Duration("duration", result.Duration))
	return result, nil
}

func writeManifest(run Run) (string, error) {
	m := manifest{
		Inputs:     run.Inputs,
		Parameters: run.Parameters,
		OutputDir:  run.OutputDir,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}

	dir := run.WorkDir
	if dir == "" {
		dir = os.TempDir()
	}
	manifestPath := filepath.Join(dir, "task-manifest.json")
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return manifestPath, nil
}
