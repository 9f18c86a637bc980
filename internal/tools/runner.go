package tools

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"pyfix/internal/errors"
)

// Result captures one tool invocation. A non-zero exit code is an expected
// outcome (failing tests are the whole point), not an error.
type Result struct {
	Tool     string        `json:"tool"`
	ExitCode int           `json:"exitCode"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
}

// Output returns the combined text scanned for diagnostics. Python writes
// tracebacks to stderr; pytest repeats them on stdout.
func (r Result) Output() string {
	return r.Stdout + "\n" + r.Stderr
}

// Runner invokes tools against a project root. fixMode selects the tool's
// fix-mode argv; the default is the read-only check-mode argv.
type Runner interface {
	Run(ctx context.Context, root string, tool Tool, fixMode bool) (Result, error)
}

type execRunner struct {
	logger *slog.Logger
}

// NewRunner returns a Runner that executes tools as subprocesses with the
// project root as working directory.
func NewRunner(logger *slog.Logger) Runner {
	return &execRunner{logger: logger}
}

func (r *execRunner) Run(ctx context.Context, root string, tool Tool, fixMode bool) (Result, error) {
	path, err := exec.LookPath(tool.Command)
	if err != nil {
		return Result{}, errors.New(errors.ToolNotFound,
			fmt.Sprintf("%s not found on PATH", tool.Command), err)
	}

	if tool.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tool.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, tool.Argv(fixMode)...) //nolint:gosec // G204: path from exec.LookPath
	cmd.Dir = root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	result := Result{
		Tool:     tool.Name,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return result, errors.New(errors.ToolFailure,
				fmt.Sprintf("running %s", tool.Name), runErr)
		}
		if ctx.Err() == context.DeadlineExceeded {
			return result, errors.New(errors.ToolFailure,
				fmt.Sprintf("%s timed out after %s", tool.Name, tool.Timeout), ctx.Err())
		}
	}

	r.logger.Info("tool finished",
		slog.String("tool", tool.Name),
		slog.Bool("fixMode", fixMode),
		slog.Int("exitCode", result.ExitCode),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// Available reports whether the tool's command can be resolved on PATH.
// Doctor uses it to warn about missing tools before a run; the runner itself
// reports a missing tool as a ToolNotFound error at invocation time.
func Available(tool Tool) bool {
	_, err := exec.LookPath(tool.Command)
	return err == nil
}
