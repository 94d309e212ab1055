// Package run executes short-lived external commands with captured output.
// Long-running supervised processes live in internal/process; this package
// covers the one-shot tool invocations (modprobe, pactl, v4l2-ctl, ffmpeg
// artifact generation, TTS engines).
package run

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result holds the outcome of a completed command.
type Result struct {
	Stdout string
	Stderr string
	Code   int
}

// Runner executes external commands. Commands are always given as argument
// lists; nothing here passes through a shell.
type Runner interface {
	// Run executes the command and waits for it. A non-zero exit status is
	// not an error: it is reported through Result.Code so callers can
	// inspect stderr. The error return covers genuine execution failures
	// (command not found, permission denied, context expiry).
	Run(ctx context.Context, name string, args ...string) (Result, error)

	// RunInput is Run with the given bytes wired to the command's stdin.
	RunInput(ctx context.Context, input []byte, name string, args ...string) (Result, error)

	// LookPath reports the full path of a tool, or an error if absent.
	LookPath(name string) (string, error)
}

type execRunner struct{}

// New returns a Runner backed by os/exec.
func New() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return runCmd(ctx, nil, name, args...)
}

func (execRunner) RunInput(ctx context.Context, input []byte, name string, args ...string) (Result, error) {
	return runCmd(ctx, input, name, args...)
}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func runCmd(ctx context.Context, input []byte, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if input != nil {
		cmd.Stdin = bytes.NewReader(input)
	}

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		// A killed child looks like an ordinary non-zero exit, so the
		// context check must come first or timeouts would be reported as
		// command failures.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.Code = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}
