package sandbox

import (
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/alpack/alpack/internal/model"
)

// Launcher spawns the resolved backend with a composed argument vector. The
// child inherits the configured standard streams unconditionally, which is
// required for interactive shells and prompts to work.
type Launcher struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewLauncher creates a new process launcher wired to the given streams.
func NewLauncher(stdin io.Reader, stdout, stderr io.Writer) *Launcher {
	return &Launcher{stdin: stdin, stdout: stdout, stderr: stderr}
}

// Launch runs the backend and blocks until the child exits. There is no
// timeout and no engine initiated cancellation: termination is delegated to
// normal signal delivery through the controlling terminal.
//
// It returns the child's exit code, -1 when the child terminated abnormally
// (e.g. by signal), or an error when the OS could not create the process.
func (l *Launcher) Launch(backend model.Backend, argv []string) (*model.ExecutionResult, error) {
	cmd := exec.Command(backend.Path, argv...)
	cmd.Stdin = l.stdin
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr

	err := cmd.Run()
	if err == nil {
		return &model.ExecutionResult{ExitCode: 0}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// ExitCode is -1 when the child died from a signal.
		return &model.ExecutionResult{ExitCode: exitErr.ExitCode()}, nil
	}

	return nil, fmt.Errorf("could not spawn %s: %w", backend.Path, err)
}
