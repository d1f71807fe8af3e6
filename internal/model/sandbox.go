package model

import "fmt"

// BackendKind identifies one of the two supported isolation backends.
type BackendKind string

const (
	// BackendProot is the ptrace based isolation backend. It doesn't need
	// user namespaces and works on locked down kernels, at a syscall
	// translation performance cost.
	BackendProot BackendKind = "proot"
	// BackendBwrap is the user namespace based isolation backend.
	BackendBwrap BackendKind = "bwrap"
)

// ParseBackendKind validates a configured backend identifier.
func ParseBackendKind(s string) (BackendKind, error) {
	switch BackendKind(s) {
	case BackendProot:
		return BackendProot, nil
	case BackendBwrap:
		return BackendBwrap, nil
	}
	return "", fmt.Errorf("unsupported backend %q (supported: %s, %s): %w", s, BackendProot, BackendBwrap, ErrNotValid)
}

// Backend is a resolved isolation backend ready to be executed.
type Backend struct {
	Kind BackendKind
	Path string
}

// SandboxRequest contains everything needed for one isolated execution.
// It is built fresh per invocation and never persisted.
type SandboxRequest struct {
	// RootfsDir is the directory used as the sandbox's view of "/".
	RootfsDir string
	// BindArgs is a raw extra bind specification in the syntax native to the
	// selected backend. It is appended verbatim, the engine doesn't interpret it.
	BindArgs string
	// Command is the command line passed to the login shell with -c. Empty
	// means an interactive shell session.
	Command string
	// UseRoot presents an emulated root identity inside the sandbox.
	UseRoot bool
	// IgnoreExtraBinds skips the optional host font/theme/audio binds.
	IgnoreExtraBinds bool
	// NoGroups skips binding passwd/group identity files.
	NoGroups bool
}

// Identity is the real host identity captured once at process start.
type Identity struct {
	UID  int
	GID  int
	EUID int
}

// IsolationPlan is the fully resolved argument and environment set for one
// invocation. Args are the backend arguments in order, Env the environment
// assignments applied through env(1) before the shell starts.
type IsolationPlan struct {
	Args []string
	Env  []string
}

// Argv composes the final child argument vector: backend arguments, then the
// environment assignments, then a shell running the given command (or an
// interactive session when command is empty).
func (p IsolationPlan) Argv(command string) []string {
	argv := make([]string, 0, len(p.Args)+len(p.Env)+4)
	argv = append(argv, p.Args...)
	argv = append(argv, "env")
	argv = append(argv, p.Env...)
	argv = append(argv, "/bin/sh")
	if command != "" {
		argv = append(argv, "-c", command)
	}
	return argv
}

// ExecutionResult contains the result of one sandboxed execution.
type ExecutionResult struct {
	// ExitCode is the child's exit code, or -1 when the child terminated
	// abnormally (e.g. by signal) and no code could be recovered.
	ExitCode int
}
