// Package sandbox implements the isolated execution engine: backend
// resolution, isolation argument composition, identity emulation and process
// launching for proot and bwrap rootfs sandboxes.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alpack/alpack/internal/log"
	"github.com/alpack/alpack/internal/model"
)

// Runner is the contract app services use to execute commands inside the
// sandbox.
type Runner interface {
	Run(ctx context.Context, req model.SandboxRequest) (*model.ExecutionResult, error)
}

// backendResolver resolves a backend kind into an executable.
type backendResolver interface {
	Resolve(ctx context.Context, kind model.BackendKind) (*model.Backend, error)
}

// processLauncher spawns the backend process and waits for it.
type processLauncher interface {
	Launch(backend model.Backend, argv []string) (*model.ExecutionResult, error)
}

// EngineConfig is the configuration for the sandbox engine.
type EngineConfig struct {
	// Backend is the configured isolation backend kind.
	Backend model.BackendKind
	// Resolver resolves the backend executable.
	Resolver *BackendResolver
	// Prober reports live host state for optional binds (defaults to the OS).
	Prober HostProber
	// Identity is the real host identity captured at process start.
	Identity model.Identity
	// HomeDir is the caller's home directory, bound into bwrap sandboxes.
	HomeDir string
	// Stdin, Stdout and Stderr are inherited by the sandboxed process.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Logger for logging.
	Logger log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.Backend == "" {
		return fmt.Errorf("backend kind is required")
	}
	if c.Resolver == nil {
		return fmt.Errorf("backend resolver is required")
	}
	if c.HomeDir == "" {
		return fmt.Errorf("home directory is required")
	}
	if c.Prober == nil {
		c.Prober = OSProber{}
	}
	if c.Stdin == nil {
		c.Stdin = os.Stdin
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.Engine"})
	return nil
}

// Engine executes commands inside an isolated rootfs. One engine invocation
// is a single synchronous spawn-and-wait: argument composition, filesystem
// probing and launching happen sequentially with no internal parallelism.
type Engine struct {
	backend  model.BackendKind
	resolver backendResolver
	prober   HostProber
	identity model.Identity
	homeDir  string
	launcher processLauncher
	logger   log.Logger
}

// NewEngine creates a new sandbox engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		backend:  cfg.Backend,
		resolver: cfg.Resolver,
		prober:   cfg.Prober,
		identity: cfg.Identity,
		homeDir:  cfg.HomeDir,
		launcher: NewLauncher(cfg.Stdin, cfg.Stdout, cfg.Stderr),
		logger:   cfg.Logger,
	}, nil
}

// Run executes one sandbox request and returns the child's exit status.
func (e *Engine) Run(ctx context.Context, req model.SandboxRequest) (*model.ExecutionResult, error) {
	if err := checkRootfsDir(req.RootfsDir); err != nil {
		return nil, err
	}

	backend, err := e.resolver.Resolve(ctx, e.backend)
	if err != nil {
		return nil, fmt.Errorf("could not resolve backend: %w", err)
	}

	// Mount table repair is best effort for both backends: a failure is
	// surfaced in the logs and execution continues.
	if err := RepairMountTable(req.RootfsDir); err != nil {
		e.logger.Warningf("Could not repair guest mount table: %v", err)
	}

	plan, err := BuildPlan(e.backend, req, e.prober, e.identity, e.homeDir)
	if err != nil {
		return nil, fmt.Errorf("could not build isolation plan: %w", err)
	}

	argv := plan.Argv(req.Command)
	e.logger.Debugf("Launching %s with %d arguments", backend.Path, len(argv))

	return e.launcher.Launch(*backend, argv)
}

// Check performs preflight checks for the configured backend.
func (e *Engine) Check(ctx context.Context, rootfsDir string) []model.CheckResult {
	var results []model.CheckResult

	backend, err := e.resolver.Resolve(ctx, e.backend)
	if err != nil {
		results = append(results, model.CheckResult{
			ID:      "backend_binary",
			Message: fmt.Sprintf("%s could not be resolved: %v", e.backend, err),
			Status:  model.CheckStatusError,
		})
	} else {
		results = append(results, model.CheckResult{
			ID:      "backend_binary",
			Message: fmt.Sprintf("%s available at %s", backend.Kind, backend.Path),
			Status:  model.CheckStatusOK,
		})
	}

	if err := checkRootfsDir(rootfsDir); err != nil {
		results = append(results, model.CheckResult{
			ID:      "rootfs_dir",
			Message: fmt.Sprintf("rootfs %q missing (run setup to create it)", rootfsDir),
			Status:  model.CheckStatusWarning,
		})
	} else {
		results = append(results, model.CheckResult{
			ID:      "rootfs_dir",
			Message: fmt.Sprintf("rootfs present at %s", rootfsDir),
			Status:  model.CheckStatusOK,
		})
	}

	return results
}

// checkRootfsDir verifies the rootfs exists as a directory before any plan is
// built. Absence is fatal, never silently substituted.
func checkRootfsDir(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("rootfs directory not found at %q, run \"alpack setup\" to create it: %w", path, model.ErrRootfsMissing)
	}
	return nil
}
