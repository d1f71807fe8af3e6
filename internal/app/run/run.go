// Package run implements the application service that executes commands or
// interactive shells inside the sandbox.
package run

import (
	"context"
	"fmt"

	"github.com/alpack/alpack/internal/log"
	"github.com/alpack/alpack/internal/model"
	"github.com/alpack/alpack/internal/sandbox"
)

// ServiceConfig is the configuration for the run service.
type ServiceConfig struct {
	Runner sandbox.Runner
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Run"})
	return nil
}

// Service handles sandboxed command execution business logic.
type Service struct {
	runner sandbox.Runner
	logger log.Logger
}

// NewService creates a new run service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		runner: cfg.Runner,
		logger: cfg.Logger,
	}, nil
}

// RunOptions are the options for running a command in the sandbox.
type RunOptions struct {
	// RootfsDir is the sandbox rootfs directory.
	RootfsDir string
	// Command is the shell command to run. Empty starts an interactive shell.
	Command string
	// BindArgs are raw extra bind arguments passed through to the backend.
	BindArgs string
	// UseRoot emulates the root identity inside the sandbox.
	UseRoot bool
	// IgnoreExtraBinds skips probing optional host resources.
	IgnoreExtraBinds bool
	// NoGroups disables host passwd and group mapping.
	NoGroups bool
}

// Run executes a command inside the sandbox and returns its result.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*model.ExecutionResult, error) {
	if opts.RootfsDir == "" {
		return nil, fmt.Errorf("rootfs directory is required: %w", model.ErrNotValid)
	}

	if opts.Command == "" {
		s.logger.Debugf("Starting interactive shell in %q", opts.RootfsDir)
	} else {
		s.logger.Debugf("Running %q in %q", opts.Command, opts.RootfsDir)
	}

	result, err := s.runner.Run(ctx, model.SandboxRequest{
		RootfsDir:        opts.RootfsDir,
		Command:          opts.Command,
		BindArgs:         opts.BindArgs,
		UseRoot:          opts.UseRoot,
		IgnoreExtraBinds: opts.IgnoreExtraBinds,
		NoGroups:         opts.NoGroups,
	})
	if err != nil {
		return nil, fmt.Errorf("could not run sandboxed command: %w", err)
	}

	return result, nil
}
