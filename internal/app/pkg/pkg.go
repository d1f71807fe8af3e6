// Package pkg implements the application service that manages Alpine
// packages through apk inside the sandbox.
package pkg

import (
	"context"
	"fmt"
	"strings"

	"github.com/alpack/alpack/internal/log"
	"github.com/alpack/alpack/internal/model"
	"github.com/alpack/alpack/internal/sandbox"
)

// verbCommands maps CLI verbs to the apk invocation they expand to. Unknown
// verbs are passed through to apk untouched.
var verbCommands = map[string]string{
	"add":     "apk add",
	"install": "apk add",
	"del":     "apk del",
	"remove":  "apk del",
	"update":  "apk update && apk upgrade",
	"search":  "apk search",
	"fix":     "apk fix",
}

// ServiceConfig is the configuration for the package service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Pkg"})
	return nil
}

// Service handles package management business logic.
type Service struct {
	runner sandbox.Runner
	logger log.Logger
}

// NewService creates a new package service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		runner: cfg.Runner,
		logger: cfg.Logger,
	}, nil
}

// ManageOptions are the options for a package management operation.
type ManageOptions struct {
	// RootfsDir is the sandbox rootfs directory.
	RootfsDir string
	// Args is the apk invocation, verb first. Friendly verbs like install
	// and remove are translated to apk subcommands.
	Args []string
}

// Manage runs an apk operation inside the sandbox as root.
func (s *Service) Manage(ctx context.Context, opts ManageOptions) (*model.ExecutionResult, error) {
	if opts.RootfsDir == "" {
		return nil, fmt.Errorf("rootfs directory is required: %w", model.ErrNotValid)
	}

	if len(opts.Args) == 0 {
		return nil, fmt.Errorf("apk subcommand is required: %w", model.ErrNotValid)
	}

	command, ok := verbCommands[opts.Args[0]]
	if !ok {
		command = "apk " + opts.Args[0]
	}
	if rest := opts.Args[1:]; len(rest) > 0 {
		command += " " + strings.Join(rest, " ")
	}

	s.logger.Infof("Running %q", command)

	result, err := s.runner.Run(ctx, model.SandboxRequest{
		RootfsDir:        opts.RootfsDir,
		Command:          command,
		UseRoot:          true,
		IgnoreExtraBinds: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not run apk: %w", err)
	}

	return result, nil
}
