package commands

import (
	"fmt"

	"k8s.io/client-go/util/homedir"

	"github.com/alpack/alpack/internal/config"
	"github.com/alpack/alpack/internal/sandbox"
)

// newEngineFromSettings creates the sandbox engine for the configured
// isolation backend.
func newEngineFromSettings(rootCmd *RootCommand, settings config.Settings) (*sandbox.Engine, error) {
	kind, err := settings.BackendKind()
	if err != nil {
		return nil, fmt.Errorf("invalid backend in settings: %w", err)
	}

	resolver, err := sandbox.NewBackendResolver(sandbox.BackendResolverConfig{
		HomeDir: homedir.HomeDir(),
		Out:     rootCmd.Stderr,
		Logger:  rootCmd.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create backend resolver: %w", err)
	}

	engine, err := sandbox.NewEngine(sandbox.EngineConfig{
		Backend:  kind,
		Resolver: resolver,
		Identity: sandbox.CurrentIdentity(),
		HomeDir:  homedir.HomeDir(),
		Stdin:    rootCmd.Stdin,
		Stdout:   rootCmd.Stdout,
		Stderr:   rootCmd.Stderr,
		Logger:   rootCmd.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create sandbox engine: %w", err)
	}

	return engine, nil
}
