package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/alpack/alpack/internal/app/setup"
	"github.com/alpack/alpack/internal/config"
	"github.com/alpack/alpack/internal/download"
	"github.com/alpack/alpack/internal/mirror"
)

type SetupCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	reinstall bool
	noCache   bool
	edge      bool
	minimal   bool
	mirrorURL string
	cacheDir  string
}

// NewSetupCommand returns the setup command.
func NewSetupCommand(rootCmd *RootCommand, app *kingpin.Application) *SetupCommand {
	c := &SetupCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("setup", "Download and install an Alpine rootfs.")
	c.Cmd.Flag("reinstall", "Replace an already installed rootfs.").Short('r').BoolVar(&c.reinstall)
	c.Cmd.Flag("no-cache", "Do not keep the downloaded tarball.").BoolVar(&c.noCache)
	c.Cmd.Flag("edge", "Install the edge release instead of the stable one.").BoolVar(&c.edge)
	c.Cmd.Flag("minimal", "Skip installing the default package set.").BoolVar(&c.minimal)
	c.Cmd.Flag("mirror", "Alpine mirror base URL (overrides the configured one).").StringVar(&c.mirrorURL)
	c.Cmd.Flag("cache", "Cache directory (overrides the configured one).").StringVar(&c.cacheDir)

	return c
}

func (c SetupCommand) Name() string { return c.Cmd.FullCommand() }

func (c SetupCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	settings, _, err := c.rootCmd.LoadSettings()
	if err != nil {
		return err
	}

	eng, err := newEngineFromSettings(c.rootCmd, settings)
	if err != nil {
		return err
	}

	locator, err := mirror.NewClient(mirror.ClientConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create mirror client: %w", err)
	}

	fetcher, err := download.NewClient(download.ClientConfig{
		Out:    c.rootCmd.Stderr,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create download client: %w", err)
	}

	svc, err := setup.NewService(setup.ServiceConfig{
		Locator: locator,
		Fetcher: fetcher,
		Runner:  eng,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	mirrorURL := c.mirrorURL
	if mirrorURL == "" {
		mirrorURL = settings.DefaultMirror
	}
	cacheDir := c.cacheDir
	if cacheDir == "" {
		cacheDir = settings.CachePath()
	}
	release := settings.Release
	if c.edge {
		release = config.ReleaseEdge
	}

	err = svc.Setup(ctx, setup.SetupOptions{
		RootfsDir: c.rootCmd.EffectiveRootfsDir(settings),
		CacheDir:  cacheDir,
		MirrorURL: mirrorURL,
		Release:   release,
		Arch:      config.Arch(),
		Reinstall: c.reinstall,
		NoCache:   c.noCache,
		Minimal:   c.minimal,
	})
	if err != nil {
		return fmt.Errorf("could not set up rootfs: %w", err)
	}

	fmt.Fprintln(c.rootCmd.Stdout, "Installation completed successfully! Run \"alpack run\" to start the environment.")

	return nil
}
