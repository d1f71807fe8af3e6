package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/alpack/alpack/internal/app/build"
	"github.com/alpack/alpack/internal/config"
)

type BuildCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	targets []string
}

// NewBuildCommand returns the build command.
func NewBuildCommand(rootCmd *RootCommand, app *kingpin.Application) *BuildCommand {
	c := &BuildCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("build", "Build Alpine packages from APKBUILD recipes inside the sandbox.")
	c.Cmd.Arg("targets", "APKBUILD files or recipe directories.").Required().StringsVar(&c.targets)

	return c
}

func (c BuildCommand) Name() string { return c.Cmd.FullCommand() }

func (c BuildCommand) Run(ctx context.Context) error {
	settings, _, err := c.rootCmd.LoadSettings()
	if err != nil {
		return err
	}

	eng, err := newEngineFromSettings(c.rootCmd, settings)
	if err != nil {
		return err
	}

	user := os.Getenv("USER")
	svc, err := build.NewService(build.ServiceConfig{
		Runner: eng,
		User:   user,
		Arch:   config.Arch(),
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	err = svc.Build(ctx, build.BuildOptions{
		RootfsDir: c.rootCmd.EffectiveRootfsDir(settings),
		Targets:   c.targets,
	})
	if err != nil {
		return fmt.Errorf("could not build packages: %w", err)
	}

	return nil
}
