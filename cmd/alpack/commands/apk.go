package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/alpack/alpack/internal/app/pkg"
)

type ApkCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	verb string
	args []string
}

// NewApkCommand returns the apk command.
func NewApkCommand(rootCmd *RootCommand, app *kingpin.Application) *ApkCommand {
	c := &ApkCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("apk", "Manage Alpine packages inside the sandbox.")
	c.Cmd.Arg("subcommand", "apk subcommand (add, del, update, search, fix, ...).").Required().StringVar(&c.verb)
	c.Cmd.Arg("args", "Arguments for the apk subcommand.").StringsVar(&c.args)

	return c
}

func (c ApkCommand) Name() string { return c.Cmd.FullCommand() }

func (c ApkCommand) Run(ctx context.Context) error {
	return runApk(ctx, c.rootCmd, append([]string{c.verb}, c.args...))
}

// ApkAliasCommand is a top level shortcut for a single apk verb, so
// "alpack install git" works like "alpack apk add git".
type ApkAliasCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	verb string
	args []string
}

// NewApkAliasCommand returns a top level alias command for an apk verb.
func NewApkAliasCommand(rootCmd *RootCommand, app *kingpin.Application, verb, help string) *ApkAliasCommand {
	c := &ApkAliasCommand{rootCmd: rootCmd, verb: verb}

	c.Cmd = app.Command(verb, help)
	c.Cmd.Arg("args", "Arguments for the operation.").StringsVar(&c.args)

	return c
}

func (c ApkAliasCommand) Name() string { return c.Cmd.FullCommand() }

func (c ApkAliasCommand) Run(ctx context.Context) error {
	return runApk(ctx, c.rootCmd, append([]string{c.verb}, c.args...))
}

func runApk(ctx context.Context, rootCmd *RootCommand, args []string) error {
	settings, _, err := rootCmd.LoadSettings()
	if err != nil {
		return err
	}

	eng, err := newEngineFromSettings(rootCmd, settings)
	if err != nil {
		return err
	}

	svc, err := pkg.NewService(pkg.ServiceConfig{Runner: eng, Logger: rootCmd.Logger})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	result, err := svc.Manage(ctx, pkg.ManageOptions{
		RootfsDir: rootCmd.EffectiveRootfsDir(settings),
		Args:      args,
	})
	if err != nil {
		return fmt.Errorf("could not manage packages: %w", err)
	}

	if result.ExitCode != 0 {
		os.Exit(result.ExitCode)
	}

	return nil
}
