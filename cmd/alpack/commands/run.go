package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/alpack/alpack/internal/app/run"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	useRoot          bool
	ignoreExtraBinds bool
	noGroups         bool
	bindArgs         string
	command          string
	trailing         []string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run a command or an interactive shell inside the sandbox.").Default()
	c.Cmd.Flag("root", "Emulate the root identity inside the sandbox.").Short('0').BoolVar(&c.useRoot)
	c.Cmd.Flag("ignore-extra-binds", "Do not bind optional host resources (fonts, themes, cursors).").Short('i').BoolVar(&c.ignoreExtraBinds)
	c.Cmd.Flag("no-groups", "Do not map the host passwd and group files.").Short('n').BoolVar(&c.noGroups)
	c.Cmd.Flag("bind-args", "Extra bind arguments passed through to the backend.").Short('b').StringVar(&c.bindArgs)
	c.Cmd.Flag("command", "Shell command to run instead of an interactive shell.").Short('c').StringVar(&c.command)
	c.Cmd.Arg("args", "Command to run (alternative to --command).").StringsVar(&c.trailing)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	settings, _, err := c.rootCmd.LoadSettings()
	if err != nil {
		return err
	}

	eng, err := newEngineFromSettings(c.rootCmd, settings)
	if err != nil {
		return err
	}

	svc, err := run.NewService(run.ServiceConfig{Runner: eng, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	command := c.command
	if command == "" && len(c.trailing) > 0 {
		command = strings.Join(c.trailing, " ")
	}

	result, err := svc.Run(ctx, run.RunOptions{
		RootfsDir:        c.rootCmd.EffectiveRootfsDir(settings),
		Command:          command,
		BindArgs:         c.bindArgs,
		UseRoot:          c.useRoot,
		IgnoreExtraBinds: c.ignoreExtraBinds,
		NoGroups:         c.noGroups,
	})
	if err != nil {
		return fmt.Errorf("could not run sandbox: %w", err)
	}

	// Exit with the sandboxed command's exit code.
	os.Exit(result.ExitCode)
	return nil
}
