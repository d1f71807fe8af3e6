package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/alpack/alpack/internal/app/ports"
)

// PortsCommand indexes, searches and fetches recipes from a package tree.
// It backs both the aports and the aptree subcommands.
type PortsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	repo    ports.RepoSpec

	update    bool
	search    []string
	get       []string
	outputDir string
}

// NewPortsCommand returns a package tree command for a repository.
func NewPortsCommand(rootCmd *RootCommand, app *kingpin.Application, repo ports.RepoSpec, help string) *PortsCommand {
	c := &PortsCommand{rootCmd: rootCmd, repo: repo}

	c.Cmd = app.Command(repo.Name, help)
	c.Cmd.Flag("update", "Regenerate the local package index.").Short('u').BoolVar(&c.update)
	c.Cmd.Flag("search", "Search the index for a package. Can be repeated.").Short('s').StringsVar(&c.search)
	c.Cmd.Flag("get", "Fetch the build recipe of a package. Can be repeated.").Short('g').StringsVar(&c.get)
	c.Cmd.Flag("output", "Directory receiving fetched recipes.").Short('o').StringVar(&c.outputDir)

	return c
}

func (c PortsCommand) Name() string { return c.Cmd.FullCommand() }

func (c PortsCommand) Run(ctx context.Context) error {
	if !c.update && len(c.search) == 0 && len(c.get) == 0 {
		return fmt.Errorf("nothing to do, use --update, --search or --get")
	}

	settings, _, err := c.rootCmd.LoadSettings()
	if err != nil {
		return err
	}
	rootfsDir := c.rootCmd.EffectiveRootfsDir(settings)

	eng, err := newEngineFromSettings(c.rootCmd, settings)
	if err != nil {
		return err
	}

	svc, err := ports.NewService(ports.ServiceConfig{Runner: eng, Logger: c.rootCmd.Logger})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	if c.update {
		if err := svc.Update(ctx, rootfsDir, c.repo); err != nil {
			return err
		}
	}

	if len(c.search) > 0 {
		matches, err := svc.Search(rootfsDir, c.repo, c.search)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Fprintln(c.rootCmd.Stdout, "No results found.")
		}
		for _, m := range matches {
			fmt.Fprintln(c.rootCmd.Stdout, m)
		}
	}

	if len(c.get) > 0 {
		outputDir := c.outputDir
		if outputDir == "" {
			outputDir, err = settings.OutputPath()
			if err != nil {
				return err
			}
		}

		if err := svc.Fetch(ctx, rootfsDir, c.repo, c.get, outputDir); err != nil {
			return err
		}
		fmt.Fprintf(c.rootCmd.Stdout, "Recipes copied to %s\n", outputDir)
	}

	return nil
}
