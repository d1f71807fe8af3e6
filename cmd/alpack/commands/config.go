package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/alpack/alpack/internal/config"
	"github.com/alpack/alpack/internal/printer"
)

type ConfigCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	useProot        bool
	useBwrap        bool
	useLatestStable bool
	useEdge         bool
	cacheDir        string
	rootfsDir       string
	outputDir       string
	defaultMirror   string
	output          string
}

// NewConfigCommand returns the config command.
func NewConfigCommand(rootCmd *RootCommand, app *kingpin.Application) *ConfigCommand {
	c := &ConfigCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("config", "Show or change the persisted settings.")
	c.Cmd.Flag("use-proot", "Use the proot backend.").BoolVar(&c.useProot)
	c.Cmd.Flag("use-bwrap", "Use the bwrap backend.").BoolVar(&c.useBwrap)
	c.Cmd.Flag("use-latest-stable", "Target the latest stable Alpine release.").BoolVar(&c.useLatestStable)
	c.Cmd.Flag("use-edge", "Target the edge Alpine release.").BoolVar(&c.useEdge)
	c.Cmd.Flag("cache-dir", "Directory caching downloaded tarballs.").StringVar(&c.cacheDir)
	c.Cmd.Flag("rootfs-dir", "Directory holding the rootfs.").StringVar(&c.rootfsDir)
	c.Cmd.Flag("output-dir", "Directory receiving fetched recipes and artifacts.").StringVar(&c.outputDir)
	c.Cmd.Flag("default-mirror", "Alpine mirror base URL.").StringVar(&c.defaultMirror)
	c.Cmd.Flag("output", "Output format.").Short('o').Default("table").EnumVar(&c.output, "table", "json")

	return c
}

func (c ConfigCommand) Name() string { return c.Cmd.FullCommand() }

func (c ConfigCommand) Run(ctx context.Context) error {
	if c.useProot && c.useBwrap {
		return fmt.Errorf("--use-proot and --use-bwrap are mutually exclusive")
	}
	if c.useLatestStable && c.useEdge {
		return fmt.Errorf("--use-latest-stable and --use-edge are mutually exclusive")
	}

	settings, store, err := c.rootCmd.LoadSettings()
	if err != nil {
		return err
	}

	var p printer.Printer
	switch c.output {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default:
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	type change struct {
		key      string
		oldValue string
		newValue string
	}
	changes := []change{}
	apply := func(key string, field *string, newValue string) {
		if newValue == "" || *field == newValue {
			return
		}
		changes = append(changes, change{key: key, oldValue: *field, newValue: newValue})
		*field = newValue
	}

	backend := ""
	if c.useProot {
		backend = "proot"
	}
	if c.useBwrap {
		backend = "bwrap"
	}
	release := ""
	if c.useLatestStable {
		release = config.ReleaseLatestStable
	}
	if c.useEdge {
		release = config.ReleaseEdge
	}

	apply("backend", &settings.Backend, backend)
	apply("release", &settings.Release, release)
	apply("cache_dir", &settings.CacheDir, c.cacheDir)
	apply("rootfs_dir", &settings.RootfsDir, c.rootfsDir)
	apply("output_dir", &settings.OutputDir, c.outputDir)
	apply("default_mirror", &settings.DefaultMirror, c.defaultMirror)

	// Without changes this is a plain settings listing.
	if len(changes) == 0 {
		return p.PrintSettings(settings)
	}

	if err := store.Save(settings); err != nil {
		return fmt.Errorf("could not save settings: %w", err)
	}

	for _, ch := range changes {
		if err := p.PrintSettingsChange(ch.key, ch.oldValue, ch.newValue); err != nil {
			return err
		}
	}

	return nil
}
