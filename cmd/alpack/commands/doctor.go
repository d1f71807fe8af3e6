package commands

import (
	"context"
	"fmt"
	"runtime"

	"github.com/alecthomas/kingpin/v2"

	"github.com/alpack/alpack/internal/model"
	"github.com/alpack/alpack/internal/printer"
	"github.com/alpack/alpack/internal/sandbox"
)

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	output string
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Run preflight checks for the sandbox environment.")
	c.Cmd.Flag("output", "Output format.").Short('o').Default("table").EnumVar(&c.output, "table", "json")

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	settings, _, err := c.rootCmd.LoadSettings()
	if err != nil {
		return err
	}

	eng, err := newEngineFromSettings(c.rootCmd, settings)
	if err != nil {
		return err
	}

	checks := eng.Check(ctx, c.rootCmd.EffectiveRootfsDir(settings))

	// Static binary downloads are the fallback when the backend is not
	// installed, and they are only published for some architectures.
	if sandbox.DownloadSupported(runtime.GOARCH) {
		checks = append(checks, model.CheckResult{
			ID:      "arch_downloads",
			Message: fmt.Sprintf("static backend downloads available for %s", runtime.GOARCH),
			Status:  model.CheckStatusOK,
		})
	} else {
		checks = append(checks, model.CheckResult{
			ID:      "arch_downloads",
			Message: fmt.Sprintf("no static backend downloads for %s, the backend must be installed on the host", runtime.GOARCH),
			Status:  model.CheckStatusWarning,
		})
	}

	var p printer.Printer
	switch c.output {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default:
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintChecks(checks); err != nil {
		return err
	}

	_, warnings, errors := model.CountByStatus(checks)
	if c.output == "table" {
		if errors == 0 && warnings == 0 {
			fmt.Fprintln(c.rootCmd.Stdout, "\nAll checks passed!")
		} else {
			fmt.Fprintf(c.rootCmd.Stdout, "\n%d error(s), %d warning(s)\n", errors, warnings)
		}
	}

	if errors > 0 {
		return fmt.Errorf("preflight checks failed with %d error(s)", errors)
	}

	return nil
}
