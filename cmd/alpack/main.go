package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/alpack/alpack/cmd/alpack/commands"
	"github.com/alpack/alpack/internal/app/ports"
	"github.com/alpack/alpack/internal/log"
	loglogrus "github.com/alpack/alpack/internal/log/logrus"
)

// Version is the application version (set via ldflags).
var Version = "dev"

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	app := kingpin.New("alpack", "Alpine Linux rootfs sandbox tool.")
	app.Version(Version)
	app.DefaultEnvars()
	rootCmd := commands.NewRootCommand(app)

	// Setup commands (registers flags).
	runCmd := commands.NewRunCommand(rootCmd, app)
	setupCmd := commands.NewSetupCommand(rootCmd, app)
	apkCmd := commands.NewApkCommand(rootCmd, app)
	buildCmd := commands.NewBuildCommand(rootCmd, app)
	configCmd := commands.NewConfigCommand(rootCmd, app)
	doctorCmd := commands.NewDoctorCommand(rootCmd, app)
	aportsCmd := commands.NewPortsCommand(rootCmd, app, ports.Aports, "Manage the Alpine Linux package tree.")
	aptreeCmd := commands.NewPortsCommand(rootCmd, app, ports.Aptree, "Manage the Adelie Linux package tree.")

	// Top level shortcuts for the common apk verbs.
	addCmd := commands.NewApkAliasCommand(rootCmd, app, "add", "Install packages (apk add).")
	installCmd := commands.NewApkAliasCommand(rootCmd, app, "install", "Install packages (apk add).")
	delCmd := commands.NewApkAliasCommand(rootCmd, app, "del", "Remove packages (apk del).")
	removeCmd := commands.NewApkAliasCommand(rootCmd, app, "remove", "Remove packages (apk del).")
	updateCmd := commands.NewApkAliasCommand(rootCmd, app, "update", "Refresh the package index and upgrade everything.")
	searchCmd := commands.NewApkAliasCommand(rootCmd, app, "search", "Search packages (apk search).")
	fixCmd := commands.NewApkAliasCommand(rootCmd, app, "fix", "Repair installed packages (apk fix).")

	cmds := map[string]commands.Command{
		runCmd.Name():     runCmd,
		setupCmd.Name():   setupCmd,
		apkCmd.Name():     apkCmd,
		buildCmd.Name():   buildCmd,
		configCmd.Name():  configCmd,
		doctorCmd.Name():  doctorCmd,
		aportsCmd.Name():  aportsCmd,
		aptreeCmd.Name():  aptreeCmd,
		addCmd.Name():     addCmd,
		installCmd.Name(): installCmd,
		delCmd.Name():     delCmd,
		removeCmd.Name():  removeCmd,
		updateCmd.Name():  updateCmd,
		searchCmd.Name():  searchCmd,
		fixCmd.Name():     fixCmd,
	}

	// Parse command.
	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	// Set standard input/output.
	rootCmd.Stdin = stdin
	rootCmd.Stdout = stdout
	rootCmd.Stderr = stderr

	// Commands that produce structured output keep the logger quiet unless
	// debugging, so logs do not mix with printer output.
	printerCommands := map[string]bool{
		"config": true,
		"doctor": true,
	}
	if printerCommands[cmdName] && !rootCmd.Debug {
		rootCmd.NoLog = true
	}

	// Set logger.
	rootCmd.Logger = getLogger(ctx, *rootCmd)

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				rootCmd.Logger.Debugf("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Execute command.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				err := cmds[cmdName].Run(ctx)
				if err != nil {
					return fmt.Errorf("%q command failed: %w", cmdName, err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

// getLogger returns the application logger.
func getLogger(ctx context.Context, config commands.RootCommand) log.Logger {
	if config.NoLog {
		return log.Noop
	}

	// If logger not disabled use logrus logger.
	logrusLog := logrus.New()
	logrusLog.Out = config.Stderr // By default logger goes to stderr (so it can split stdout prints).
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if config.Debug {
		logrusLogEntry.Logger.SetLevel(logrus.DebugLevel)
	}

	// Log format.
	switch config.LoggerType {
	case commands.LoggerTypeDefault:
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !config.NoColor,
			DisableColors: config.NoColor,
		})
	case commands.LoggerTypeJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": Version,
	})

	logger.Debugf("Debug level is enabled") // Will log only when debug enabled.

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
