package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/alpack/alpack/internal/config"
	"github.com/alpack/alpack/internal/log"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	ConfigPath string
	RootfsDir  string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("config-path", "Path to the settings file.").Default(config.DefaultPath(homedir.HomeDir())).StringVar(&c.ConfigPath)
	app.Flag("rootfs", "Rootfs directory (overrides the configured one).").Short('R').StringVar(&c.RootfsDir)

	return c
}

// LoadSettings loads the persisted settings, creating them when missing.
func (c *RootCommand) LoadSettings() (config.Settings, *config.Store, error) {
	store, err := config.NewStore(config.StoreConfig{
		Path:    c.ConfigPath,
		HomeDir: homedir.HomeDir(),
		Logger:  c.Logger,
	})
	if err != nil {
		return config.Settings{}, nil, fmt.Errorf("could not create settings store: %w", err)
	}

	return store.Load(), store, nil
}

// EffectiveRootfsDir resolves the rootfs directory, preferring the global
// flag over the environment and settings.
func (c *RootCommand) EffectiveRootfsDir(settings config.Settings) string {
	if c.RootfsDir != "" {
		return c.RootfsDir
	}
	return settings.RootfsPath()
}
