// Package config manages the persisted application settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/alpack/alpack/internal/log"
	"github.com/alpack/alpack/internal/model"
)

const (
	// DefaultMirror is the default Alpine Linux mirror URL.
	DefaultMirror = "https://dl-cdn.alpinelinux.org/alpine/"
	// ReleaseLatestStable is the default release branch.
	ReleaseLatestStable = "latest-stable"
	// ReleaseEdge is the rolling release branch.
	ReleaseEdge = "edge"
)

// Settings are the persisted application settings.
type Settings struct {
	// DefaultMirror is the Alpine mirror base URL.
	DefaultMirror string `yaml:"default_mirror"`
	// CacheDir caches downloaded rootfs tarballs.
	CacheDir string `yaml:"cache_dir"`
	// RootfsDir is the managed rootfs directory.
	RootfsDir string `yaml:"rootfs_dir"`
	// Backend is the configured isolation backend (proot or bwrap).
	Backend string `yaml:"backend"`
	// Release is the target Alpine release branch.
	Release string `yaml:"release"`
	// OutputDir receives fetched package sources and build artifacts. Empty
	// means the current working directory.
	OutputDir string `yaml:"output_dir"`
}

// DefaultSettings returns the default settings for a home directory.
func DefaultSettings(homeDir string) Settings {
	return Settings{
		DefaultMirror: DefaultMirror,
		CacheDir:      filepath.Join(homeDir, ".cache", "alpack"),
		RootfsDir:     filepath.Join(homeDir, ".alpack"),
		Backend:       string(model.BackendProot),
		Release:       ReleaseLatestStable,
	}
}

// RootfsPath returns the rootfs directory, honoring the ALPACK_ROOTFS
// environment override.
func (s Settings) RootfsPath() string {
	if v := os.Getenv("ALPACK_ROOTFS"); v != "" {
		return v
	}
	return s.RootfsDir
}

// CachePath returns the cache directory, honoring the ALPACK_CACHE
// environment override.
func (s Settings) CachePath() string {
	if v := os.Getenv("ALPACK_CACHE"); v != "" {
		return v
	}
	return s.CacheDir
}

// OutputPath returns the output directory, falling back to the current
// working directory when unset.
func (s Settings) OutputPath() (string, error) {
	if s.OutputDir != "" {
		return s.OutputDir, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("could not get working directory: %w", err)
	}
	return cwd, nil
}

// BackendKind validates and returns the configured backend kind.
func (s Settings) BackendKind() (model.BackendKind, error) {
	return model.ParseBackendKind(s.Backend)
}

// DefaultPath returns the default settings file path for a home directory.
func DefaultPath(homeDir string) string {
	return filepath.Join(homeDir, ".config", "alpack", "config.yaml")
}

// StoreConfig is the configuration for the settings store.
type StoreConfig struct {
	// Path is the settings file path.
	Path string
	// HomeDir is the home directory used for default settings values.
	HomeDir string
	// Logger for logging.
	Logger log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.Path == "" {
		return fmt.Errorf("settings path is required")
	}
	if c.HomeDir == "" {
		return fmt.Errorf("home directory is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "config.Store"})
	return nil
}

// Store loads and persists settings as a YAML document on disk.
type Store struct {
	path    string
	homeDir string
	logger  log.Logger
}

// NewStore creates a new settings store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Store{
		path:    cfg.Path,
		homeDir: cfg.HomeDir,
		logger:  cfg.Logger,
	}, nil
}

// Load reads the settings file, creating it with defaults when missing.
// Empty or corrupt files are replaced with defaults after a warning, so a
// broken settings file never blocks the tool.
func (s *Store) Load() Settings {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return s.create()
	}

	if len(data) == 0 {
		s.logger.Warningf("Settings file is empty, using defaults")
		return s.create()
	}

	settings := Settings{}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		s.logger.Warningf("Could not parse settings file: %v, using defaults", err)
		return s.create()
	}

	return settings
}

// Save persists the settings, creating the parent directory when missing.
func (s *Store) Save(settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("could not create settings directory: %w", err)
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("could not serialize settings: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("could not write settings file: %w", err)
	}

	return nil
}

func (s *Store) create() Settings {
	settings := DefaultSettings(s.homeDir)
	if err := s.Save(settings); err != nil {
		s.logger.Warningf("Could not write default settings file: %v", err)
	}
	return settings
}
