// Package setup implements the application service that installs an Alpine
// minirootfs and bootstraps it into a usable sandbox.
package setup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alpack/alpack/internal/archive"
	"github.com/alpack/alpack/internal/log"
	"github.com/alpack/alpack/internal/mirror"
	"github.com/alpack/alpack/internal/model"
	"github.com/alpack/alpack/internal/sandbox"
)

// defaultPackages are installed after extraction unless a minimal setup was
// requested.
var defaultPackages = []string{"alpine-sdk", "autoconf", "automake", "cmake", "glib-dev", "glib-static", "libtool", "go", "xz"}

// TarballLocator discovers the newest minirootfs tarball on a mirror.
type TarballLocator interface {
	LatestMinirootfs(ctx context.Context, releaseURL, arch string) (string, error)
}

// TarballFetcher downloads a tarball to a local path.
type TarballFetcher interface {
	Fetch(ctx context.Context, url, destPath string) error
}

// ServiceConfig is the configuration for the setup service.
type ServiceConfig struct {
	Locator TarballLocator
	Fetcher TarballFetcher
	Runner  sandbox.Runner
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Locator == nil {
		return fmt.Errorf("tarball locator is required")
	}
	if c.Fetcher == nil {
		return fmt.Errorf("tarball fetcher is required")
	}
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Setup"})
	return nil
}

// Service handles rootfs installation business logic.
type Service struct {
	locator TarballLocator
	fetcher TarballFetcher
	runner  sandbox.Runner
	logger  log.Logger
}

// NewService creates a new setup service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		locator: cfg.Locator,
		fetcher: cfg.Fetcher,
		runner:  cfg.Runner,
		logger:  cfg.Logger,
	}, nil
}

// SetupOptions are the options for installing a rootfs.
type SetupOptions struct {
	// RootfsDir is the target rootfs directory.
	RootfsDir string
	// CacheDir caches downloaded tarballs between installs.
	CacheDir string
	// MirrorURL is the Alpine mirror base URL.
	MirrorURL string
	// Release is the Alpine release branch (latest-stable or edge).
	Release string
	// Arch is the Alpine architecture name (x86_64, aarch64).
	Arch string
	// Reinstall replaces an already installed rootfs.
	Reinstall bool
	// NoCache uses a throwaway directory for the tarball.
	NoCache bool
	// Minimal skips installing the default package set.
	Minimal bool
}

func (o *SetupOptions) validate() error {
	if o.RootfsDir == "" {
		return fmt.Errorf("rootfs directory is required: %w", model.ErrNotValid)
	}
	if o.MirrorURL == "" {
		return fmt.Errorf("mirror URL is required: %w", model.ErrNotValid)
	}
	if o.Release == "" {
		return fmt.Errorf("release is required: %w", model.ErrNotValid)
	}
	if o.Arch == "" {
		return fmt.Errorf("architecture is required: %w", model.ErrNotValid)
	}
	if !o.NoCache && o.CacheDir == "" {
		return fmt.Errorf("cache directory is required: %w", model.ErrNotValid)
	}
	return nil
}

// Setup installs an Alpine minirootfs into the rootfs directory and
// bootstraps it.
func (s *Service) Setup(ctx context.Context, opts SetupOptions) error {
	if err := opts.validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	// 1. Refuse to clobber an installed rootfs unless reinstalling.
	if rootfsInstalled(opts.RootfsDir) && !opts.Reinstall {
		return fmt.Errorf("rootfs already installed at %q, use reinstall to replace it: %w",
			opts.RootfsDir, model.ErrAlreadyExists)
	}

	cacheDir := opts.CacheDir
	if opts.NoCache {
		tmpDir, err := os.MkdirTemp("", "alpack-setup-")
		if err != nil {
			return fmt.Errorf("could not create temporary cache: %w", err)
		}
		defer os.RemoveAll(tmpDir)
		cacheDir = tmpDir
	}

	// 2. Discover the newest minirootfs tarball for the release.
	releaseURL := mirror.ReleaseURL(opts.MirrorURL, opts.Release, opts.Arch)
	name, err := s.locator.LatestMinirootfs(ctx, releaseURL, opts.Arch)
	if err != nil {
		return fmt.Errorf("could not locate minirootfs tarball: %w", err)
	}
	s.logger.Infof("Installing %s", name)

	// 3. Download it.
	tarballPath := filepath.Join(cacheDir, name)
	if err := s.fetcher.Fetch(ctx, releaseURL+name, tarballPath); err != nil {
		return fmt.Errorf("could not download minirootfs tarball: %w", err)
	}

	// 4. Extract into a fresh rootfs directory.
	if opts.Reinstall {
		if err := os.RemoveAll(opts.RootfsDir); err != nil {
			return fmt.Errorf("could not remove previous rootfs: %w", err)
		}
	}
	if err := archive.ExtractTarGz(tarballPath, opts.RootfsDir); err != nil {
		return fmt.Errorf("could not extract minirootfs tarball: %w", err)
	}

	// 5. Point apk at the release repositories.
	if err := s.writeRepositories(opts); err != nil {
		return err
	}

	// 6. Bootstrap the rootfs through the sandbox.
	command := "apk update"
	if !opts.Minimal {
		command = fmt.Sprintf("apk update && apk add %s", strings.Join(defaultPackages, " "))
	}

	result, err := s.runner.Run(ctx, model.SandboxRequest{
		RootfsDir:        opts.RootfsDir,
		Command:          command,
		UseRoot:          true,
		IgnoreExtraBinds: true,
	})
	if err != nil {
		return fmt.Errorf("could not bootstrap rootfs: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("rootfs bootstrap exited with code %d", result.ExitCode)
	}

	s.logger.Infof("Rootfs installed at %q", opts.RootfsDir)

	return nil
}

func (s *Service) writeRepositories(opts SetupOptions) error {
	repos := mirror.RepositoryURLs(opts.MirrorURL, opts.Release)

	apkDir := filepath.Join(opts.RootfsDir, "etc", "apk")
	if err := os.MkdirAll(apkDir, 0755); err != nil {
		return fmt.Errorf("could not create apk directory: %w", err)
	}

	content := strings.Join(repos, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(apkDir, "repositories"), []byte(content), 0644); err != nil {
		return fmt.Errorf("could not write repositories file: %w", err)
	}

	return nil
}

// rootfsInstalled reports whether the directory already holds a rootfs.
func rootfsInstalled(rootfsDir string) bool {
	entries, err := os.ReadDir(rootfsDir)
	return err == nil && len(entries) > 0
}
