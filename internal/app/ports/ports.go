// Package ports implements the application service that indexes, searches
// and fetches package build recipes from git package trees.
package ports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alpack/alpack/internal/archive"
	"github.com/alpack/alpack/internal/log"
	"github.com/alpack/alpack/internal/model"
	"github.com/alpack/alpack/internal/sandbox"
)

// RepoSpec identifies a remote package tree and the branches worth indexing.
type RepoSpec struct {
	// Name is the local repository name under /build in the rootfs.
	Name string
	// URL is the remote git repository URL.
	URL string
	// Branches filter which top level tree paths end up in the index.
	Branches []string
}

var (
	// Aports is the Alpine Linux package tree.
	Aports = RepoSpec{
		Name:     "aports",
		URL:      "https://github.com/alpinelinux/aports.git",
		Branches: []string{"main", "community", "testing"},
	}
	// Aptree is the Adelie Linux package tree.
	Aptree = RepoSpec{
		Name:     "aptree",
		URL:      "https://git.adelielinux.org/adelie/packages.git",
		Branches: []string{"bootstrap", "experimental", "legacy", "system", "user"},
	}
)

// ServiceConfig is the configuration for the ports service.
type ServiceConfig struct {
	Runner sandbox.Runner
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Ports"})
	return nil
}

// Service handles package tree business logic.
type Service struct {
	runner sandbox.Runner
	logger log.Logger
}

// NewService creates a new ports service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		runner: cfg.Runner,
		logger: cfg.Logger,
	}, nil
}

// Update regenerates the package index for a repository. The tree is cloned
// blobless and without a checkout, so only the file listing is transferred.
func (s *Service) Update(ctx context.Context, rootfsDir string, repo RepoSpec) error {
	if rootfsDir == "" {
		return fmt.Errorf("rootfs directory is required: %w", model.ErrNotValid)
	}

	buildDir := filepath.Join(rootfsDir, "build")
	if _, err := os.Stat(buildDir); err == nil {
		if err := os.RemoveAll(buildDir); err != nil {
			return fmt.Errorf("could not remove previous build directory: %w", err)
		}
	}
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return fmt.Errorf("could not create build directory: %w", err)
	}

	s.logger.Infof("Updating %s index from %s", repo.Name, repo.URL)

	filter := strings.Join(repo.Branches, "|")
	script := fmt.Sprintf(`which git > /dev/null || apk add git
cd /build
git clone --depth=1 --filter=tree:0 --no-checkout %s %s 2> /dev/null
cd %s
git fetch --depth=1 --filter=tree:0
git ls-tree -r HEAD --name-only | grep -E "(%s)" > ../%s-database`,
		repo.URL, repo.Name, repo.Name, filter, repo.Name)

	result, err := s.runner.Run(ctx, model.SandboxRequest{
		RootfsDir:        rootfsDir,
		Command:          script,
		UseRoot:          true,
		IgnoreExtraBinds: true,
	})
	if err != nil {
		return fmt.Errorf("could not update %s index: %w", repo.Name, err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%s index update exited with code %d", repo.Name, result.ExitCode)
	}

	return nil
}

// Search returns the index lines matching any of the terms.
func (s *Service) Search(rootfsDir string, repo RepoSpec, terms []string) ([]string, error) {
	content, err := s.readDatabase(rootfsDir, repo)
	if err != nil {
		return nil, err
	}

	matches := []string{}
	for _, line := range strings.Split(content, "\n") {
		if line == "" {
			continue
		}
		for _, term := range terms {
			if strings.Contains(line, term) {
				matches = append(matches, line)
				break
			}
		}
	}

	return matches, nil
}

// Fetch sparse-checkouts the package directories matching the requested
// packages inside the sandbox and copies them out to outputDir.
func (s *Service) Fetch(ctx context.Context, rootfsDir string, repo RepoSpec, packages []string, outputDir string) error {
	if outputDir == "" {
		return fmt.Errorf("output directory is required: %w", model.ErrNotValid)
	}

	content, err := s.readDatabase(rootfsDir, repo)
	if err != nil {
		return err
	}

	dirs := packageDirs(content, packages)
	if len(dirs) == 0 {
		return fmt.Errorf("no package recipes matched %v: %w", packages, model.ErrNotFound)
	}

	s.logger.Infof("Fetching %d package recipe(s) from %s", len(dirs), repo.Name)

	script := fmt.Sprintf("cd /build/%s && git sparse-checkout init --cone && git sparse-checkout set %s && git checkout",
		repo.Name, strings.Join(dirs, " "))

	result, err := s.runner.Run(ctx, model.SandboxRequest{
		RootfsDir:        rootfsDir,
		Command:          script,
		UseRoot:          true,
		IgnoreExtraBinds: true,
	})
	if err != nil {
		return fmt.Errorf("could not check out package recipes: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("recipe checkout exited with code %d", result.ExitCode)
	}

	for _, dir := range dirs {
		srcDir := filepath.Join(rootfsDir, "build", repo.Name, dir)
		if err := archive.CopyDir(srcDir, outputDir); err != nil {
			return fmt.Errorf("could not copy %q to the output directory: %w", dir, err)
		}
	}

	return nil
}

func (s *Service) readDatabase(rootfsDir string, repo RepoSpec) (string, error) {
	if rootfsDir == "" {
		return "", fmt.Errorf("rootfs directory is required: %w", model.ErrNotValid)
	}

	path := filepath.Join(rootfsDir, "build", repo.Name+"-database")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s index missing, run an update first: %w", repo.Name, model.ErrNotFound)
		}
		return "", fmt.Errorf("could not read %s index: %w", repo.Name, err)
	}

	return string(data), nil
}

// packageDirs returns the unique directories of APKBUILD index lines that
// match any of the packages, keeping index order.
func packageDirs(content string, packages []string) []string {
	seen := map[string]bool{}
	dirs := []string{}
	for _, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, "APKBUILD") {
			continue
		}

		matched := false
		for _, pkg := range packages {
			if strings.Contains(line, pkg) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		idx := strings.LastIndex(line, "/")
		if idx <= 0 {
			continue
		}
		dir := line[:idx]
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	return dirs
}
