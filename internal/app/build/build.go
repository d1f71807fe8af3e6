// Package build implements the application service that compiles Alpine
// packages from APKBUILD recipes with abuild inside the sandbox.
package build

import (
	"bufio"
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

// buildPackages are the toolchain packages abuild needs inside the rootfs.
var buildPackages = []string{"alpine-sdk", "autoconf", "automake", "cmake", "glib-dev", "glib-static", "libtool", "go", "xz"}

// ServiceConfig is the configuration for the build service.
type ServiceConfig struct {
	Runner sandbox.Runner
	// User is the host user name, used to locate generated signing keys.
	User string
	// Arch is the Alpine architecture name of the rootfs.
	Arch   string
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Arch == "" {
		return fmt.Errorf("architecture is required")
	}
	if c.User == "" {
		c.User = "root"
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Build"})
	return nil
}

// Service handles package compilation business logic.
type Service struct {
	runner sandbox.Runner
	user   string
	arch   string
	logger log.Logger
}

// NewService creates a new build service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		runner: cfg.Runner,
		user:   cfg.User,
		arch:   cfg.Arch,
		logger: cfg.Logger,
	}, nil
}

// BuildOptions are the options for building packages.
type BuildOptions struct {
	// RootfsDir is the sandbox rootfs directory.
	RootfsDir string
	// Targets are APKBUILD files or recipe directories on the host.
	Targets []string
}

// Build compiles every target inside the sandbox and installs the resulting
// packages. Invalid targets are skipped with a warning.
func (s *Service) Build(ctx context.Context, opts BuildOptions) error {
	if opts.RootfsDir == "" {
		return fmt.Errorf("rootfs directory is required: %w", model.ErrNotValid)
	}
	if len(opts.Targets) == 0 {
		return fmt.Errorf("at least one build target is required: %w", model.ErrNotValid)
	}

	for _, target := range opts.Targets {
		if err := s.buildTarget(ctx, opts.RootfsDir, target); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) buildTarget(ctx context.Context, rootfsDir, target string) error {
	recipe, dirName, singleFile, err := resolveTarget(target)
	if err != nil {
		s.logger.Warningf("Skipping target %q: %v", target, err)
		return nil
	}

	pkgName, err := pkgNameFromRecipe(recipe)
	if err != nil {
		s.logger.Warningf("Skipping target %q: %v", target, err)
		return nil
	}
	if singleFile {
		dirName = pkgName
	}

	// Stage the recipe under /build in the rootfs.
	buildDir := filepath.Join(rootfsDir, "build")
	if singleFile {
		destDir := filepath.Join(buildDir, dirName)
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return fmt.Errorf("could not create build directory: %w", err)
		}
		if err := copyFile(recipe, filepath.Join(destDir, "APKBUILD")); err != nil {
			return fmt.Errorf("could not stage APKBUILD: %w", err)
		}
	} else {
		if err := archive.CopyDir(filepath.Dir(recipe), buildDir); err != nil {
			return fmt.Errorf("could not stage recipe directory: %w", err)
		}
	}

	if err := s.ensureSigningKeys(ctx, rootfsDir); err != nil {
		return err
	}

	s.logger.Infof("Building %s", pkgName)

	toolchain := strings.Join(buildPackages, " ")
	script := fmt.Sprintf(`type abuild > /dev/null || apk add %s
HOME=/build
cd /build/%s
abuild -r -F && find "/build/packages/build/%s" -name "%s-*.apk" -exec apk add --allow-untrusted {} \;`,
		toolchain, dirName, s.arch, pkgName)

	result, err := s.runner.Run(ctx, model.SandboxRequest{
		RootfsDir:        rootfsDir,
		Command:          script,
		UseRoot:          true,
		IgnoreExtraBinds: true,
		NoGroups:         true,
	})
	if err != nil {
		return fmt.Errorf("could not build %s: %w", pkgName, err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("build of %s exited with code %d", pkgName, result.ExitCode)
	}

	return nil
}

// ensureSigningKeys generates an abuild signing key as the regular sandbox
// user when the rootfs has none installed.
func (s *Service) ensureSigningKeys(ctx context.Context, rootfsDir string) error {
	if hasSigningKeys(filepath.Join(rootfsDir, "etc", "apk", "keys")) {
		return nil
	}

	staleConfig := filepath.Join(rootfsDir, "build", ".abuild")
	if _, err := os.Stat(staleConfig); err == nil {
		if err := os.RemoveAll(staleConfig); err != nil {
			return fmt.Errorf("could not remove stale abuild config: %w", err)
		}
	}

	s.logger.Infof("Generating abuild signing keys")

	toolchain := strings.Join(buildPackages, " ")
	script := fmt.Sprintf(`type abuild > /dev/null 2>&1 || apk add %s
HOME=/build
abuild-keygen -a -n && cp -v /build/.abuild/%s*.rsa.pub /etc/apk/keys/`,
		toolchain, s.user)

	result, err := s.runner.Run(ctx, model.SandboxRequest{
		RootfsDir: rootfsDir,
		Command:   script,
	})
	if err != nil {
		return fmt.Errorf("could not generate signing keys: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("signing key generation exited with code %d", result.ExitCode)
	}

	return nil
}

// resolveTarget locates the APKBUILD for a target, which is either a recipe
// directory or the APKBUILD file itself.
func resolveTarget(target string) (recipe, dirName string, singleFile bool, err error) {
	dirRecipe := filepath.Join(target, "APKBUILD")
	if _, err := os.Stat(dirRecipe); err == nil {
		return dirRecipe, filepath.Base(target), false, nil
	}

	if strings.HasSuffix(target, "APKBUILD") {
		if _, err := os.Stat(target); err == nil {
			return target, "", true, nil
		}
	}

	return "", "", false, fmt.Errorf("not a valid APKBUILD or recipe directory")
}

// pkgNameFromRecipe extracts the pkgname variable from an APKBUILD file.
func pkgNameFromRecipe(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("could not open APKBUILD: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "pkgname=") {
			continue
		}
		name := strings.TrimPrefix(line, "pkgname=")
		name = strings.Trim(strings.TrimSpace(name), `"'`)
		if name == "" {
			break
		}
		return name, nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("could not read APKBUILD: %w", err)
	}

	return "", fmt.Errorf("pkgname not found in APKBUILD")
}

func hasSigningKeys(keysDir string) bool {
	entries, err := os.ReadDir(keysDir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".rsa.pub") {
			return true
		}
	}
	return false
}

func copyFile(srcPath, destPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	return os.WriteFile(destPath, data, 0644)
}
