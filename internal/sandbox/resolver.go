package sandbox

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/alpack/alpack/internal/download"
	"github.com/alpack/alpack/internal/log"
	"github.com/alpack/alpack/internal/model"
)

const (
	// defaultBinaryBaseURL hosts prebuilt static backend binaries, published
	// for x86_64 only.
	defaultBinaryBaseURL = "https://github.com/LinuxDicasPro/StaticHub/releases/download"
	// downloadArch is the only Go architecture static binaries are published for.
	downloadArch = "amd64"
)

// backendBinaries maps backend kinds to their executable names.
var backendBinaries = map[model.BackendKind]string{
	model.BackendProot: "proot",
	model.BackendBwrap: "bwrap",
}

// DownloadSupported reports whether prebuilt static backend binaries are
// published for the given Go architecture.
func DownloadSupported(goarch string) bool {
	return goarch == downloadArch
}

// BackendResolverConfig is the configuration for the backend resolver.
type BackendResolverConfig struct {
	// HomeDir is the user's home directory, used for the local binary cache.
	HomeDir string
	// BinaryBaseURL is the release base URL for static binaries (overridable
	// for testing).
	BinaryBaseURL string
	// Arch is the Go architecture identifier (defaults to runtime.GOARCH,
	// overridable for testing).
	Arch string
	// HTTPClient is the HTTP client used for binary downloads.
	HTTPClient *http.Client
	// Out receives download progress output.
	Out io.Writer
	// Logger for logging.
	Logger log.Logger
}

func (c *BackendResolverConfig) defaults() error {
	if c.HomeDir == "" {
		return fmt.Errorf("home directory is required")
	}
	if c.BinaryBaseURL == "" {
		c.BinaryBaseURL = defaultBinaryBaseURL
	}
	if c.Arch == "" {
		c.Arch = runtime.GOARCH
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Out == nil {
		c.Out = io.Discard
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.BackendResolver"})
	return nil
}

// BackendResolver locates the isolation backend executable: first on PATH,
// then in the per-user local binary cache, and as a last resort downloading
// a prebuilt static binary into the cache (x86_64 only).
type BackendResolver struct {
	homeDir       string
	binaryBaseURL string
	arch          string
	downloader    *download.Client
	logger        log.Logger
}

// NewBackendResolver creates a new backend resolver.
func NewBackendResolver(cfg BackendResolverConfig) (*BackendResolver, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	downloader, err := download.NewClient(download.ClientConfig{
		HTTPClient: cfg.HTTPClient,
		Out:        cfg.Out,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create download client: %w", err)
	}

	return &BackendResolver{
		homeDir:       cfg.HomeDir,
		binaryBaseURL: cfg.BinaryBaseURL,
		arch:          cfg.Arch,
		downloader:    downloader,
		logger:        cfg.Logger,
	}, nil
}

// Resolve returns the executable for the given backend kind. It may download
// the binary into the local cache as a side effect.
func (r *BackendResolver) Resolve(ctx context.Context, kind model.BackendKind) (*model.Backend, error) {
	name, ok := backendBinaries[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported backend %q: %w", kind, model.ErrNotValid)
	}

	if path, err := exec.LookPath(name); err == nil {
		return &model.Backend{Kind: kind, Path: path}, nil
	}

	localPath := filepath.Join(r.homeDir, ".local", "bin", name)
	if _, err := os.Stat(localPath); err == nil {
		return &model.Backend{Kind: kind, Path: localPath}, nil
	}

	if r.arch != downloadArch {
		return nil, fmt.Errorf("%s not found in the system and no static binary is published for %s: %w", name, r.arch, model.ErrBackendUnavailable)
	}

	url := fmt.Sprintf("%s/%s/%s", r.binaryBaseURL, name, name)
	r.logger.Infof("%s not found, downloading static binary into %s", name, localPath)
	if err := r.downloader.Fetch(ctx, url, localPath); err != nil {
		return nil, fmt.Errorf("could not download %s: %v: %w", name, err, model.ErrBackendUnavailable)
	}

	if err := os.Chmod(localPath, 0755); err != nil {
		return nil, fmt.Errorf("could not make %q executable: %w", localPath, err)
	}

	return &model.Backend{Kind: kind, Path: localPath}, nil
}
