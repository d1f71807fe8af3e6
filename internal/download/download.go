package download

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/alpack/alpack/internal/log"
)

// ClientConfig is the configuration for the download client.
type ClientConfig struct {
	// HTTPClient is the HTTP client used for downloads.
	HTTPClient *http.Client
	// Out receives progress output (defaults to discard).
	Out io.Writer
	// Logger for logging.
	Logger log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Out == nil {
		c.Out = io.Discard
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "download.Client"})
	return nil
}

// Client downloads files over HTTP with progress reporting.
type Client struct {
	httpClient *http.Client
	out        io.Writer
	logger     log.Logger
}

// NewClient creates a new download client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		httpClient: cfg.HTTPClient,
		out:        cfg.Out,
		logger:     cfg.Logger,
	}, nil
}

// Fetch downloads url into destPath. An already existing destination file is
// kept as is. The download goes through a uniquely named temporary file that
// is renamed into place at the end, so a failed or interrupted download never
// leaves a half written destination behind.
func (c *Client) Fetch(ctx context.Context, url, destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		c.logger.Infof("File %q already exists, skipping download", destPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("could not create destination directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d downloading %s", resp.StatusCode, url)
	}

	tmpPath := fmt.Sprintf("%s.%s.tmp", destPath, ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader))
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("could not create temporary file: %w", err)
	}

	c.logger.Infof("Downloading %s", url)
	pw := NewProgressWriter(f, c.out, resp.ContentLength)
	_, err = io.Copy(pw, resp.Body)
	pw.Finish()
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("could not write %q: %w", destPath, err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("could not move download into place: %w", err)
	}

	return nil
}
