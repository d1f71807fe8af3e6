// Package mirror knows the layout of Alpine Linux mirrors and can discover
// the latest minirootfs tarball for a release and architecture.
package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/alpack/alpack/internal/log"
	"github.com/alpack/alpack/internal/model"
)

// ReleaseURL returns the release directory URL on a mirror, e.g.
// https://dl-cdn.alpinelinux.org/alpine/latest-stable/releases/x86_64/.
func ReleaseURL(baseURL, release, arch string) string {
	return fmt.Sprintf("%s/%s/releases/%s/", strings.TrimRight(baseURL, "/"), release, arch)
}

// RepositoryURLs returns the package repository URLs for a release. The edge
// release also carries the testing repository.
func RepositoryURLs(baseURL, release string) []string {
	base := strings.TrimRight(baseURL, "/")
	repos := []string{
		fmt.Sprintf("%s/%s/main", base, release),
		fmt.Sprintf("%s/%s/community", base, release),
	}
	if release == "edge" {
		repos = append(repos, fmt.Sprintf("%s/%s/testing", base, release))
	}
	return repos
}

// ClientConfig is the configuration for the mirror client.
type ClientConfig struct {
	// HTTPClient is the HTTP client used to fetch mirror indexes.
	HTTPClient *http.Client
	// Logger for logging.
	Logger log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "mirror.Client"})
	return nil
}

// Client discovers rootfs tarballs on Alpine mirrors.
type Client struct {
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates a new mirror client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

// LatestMinirootfs fetches the release index at releaseURL and returns the
// file name of the newest minirootfs tarball for arch.
func (c *Client) LatestMinirootfs(ctx context.Context, releaseURL, arch string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releaseURL, nil)
	if err != nil {
		return "", fmt.Errorf("could not create request: %w", err)
	}

	c.logger.Debugf("Fetching release index %q", releaseURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not fetch release index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release index returned status %d", resp.StatusCode)
	}

	names, err := indexLinks(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not parse release index: %w", err)
	}

	latest := latestMinirootfsName(names, arch)
	if latest == "" {
		return "", fmt.Errorf("no minirootfs tarball for %q at %q: %w", arch, releaseURL, model.ErrNotFound)
	}

	return latest, nil
}

// indexLinks extracts the href targets of all anchors in an HTML document.
func indexLinks(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	names := []string{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					names = append(names, attr.Val)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return names, nil
}

var versionRe = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(?:[_\-]?([a-zA-Z0-9]+))?$`)

// latestMinirootfsName picks the newest minirootfs tarball name among the
// index links, comparing embedded versions numerically.
func latestMinirootfsName(names []string, arch string) string {
	re := regexp.MustCompile(`^alpine-minirootfs-([\w.\-]+)-` + regexp.QuoteMeta(arch) + `\.tar\.gz$`)

	type candidate struct {
		name    string
		version string
	}
	candidates := []candidate{}
	for _, name := range names {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		candidates = append(candidates, candidate{name: name, version: m[1]})
	}
	if len(candidates) == 0 {
		return ""
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return versionLess(candidates[i].version, candidates[j].version)
	})

	return candidates[len(candidates)-1].name
}

// versionLess compares two Alpine version strings like 3.20.3 or
// 3.21.0_rc2, falling back to lexicographic order when they do not parse.
func versionLess(a, b string) bool {
	ma := versionRe.FindStringSubmatch(a)
	mb := versionRe.FindStringSubmatch(b)
	if ma == nil || mb == nil {
		return a < b
	}

	for i := 1; i <= 3; i++ {
		na, _ := strconv.Atoi(ma[i])
		nb, _ := strconv.Atoi(mb[i])
		if na != nb {
			return na < nb
		}
	}

	// A pre-release suffix sorts before the plain release.
	if ma[4] != mb[4] {
		if ma[4] == "" {
			return false
		}
		if mb[4] == "" {
			return true
		}
		return ma[4] < mb[4]
	}

	return false
}
