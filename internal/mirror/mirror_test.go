package mirror_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alpack/alpack/internal/mirror"
	"github.com/alpack/alpack/internal/model"
)

func TestReleaseURL(t *testing.T) {
	tests := map[string]struct {
		baseURL string
		release string
		arch    string
		expURL  string
	}{
		"A base URL with a trailing slash should join cleanly.": {
			baseURL: "https://dl-cdn.alpinelinux.org/alpine/",
			release: "latest-stable",
			arch:    "x86_64",
			expURL:  "https://dl-cdn.alpinelinux.org/alpine/latest-stable/releases/x86_64/",
		},

		"A base URL without a trailing slash should join cleanly.": {
			baseURL: "https://mirror.example.org/alpine",
			release: "edge",
			arch:    "aarch64",
			expURL:  "https://mirror.example.org/alpine/edge/releases/aarch64/",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expURL, mirror.ReleaseURL(test.baseURL, test.release, test.arch))
		})
	}
}

func TestRepositoryURLs(t *testing.T) {
	tests := map[string]struct {
		release  string
		expRepos []string
	}{
		"A stable release should carry main and community.": {
			release: "v3.20",
			expRepos: []string{
				"https://dl-cdn.alpinelinux.org/alpine/v3.20/main",
				"https://dl-cdn.alpinelinux.org/alpine/v3.20/community",
			},
		},

		"The edge release should also carry testing.": {
			release: "edge",
			expRepos: []string{
				"https://dl-cdn.alpinelinux.org/alpine/edge/main",
				"https://dl-cdn.alpinelinux.org/alpine/edge/community",
				"https://dl-cdn.alpinelinux.org/alpine/edge/testing",
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repos := mirror.RepositoryURLs("https://dl-cdn.alpinelinux.org/alpine/", test.release)
			assert.Equal(t, test.expRepos, repos)
		})
	}
}

func TestLatestMinirootfs(t *testing.T) {
	index := func(names ...string) string {
		body := "<html><body><pre>"
		for _, n := range names {
			body += fmt.Sprintf("<a href=%q>%s</a>\n", n, n)
		}
		return body + "</pre></body></html>"
	}

	tests := map[string]struct {
		body    string
		status  int
		arch    string
		expName string
		expErr  bool
	}{
		"The newest tarball version should win regardless of index order.": {
			body: index(
				"alpine-minirootfs-3.20.3-x86_64.tar.gz",
				"alpine-minirootfs-3.21.0-x86_64.tar.gz",
				"alpine-minirootfs-3.9.6-x86_64.tar.gz",
			),
			status:  http.StatusOK,
			arch:    "x86_64",
			expName: "alpine-minirootfs-3.21.0-x86_64.tar.gz",
		},

		"Tarballs for other architectures and other flavors should be ignored.": {
			body: index(
				"alpine-minirootfs-3.20.3-aarch64.tar.gz",
				"alpine-standard-3.20.3-x86_64.iso",
				"alpine-minirootfs-3.20.3-x86_64.tar.gz.sha256",
				"alpine-minirootfs-3.20.1-x86_64.tar.gz",
			),
			status:  http.StatusOK,
			arch:    "x86_64",
			expName: "alpine-minirootfs-3.20.1-x86_64.tar.gz",
		},

		"A release candidate should sort before the final release.": {
			body: index(
				"alpine-minirootfs-3.21.0_rc2-x86_64.tar.gz",
				"alpine-minirootfs-3.21.0-x86_64.tar.gz",
			),
			status:  http.StatusOK,
			arch:    "x86_64",
			expName: "alpine-minirootfs-3.21.0-x86_64.tar.gz",
		},

		"An index without matching tarballs should fail.": {
			body:   index("alpine-standard-3.20.3-x86_64.iso"),
			status: http.StatusOK,
			arch:   "x86_64",
			expErr: true,
		},

		"A failing index request should fail.": {
			body:   "not found",
			status: http.StatusNotFound,
			arch:   "x86_64",
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.status)
				fmt.Fprint(w, test.body)
			}))
			defer server.Close()

			client, err := mirror.NewClient(mirror.ClientConfig{})
			assert.NoError(err)

			got, err := client.LatestMinirootfs(context.TODO(), server.URL+"/", test.arch)

			if test.expErr {
				assert.Error(err)
			} else if assert.NoError(err) {
				assert.Equal(test.expName, got)
			}
		})
	}
}

func TestLatestMinirootfsNotFoundError(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body></body></html>")
	}))
	defer server.Close()

	client, err := mirror.NewClient(mirror.ClientConfig{})
	assert.NoError(err)

	_, err = client.LatestMinirootfs(context.TODO(), server.URL+"/", "x86_64")
	assert.ErrorIs(err, model.ErrNotFound)
}
