package setup_test

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alpack/alpack/internal/app/setup"
	"github.com/alpack/alpack/internal/model"
	"github.com/alpack/alpack/internal/sandbox/sandboxmock"
)

type mockLocator struct{ mock.Mock }

func (m *mockLocator) LatestMinirootfs(ctx context.Context, releaseURL, arch string) (string, error) {
	args := m.Called(ctx, releaseURL, arch)
	return args.String(0), args.Error(1)
}

type mockFetcher struct{ mock.Mock }

func (m *mockFetcher) Fetch(ctx context.Context, url, destPath string) error {
	args := m.Called(ctx, url, destPath)
	return args.Error(0)
}

// writeTarball drops a valid minirootfs-looking tarball at destPath.
func writeTarball(t *testing.T, destPath string) {
	t.Helper()

	buf := &bytes.Buffer{}
	gz := gzip.NewWriter(buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "etc", Typeflag: tar.TypeDir, Mode: 0755}))
	content := "3.20.3\n"
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "etc/alpine-release", Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(content)),
	}))
	_, err := tw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	require.NoError(t, os.MkdirAll(filepath.Dir(destPath), 0755))
	require.NoError(t, os.WriteFile(destPath, buf.Bytes(), 0644))
}

func TestServiceSetup(t *testing.T) {
	const (
		mirrorURL  = "https://dl-cdn.alpinelinux.org/alpine/"
		releaseURL = "https://dl-cdn.alpinelinux.org/alpine/latest-stable/releases/x86_64/"
		tarName    = "alpine-minirootfs-3.20.3-x86_64.tar.gz"
	)

	opts := func(workDir string, mutate func(o *setup.SetupOptions)) setup.SetupOptions {
		o := setup.SetupOptions{
			RootfsDir: filepath.Join(workDir, "rootfs"),
			CacheDir:  filepath.Join(workDir, "cache"),
			MirrorURL: mirrorURL,
			Release:   "latest-stable",
			Arch:      "x86_64",
		}
		if mutate != nil {
			mutate(&o)
		}
		return o
	}

	tests := map[string]struct {
		options func(workDir string) setup.SetupOptions
		setup   func(t *testing.T, o setup.SetupOptions)
		mocks   func(t *testing.T, o setup.SetupOptions, ml *mockLocator, mf *mockFetcher, mr *sandboxmock.MockRunner)
		expErr  bool
		check   func(t *testing.T, o setup.SetupOptions)
	}{
		"A fresh install should download, extract, configure apk and bootstrap.": {
			options: func(workDir string) setup.SetupOptions { return opts(workDir, nil) },
			mocks: func(t *testing.T, o setup.SetupOptions, ml *mockLocator, mf *mockFetcher, mr *sandboxmock.MockRunner) {
				ml.On("LatestMinirootfs", mock.Anything, releaseURL, "x86_64").Once().Return(tarName, nil)
				tarballPath := filepath.Join(o.CacheDir, tarName)
				mf.On("Fetch", mock.Anything, releaseURL+tarName, tarballPath).Once().
					Run(func(args mock.Arguments) { writeTarball(t, tarballPath) }).Return(nil)
				mr.On("Run", mock.Anything, mock.MatchedBy(func(req model.SandboxRequest) bool {
					return req.RootfsDir == o.RootfsDir && req.UseRoot && req.IgnoreExtraBinds &&
						req.Command == "apk update && apk add alpine-sdk autoconf automake cmake glib-dev glib-static libtool go xz"
				})).Once().Return(&model.ExecutionResult{ExitCode: 0}, nil)
			},
			check: func(t *testing.T, o setup.SetupOptions) {
				data, err := os.ReadFile(filepath.Join(o.RootfsDir, "etc", "alpine-release"))
				require.NoError(t, err)
				assert.Equal(t, "3.20.3\n", string(data))

				repos, err := os.ReadFile(filepath.Join(o.RootfsDir, "etc", "apk", "repositories"))
				require.NoError(t, err)
				expRepos := "https://dl-cdn.alpinelinux.org/alpine/latest-stable/main\n" +
					"https://dl-cdn.alpinelinux.org/alpine/latest-stable/community\n"
				assert.Equal(t, expRepos, string(repos))
			},
		},

		"A minimal install should only refresh the package index.": {
			options: func(workDir string) setup.SetupOptions {
				return opts(workDir, func(o *setup.SetupOptions) { o.Minimal = true })
			},
			mocks: func(t *testing.T, o setup.SetupOptions, ml *mockLocator, mf *mockFetcher, mr *sandboxmock.MockRunner) {
				ml.On("LatestMinirootfs", mock.Anything, releaseURL, "x86_64").Once().Return(tarName, nil)
				tarballPath := filepath.Join(o.CacheDir, tarName)
				mf.On("Fetch", mock.Anything, mock.Anything, tarballPath).Once().
					Run(func(args mock.Arguments) { writeTarball(t, tarballPath) }).Return(nil)
				mr.On("Run", mock.Anything, mock.MatchedBy(func(req model.SandboxRequest) bool {
					return req.Command == "apk update"
				})).Once().Return(&model.ExecutionResult{ExitCode: 0}, nil)
			},
		},

		"An already installed rootfs should be refused without reinstall.": {
			options: func(workDir string) setup.SetupOptions { return opts(workDir, nil) },
			setup: func(t *testing.T, o setup.SetupOptions) {
				require.NoError(t, os.MkdirAll(filepath.Join(o.RootfsDir, "etc"), 0755))
			},
			mocks: func(t *testing.T, o setup.SetupOptions, ml *mockLocator, mf *mockFetcher, mr *sandboxmock.MockRunner) {},
			expErr: true,
		},

		"A reinstall should replace the installed rootfs.": {
			options: func(workDir string) setup.SetupOptions {
				return opts(workDir, func(o *setup.SetupOptions) { o.Reinstall = true })
			},
			setup: func(t *testing.T, o setup.SetupOptions) {
				require.NoError(t, os.MkdirAll(o.RootfsDir, 0755))
				require.NoError(t, os.WriteFile(filepath.Join(o.RootfsDir, "stale"), []byte("old"), 0644))
			},
			mocks: func(t *testing.T, o setup.SetupOptions, ml *mockLocator, mf *mockFetcher, mr *sandboxmock.MockRunner) {
				ml.On("LatestMinirootfs", mock.Anything, releaseURL, "x86_64").Once().Return(tarName, nil)
				tarballPath := filepath.Join(o.CacheDir, tarName)
				mf.On("Fetch", mock.Anything, mock.Anything, tarballPath).Once().
					Run(func(args mock.Arguments) { writeTarball(t, tarballPath) }).Return(nil)
				mr.On("Run", mock.Anything, mock.Anything).Once().Return(&model.ExecutionResult{ExitCode: 0}, nil)
			},
			check: func(t *testing.T, o setup.SetupOptions) {
				_, err := os.Stat(filepath.Join(o.RootfsDir, "stale"))
				assert.True(t, os.IsNotExist(err))
			},
		},

		"The edge release should also enable the testing repository.": {
			options: func(workDir string) setup.SetupOptions {
				return opts(workDir, func(o *setup.SetupOptions) { o.Release = "edge"; o.Minimal = true })
			},
			mocks: func(t *testing.T, o setup.SetupOptions, ml *mockLocator, mf *mockFetcher, mr *sandboxmock.MockRunner) {
				edgeURL := "https://dl-cdn.alpinelinux.org/alpine/edge/releases/x86_64/"
				ml.On("LatestMinirootfs", mock.Anything, edgeURL, "x86_64").Once().Return(tarName, nil)
				tarballPath := filepath.Join(o.CacheDir, tarName)
				mf.On("Fetch", mock.Anything, mock.Anything, tarballPath).Once().
					Run(func(args mock.Arguments) { writeTarball(t, tarballPath) }).Return(nil)
				mr.On("Run", mock.Anything, mock.Anything).Once().Return(&model.ExecutionResult{ExitCode: 0}, nil)
			},
			check: func(t *testing.T, o setup.SetupOptions) {
				repos, err := os.ReadFile(filepath.Join(o.RootfsDir, "etc", "apk", "repositories"))
				require.NoError(t, err)
				assert.Contains(t, string(repos), "edge/testing")
			},
		},

		"A tarball locator failure should abort the install.": {
			options: func(workDir string) setup.SetupOptions { return opts(workDir, nil) },
			mocks: func(t *testing.T, o setup.SetupOptions, ml *mockLocator, mf *mockFetcher, mr *sandboxmock.MockRunner) {
				ml.On("LatestMinirootfs", mock.Anything, mock.Anything, mock.Anything).Once().Return("", fmt.Errorf("boom"))
			},
			expErr: true,
		},

		"A failed bootstrap command should fail the install.": {
			options: func(workDir string) setup.SetupOptions { return opts(workDir, nil) },
			mocks: func(t *testing.T, o setup.SetupOptions, ml *mockLocator, mf *mockFetcher, mr *sandboxmock.MockRunner) {
				ml.On("LatestMinirootfs", mock.Anything, releaseURL, "x86_64").Once().Return(tarName, nil)
				tarballPath := filepath.Join(o.CacheDir, tarName)
				mf.On("Fetch", mock.Anything, mock.Anything, tarballPath).Once().
					Run(func(args mock.Arguments) { writeTarball(t, tarballPath) }).Return(nil)
				mr.On("Run", mock.Anything, mock.Anything).Once().Return(&model.ExecutionResult{ExitCode: 2}, nil)
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			workDir := t.TempDir()
			o := test.options(workDir)
			if test.setup != nil {
				test.setup(t, o)
			}

			ml := &mockLocator{}
			mf := &mockFetcher{}
			mr := sandboxmock.NewMockRunner(t)
			test.mocks(t, o, ml, mf, mr)

			svc, err := setup.NewService(setup.ServiceConfig{Locator: ml, Fetcher: mf, Runner: mr})
			require.NoError(err)

			err = svc.Setup(context.TODO(), o)

			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
				if test.check != nil {
					test.check(t, o)
				}
			}

			ml.AssertExpectations(t)
			mf.AssertExpectations(t)
		})
	}
}

func TestServiceSetupAlreadyExistsError(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	workDir := t.TempDir()
	rootfsDir := filepath.Join(workDir, "rootfs")
	require.NoError(os.MkdirAll(filepath.Join(rootfsDir, "etc"), 0755))

	svc, err := setup.NewService(setup.ServiceConfig{
		Locator: &mockLocator{},
		Fetcher: &mockFetcher{},
		Runner:  sandboxmock.NewMockRunner(t),
	})
	require.NoError(err)

	err = svc.Setup(context.TODO(), setup.SetupOptions{
		RootfsDir: rootfsDir,
		CacheDir:  filepath.Join(workDir, "cache"),
		MirrorURL: "https://dl-cdn.alpinelinux.org/alpine/",
		Release:   "latest-stable",
		Arch:      "x86_64",
	})
	assert.ErrorIs(err, model.ErrAlreadyExists)
}
