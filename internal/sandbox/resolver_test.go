package sandbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpack/alpack/internal/model"
)

func TestBackendResolverResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("Backend on PATH should be preferred", func(t *testing.T) {
		assert := assert.New(t)

		binDir := t.TempDir()
		binPath := filepath.Join(binDir, "proot")
		require.NoError(t, os.WriteFile(binPath, []byte("#!/bin/sh\n"), 0755))
		t.Setenv("PATH", binDir)

		resolver, err := NewBackendResolver(BackendResolverConfig{HomeDir: t.TempDir()})
		require.NoError(t, err)

		backend, err := resolver.Resolve(ctx, model.BackendProot)
		assert.NoError(err)
		assert.Equal(&model.Backend{Kind: model.BackendProot, Path: binPath}, backend)

		// Unchanged host state must resolve to the same path again.
		again, err := resolver.Resolve(ctx, model.BackendProot)
		assert.NoError(err)
		assert.Equal(backend, again)
	})

	t.Run("Local binary cache should be used when PATH has no backend", func(t *testing.T) {
		assert := assert.New(t)

		t.Setenv("PATH", t.TempDir())

		home := t.TempDir()
		cached := filepath.Join(home, ".local", "bin", "bwrap")
		require.NoError(t, os.MkdirAll(filepath.Dir(cached), 0755))
		require.NoError(t, os.WriteFile(cached, []byte("#!/bin/sh\n"), 0755))

		resolver, err := NewBackendResolver(BackendResolverConfig{HomeDir: home})
		require.NoError(t, err)

		backend, err := resolver.Resolve(ctx, model.BackendBwrap)
		assert.NoError(err)
		assert.Equal(&model.Backend{Kind: model.BackendBwrap, Path: cached}, backend)
	})

	t.Run("Unsupported architecture without a binary should fail", func(t *testing.T) {
		assert := assert.New(t)

		t.Setenv("PATH", t.TempDir())

		resolver, err := NewBackendResolver(BackendResolverConfig{
			HomeDir: t.TempDir(),
			Arch:    "arm64",
		})
		require.NoError(t, err)

		_, err = resolver.Resolve(ctx, model.BackendProot)
		assert.Error(err)
		assert.ErrorIs(err, model.ErrBackendUnavailable)
	})

	t.Run("Missing binary on amd64 should be downloaded into the cache and made executable", func(t *testing.T) {
		assert := assert.New(t)

		t.Setenv("PATH", t.TempDir())

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal("/proot/proot", r.URL.Path)
			_, _ = w.Write([]byte("static-binary"))
		}))
		defer server.Close()

		home := t.TempDir()
		resolver, err := NewBackendResolver(BackendResolverConfig{
			HomeDir:       home,
			BinaryBaseURL: server.URL,
			Arch:          "amd64",
		})
		require.NoError(t, err)

		backend, err := resolver.Resolve(ctx, model.BackendProot)
		assert.NoError(err)

		expPath := filepath.Join(home, ".local", "bin", "proot")
		assert.Equal(expPath, backend.Path)

		info, err := os.Stat(expPath)
		assert.NoError(err)
		assert.NotZero(info.Mode() & 0100)
	})

	t.Run("Failed download should surface as backend unavailable", func(t *testing.T) {
		assert := assert.New(t)

		t.Setenv("PATH", t.TempDir())

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		resolver, err := NewBackendResolver(BackendResolverConfig{
			HomeDir:       t.TempDir(),
			BinaryBaseURL: server.URL,
			Arch:          "amd64",
		})
		require.NoError(t, err)

		_, err = resolver.Resolve(ctx, model.BackendProot)
		assert.Error(err)
		assert.ErrorIs(err, model.ErrBackendUnavailable)
	})

	t.Run("Static downloads are published for amd64 only", func(t *testing.T) {
		assert := assert.New(t)

		assert.True(DownloadSupported("amd64"))
		assert.False(DownloadSupported("arm64"))
		assert.False(DownloadSupported("386"))
	})

	t.Run("Unknown backend kind should fail as not valid", func(t *testing.T) {
		assert := assert.New(t)

		resolver, err := NewBackendResolver(BackendResolverConfig{HomeDir: t.TempDir()})
		require.NoError(t, err)

		_, err = resolver.Resolve(ctx, model.BackendKind("chroot"))
		assert.Error(err)
		assert.ErrorIs(err, model.ErrNotValid)
	})
}
