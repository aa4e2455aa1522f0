package app_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/fragcache/internal/app"
	"github.com/IvanBrykalov/fragcache/internal/config"
	"github.com/IvanBrykalov/fragcache/manifest"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNew_MemoryStore(t *testing.T) {
	t.Parallel()

	cfg, err := config.FromMap(map[string]string{})
	require.NoError(t, err)
	a, err := app.New(context.Background(), cfg, quiet())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	srv := httptest.NewServer(a.Handler)
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/fragments/k", strings.NewReader("0:\"hello\"\n"))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/fragments/k")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "hello", string(body))

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "fragcache_resolutions_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNew_ManifestErrors(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("moduleMap: {}"), 0o600))

	cfg, err := config.FromMap(map[string]string{"FRAGCACHE_MANIFEST": path})
	require.NoError(t, err)
	_, err = app.New(context.Background(), cfg, quiet())
	require.ErrorIs(t, err, manifest.ErrInvalid)
}
