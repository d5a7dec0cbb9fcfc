package http_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	httpadapter "github.com/couchcryptid/wave-frame-cache/internal/adapter/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const artifactBody = `{"metadata":{"schema_version":"1"},"frames":{}}`

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func newTestServer(t *testing.T, readyErr error) *httpadapter.Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.json")
	require.NoError(t, os.WriteFile(path, []byte(artifactBody), 0o644))
	return httpadapter.NewServer(":0", path, &mockReadiness{err: readyErr}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func get(srv http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(t, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(t, nil), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(t, fmt.Errorf("artifact unavailable")), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(t, nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestFramesServesArtifact(t *testing.T) {
	rec := get(newTestServer(t, nil), "/frames.json")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, artifactBody, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))
}

func TestFramesRangeRequest(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/frames.json", nil)
	req.Header.Set("Range", "bytes=0-11")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, artifactBody[:12], rec.Body.String())
}

func TestFramesReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(t, fmt.Errorf("artifact invalid")), "/frames.json")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
