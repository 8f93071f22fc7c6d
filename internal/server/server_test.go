package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"pipe-company/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDatabase struct {
	db     *sql.DB
	status string
}

func (f *fakeDatabase) DB() *sql.DB { return f.db }

func (f *fakeDatabase) Health() map[string]string {
	return map[string]string{"status": f.status}
}

func (f *fakeDatabase) Close() error { return nil }

func newTestServer(t *testing.T, dbStatus string) (*Server, string) {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	uploads := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{Port: "0", Env: "test", MaxUploadMB: 1},
		JWT:    config.JWTConfig{Secret: "test-secret", AccessExpiry: 15, RefreshExpiry: 7},
		Storage: config.StorageConfig{
			Driver:        "local",
			LocalDir:      uploads,
			PublicBaseURL: "/uploads",
		},
		Backup: config.BackupConfig{Dir: t.TempDir()},
	}

	srv, err := NewServer(context.Background(), cfg, zap.NewNop(), &fakeDatabase{db: db, status: dbStatus})
	require.NoError(t, err)
	return srv, uploads
}

func serve(srv *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, "up")

	w := serve(srv, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "disabled", resp.Cache)
	assert.Equal(t, "up", resp.Database["status"])
}

func TestHealthDatabaseDown(t *testing.T) {
	srv, _ := newTestServer(t, "down")

	w := serve(srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "up")

	serve(srv, http.MethodGet, "/health")
	w := serve(srv, http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestUploadsAreServed(t *testing.T) {
	srv, dir := newTestServer(t, "up")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "media"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "media", "elbow.png"), []byte("png"), 0o644))

	w := serve(srv, http.MethodGet, "/uploads/media/elbow.png")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png", w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = serve(srv, http.MethodGet, "/uploads/media/")
	assert.Equal(t, http.StatusNotFound, w.Code, "no directory listings")
}

func TestRoutesAreMounted(t *testing.T) {
	srv, _ := newTestServer(t, "up")

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/admin/backups", http.StatusUnauthorized},
		{http.MethodGet, "/api/admin/integrity", http.StatusUnauthorized},
		{http.MethodGet, "/api/admin/products", http.StatusUnauthorized},
		{http.MethodGet, "/api/quotes", http.StatusUnauthorized},
		{http.MethodGet, "/api/media", http.StatusUnauthorized},
		{http.MethodGet, "/api/users/profile", http.StatusUnauthorized},
		{http.MethodGet, "/api/products/not-a-uuid/price?quantity=1", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.status, serve(srv, tt.method, tt.path).Code)
		})
	}
}

func TestMountUploadsSkipsAbsoluteBaseURL(t *testing.T) {
	for _, base := range []string{"https://cdn.example.com/media", "/", ""} {
		r := chi.NewRouter()
		mountUploads(r, base, t.TempDir())
		assert.Empty(t, r.Routes(), base)
	}
}
