// file: internal/server/server_test.go
// version: 2.0.0
// guid: e5f6a7b8-c9d0-1e2f-3a4b-5c6d7e8f9a0b

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiobook-curator/audiobook-curator/internal/cache"
	"github.com/audiobook-curator/audiobook-curator/internal/config"
	"github.com/audiobook-curator/audiobook-curator/internal/events"
	"github.com/audiobook-curator/audiobook-curator/internal/library"
	"github.com/audiobook-curator/audiobook-curator/internal/matcher"
	"github.com/audiobook-curator/audiobook-curator/internal/metadata"
	"github.com/audiobook-curator/audiobook-curator/internal/models"
	"github.com/audiobook-curator/audiobook-curator/internal/scanner"
)

type staticProvider struct {
	results []models.Metadata
}

func (p *staticProvider) Name() string { return "static" }

func (p *staticProvider) Search(ctx context.Context, query string) ([]models.Metadata, error) {
	return p.results, nil
}

func newTestServer(t *testing.T, providers ...metadata.Provider) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := &config.Config{
		DataDir:               dir,
		Recursive:             true,
		MatchConcurrency:      2,
		APIRateLimitPerMinute: 10000,
		ServerAddr:            ":0",
	}

	hub := events.NewHub()
	store := cache.New(cfg.CachePath(), time.Hour)
	t.Cleanup(func() { store.Close() })

	lib := library.New(cfg.LibraryPath(), hub)
	require.NoError(t, lib.Load())

	sc := scanner.New()
	m := matcher.New(store, providers, nil)

	srv := New(cfg, lib, sc, m, store, hub)
	return srv, srv.Router()
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	_, r := newTestServer(t)
	w := doJSON(r, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestScanAndLibrary(t *testing.T) {
	_, r := newTestServer(t)

	books := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(books, "Dune.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(books, "Mort - Part 1.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(books, "Mort - Part 2.mp3"), []byte("x"), 0o644))

	w := doJSON(r, http.MethodPost, "/api/scan", map[string]interface{}{"path": books})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var scanResp struct {
		Files       int `json:"files"`
		Collections int `json:"collections"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scanResp))
	assert.Equal(t, 1, scanResp.Files)
	assert.Equal(t, 1, scanResp.Collections)

	w = doJSON(r, http.MethodGet, "/api/library", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var libResp struct {
		Files       []models.AudiobookFile       `json:"files"`
		Collections []models.AudiobookCollection `json:"collections"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &libResp))
	assert.Len(t, libResp.Files, 1)
	assert.Len(t, libResp.Collections, 1)
}

func TestScanBadRequests(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(r, http.MethodPost, "/api/scan", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/scan", map[string]interface{}{"path": "/does/not/exist"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestMatchEndpoint(t *testing.T) {
	provider := &staticProvider{results: []models.Metadata{{
		Title:         "Dune",
		Authors:       []string{"Frank Herbert"},
		Description:   "Spice.",
		PublishedDate: "1965",
		Provider:      "static",
	}}}
	srv, r := newTestServer(t, provider)

	books := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(books, "Dune.mp3"), []byte("x"), 0o644))
	require.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/api/scan", map[string]interface{}{"path": books}).Code)

	w := doJSON(r, http.MethodPost, "/api/match", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Pending int `json:"pending"`
		Matched int `json:"matched"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Pending)
	assert.Equal(t, 1, resp.Matched)

	got := srv.lib.GetFile(filepath.Join(books, "Dune.mp3"))
	require.NotNil(t, got.Metadata)
	assert.Equal(t, "Dune", got.Metadata.Title)
}

func TestApplyMetadata(t *testing.T) {
	srv, r := newTestServer(t)

	books := t.TempDir()
	path := filepath.Join(books, "Dune.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/api/scan", map[string]interface{}{"path": books}).Code)

	w := doJSON(r, http.MethodPost, "/api/metadata/apply", map[string]interface{}{
		"path":     path,
		"metadata": map[string]interface{}{"title": "Dune", "authors": []string{"Frank Herbert"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Dune", srv.lib.GetFile(path).Metadata.Title)

	// Unknown target and missing selector.
	w = doJSON(r, http.MethodPost, "/api/metadata/apply", map[string]interface{}{
		"path":     "/nope.mp3",
		"metadata": map[string]interface{}{"title": "X"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodPost, "/api/metadata/apply", map[string]interface{}{
		"metadata": map[string]interface{}{"title": "X"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	books := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(books, "Dune.mp3"), []byte("x"), 0o644))
	require.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/api/scan", map[string]interface{}{"path": books}).Code)

	w := doJSON(r, http.MethodGet, "/api/library/search?q=dune", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Dune.mp3")

	w = doJSON(r, http.MethodGet, "/api/library/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClearCache(t *testing.T) {
	srv, r := newTestServer(t)
	srv.cache.Save(cache.QueryKey("q"), &models.Metadata{Title: "X"})
	require.NoError(t, srv.cache.Flush())

	w := doJSON(r, http.MethodDelete, "/api/cache", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, srv.cache.Len())
}

func TestMetricsEndpoint(t *testing.T) {
	_, r := newTestServer(t)
	w := doJSON(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
