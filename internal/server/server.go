// file: internal/server/server.go
// version: 2.0.0
// guid: d4e5f6a7-b8c9-0d1e-2f3a-4b5c6d7e8f9a

package server

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/audiobook-curator/audiobook-curator/internal/cache"
	"github.com/audiobook-curator/audiobook-curator/internal/config"
	"github.com/audiobook-curator/audiobook-curator/internal/events"
	"github.com/audiobook-curator/audiobook-curator/internal/library"
	"github.com/audiobook-curator/audiobook-curator/internal/matcher"
	"github.com/audiobook-curator/audiobook-curator/internal/metrics"
	"github.com/audiobook-curator/audiobook-curator/internal/models"
	"github.com/audiobook-curator/audiobook-curator/internal/scanner"
	"github.com/audiobook-curator/audiobook-curator/internal/server/middleware"
)

// Server exposes the library over HTTP.
type Server struct {
	cfg     *config.Config
	lib     *library.Library
	scanner *scanner.Scanner
	matcher *matcher.Matcher
	cache   *cache.Store
	hub     *events.Hub
}

// New wires a Server from its collaborators.
func New(cfg *config.Config, lib *library.Library, sc *scanner.Scanner, m *matcher.Matcher, store *cache.Store, hub *events.Hub) *Server {
	return &Server{cfg: cfg, lib: lib, scanner: sc, matcher: m, cache: store, hub: hub}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	limiter := middleware.NewIPRateLimiter(s.cfg.APIRateLimitPerMinute, s.cfg.APIRateLimitPerMinute/10+1)
	r.Use(limiter.Middleware())
	if s.cfg.BasicAuthEnabled {
		r.Use(middleware.BasicAuth(s.cfg.BasicAuthUsername, s.cfg.BasicAuthPasswordHash))
	}

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/library", s.handleLibrary)
	r.GET("/api/library/search", s.handleSearch)
	r.GET("/api/collections", s.handleCollections)
	r.POST("/api/scan", s.handleScan)
	r.POST("/api/match", s.handleMatch)
	r.POST("/api/metadata/apply", s.handleApplyMetadata)
	r.DELETE("/api/cache", s.handleClearCache)
	r.GET("/api/events", s.handleEvents)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Run starts serving on the configured address, blocking until the listener
// fails.
func (s *Server) Run() error {
	metrics.Register()
	log.Printf("[INFO] server: listening on %s", s.cfg.ServerAddr)
	return s.Router().Run(s.cfg.ServerAddr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleLibrary(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"files":       s.lib.Files(),
		"collections": s.lib.Collections(),
		"stats":       s.lib.Stats(),
	})
}

func (s *Server) handleSearch(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "results": s.lib.Search(q)})
}

func (s *Server) handleCollections(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"collections": s.lib.Collections()})
}

type scanRequest struct {
	Path      string `json:"path" binding:"required"`
	Recursive *bool  `json:"recursive"`
}

func (s *Server) handleScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recursive := s.cfg.Recursive
	if req.Recursive != nil {
		recursive = *req.Recursive
	}

	metrics.IncScanStarted()
	s.hub.Publish(events.TypeScanStarted, map[string]interface{}{"root": req.Path})
	start := time.Now()

	result, err := s.scanner.Scan(c.Request.Context(), req.Path, recursive)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err := s.lib.ApplyScan(req.Path, result.Files, result.Collections); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.IncScanCompleted()
	metrics.ObserveScanDuration(time.Since(start))
	stats := s.lib.Stats()
	metrics.SetFiles(stats.Files)
	metrics.SetCollections(stats.Collections)
	s.hub.Publish(events.TypeScanCompleted, map[string]interface{}{
		"root":        req.Path,
		"files":       len(result.Files),
		"collections": len(result.Collections),
	})

	c.JSON(http.StatusOK, gin.H{
		"files":       len(result.Files),
		"collections": len(result.Collections),
	})
}

func (s *Server) handleMatch(c *gin.Context) {
	pending := s.lib.NeedsMetadata()
	ctx := c.Request.Context()

	matched := 0
	s.matcher.MatchAll(ctx, pending, s.cfg.MatchConcurrency, func(done, total int) {
		s.hub.Publish(events.TypeMatchProgress, map[string]interface{}{"done": done, "total": total})
	})
	for _, f := range pending {
		if f.Metadata == nil {
			continue
		}
		if err := s.lib.ApplyFileMetadata(f.Path, f.Metadata); err != nil {
			log.Printf("[WARN] server: cannot apply metadata for %s: %v", f.Path, err)
			continue
		}
		matched++
	}

	for _, coll := range s.lib.CollectionsNeedingMetadata() {
		meta, err := s.matcher.MatchCollection(ctx, coll)
		if err != nil || meta == nil {
			continue
		}
		if err := s.lib.ApplyCollectionMetadata(coll.ID, meta); err == nil {
			matched++
		}
	}

	metrics.SetCacheEntries(s.cache.Len())
	c.JSON(http.StatusOK, gin.H{"pending": len(pending), "matched": matched})
}

type applyMetadataRequest struct {
	Path         string           `json:"path"`
	CollectionID string           `json:"collection_id"`
	Metadata     *models.Metadata `json:"metadata" binding:"required"`
}

func (s *Server) handleApplyMetadata(c *gin.Context) {
	var req applyMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var err error
	switch {
	case req.Path != "":
		err = s.lib.ApplyFileMetadata(req.Path, req.Metadata)
	case req.CollectionID != "":
		err = s.lib.ApplyCollectionMetadata(req.CollectionID, req.Metadata)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "path or collection_id required"})
		return
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "applied"})
}

func (s *Server) handleClearCache(c *gin.Context) {
	if err := s.cache.Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	metrics.SetCacheEntries(0)
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// handleEvents streams library change notifications over SSE.
func (s *Server) handleEvents(c *gin.Context) {
	ch, cancel := s.hub.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
