// Package server exposes the core build/affected operations over HTTP,
// for CI fleets that want a long-lived "selector daemon" instead of
// paying process-startup and full-walk cost on every invocation.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/fenwicklabs/testselect/internal/affected"
	"github.com/fenwicklabs/testselect/internal/build"
	"github.com/fenwicklabs/testselect/internal/cache"
	"github.com/fenwicklabs/testselect/internal/config"
	"github.com/fenwicklabs/testselect/internal/graph"
	"github.com/fenwicklabs/testselect/internal/render"
	"github.com/fenwicklabs/testselect/internal/vcsutil"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))
}

// project tracks the live graph for one root directory.
type project struct {
	mu      sync.RWMutex
	graph   *graph.Graph
	cfg     config.Config
	builder *build.Builder
	cache   cache.GraphStore
}

// Server holds one project per root path, built lazily on first request.
// singleflight collapses concurrent build requests for the same root
// into a single walk instead of racing N full crawls.
type Server struct {
	mu          sync.Mutex
	projects    map[string]*project
	group       singleflight.Group
	sharedStore cache.GraphStore
}

// New returns a Server that persists each project's graph to its own
// local cache file.
func New() *Server {
	return &Server{projects: make(map[string]*project)}
}

// NewWithStore returns a Server whose projects all persist through store
// instead of a local cache file per root — for a CI fleet of ephemeral
// runners sharing one Postgres-backed graph cache.
func NewWithStore(store cache.GraphStore) *Server {
	return &Server{projects: make(map[string]*project), sharedStore: store}
}

func (s *Server) projectFor(ctx context.Context, root string) (*project, error) {
	canonical, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	s.mu.Lock()
	if p, ok := s.projects[canonical]; ok {
		s.mu.Unlock()
		return p, nil
	}

	cfg, err := config.Load(canonical)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	store := s.sharedStore
	if store == nil {
		store = cache.New(canonical, cfg.CacheDir, cfg.CacheFile).AsGraphStore()
	}
	p := &project{
		cfg:     cfg,
		builder: build.New(canonical, cfg, slog.Default()),
		cache:   store,
	}
	s.projects[canonical] = p
	s.mu.Unlock()

	if g, err := store.Load(ctx, canonical); err == nil && g != nil {
		p.mu.Lock()
		p.graph = g
		p.mu.Unlock()
	} else if err != nil {
		slog.Warn("failed to load cached graph", "root", canonical, "error", err)
	}
	return p, nil
}

// Router assembles the chi mux for the server's HTTP surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/build", s.handleBuild)
	r.Post("/update", s.handleUpdate)
	r.Post("/affected", s.handleAffected)
	r.Get("/why/{test}", s.handleWhy)

	return r
}

type buildRequest struct {
	Root string `json:"root"`
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Root == "" {
		writeError(w, http.StatusBadRequest, "missing required field: root")
		return
	}

	p, err := s.projectFor(r.Context(), req.Root)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	jobID := uuid.NewString()
	result, err, _ := s.group.Do(req.Root, func() (any, error) {
		g, err := p.builder.Build(r.Context())
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.graph = g
		p.mu.Unlock()
		if p.cfg.CacheEnabled {
			if err := p.cache.Save(r.Context(), req.Root, g); err != nil {
				slog.Warn("failed to save build cache", "root", req.Root, "error", err)
			}
		}
		return g, nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("build failed: %v", err))
		return
	}

	g := result.(*graph.Graph)
	writeJSON(w, http.StatusOK, map[string]any{
		"jobId":     jobID,
		"fileCount": g.FileCount(),
		"edgeCount": g.EdgeCount(),
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Root == "" {
		writeError(w, http.StatusBadRequest, "missing required field: root")
		return
	}

	p, err := s.projectFor(r.Context(), req.Root)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	p.mu.RLock()
	g := p.graph
	p.mu.RUnlock()
	if g == nil {
		writeError(w, http.StatusConflict, "no graph built for this root yet; call /build first")
		return
	}

	jobID := uuid.NewString()
	result, err, _ := s.group.Do(req.Root+":update", func() (any, error) {
		touched, err := p.builder.UpdateIncremental(r.Context(), g)
		if err != nil {
			return nil, err
		}
		if p.cfg.CacheEnabled {
			if err := p.cache.Save(r.Context(), req.Root, g); err != nil {
				slog.Warn("failed to save update cache", "root", req.Root, "error", err)
			}
		}
		return touched, nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("update failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jobId":        jobID,
		"filesTouched": result.(int),
	})
}

type affectedRequest struct {
	Root string `json:"root"`
	Base string `json:"base"`
}

func (s *Server) handleAffected(w http.ResponseWriter, r *http.Request) {
	var req affectedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Root == "" {
		writeError(w, http.StatusBadRequest, "missing required field: root")
		return
	}

	p, err := s.projectFor(r.Context(), req.Root)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	p.mu.RLock()
	g := p.graph
	p.mu.RUnlock()
	if g == nil {
		writeError(w, http.StatusConflict, "no graph built for this root yet; call /build first")
		return
	}

	base := req.Base
	if base == "" {
		base = p.cfg.DefaultBase
	}

	changes, err := vcsutil.DetectChanges(r.Context(), req.Root, base)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("detecting changes: %v", err))
		return
	}

	result := affected.New(g).FindAffected(changes)
	var buf bytes.Buffer
	_ = render.Affected(&buf, result, render.FormatJSON)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleWhy(w http.ResponseWriter, r *http.Request) {
	testName := chi.URLParam(r, "test")
	root := r.URL.Query().Get("root")
	base := r.URL.Query().Get("base")
	if root == "" {
		writeError(w, http.StatusBadRequest, "missing required query param: root")
		return
	}

	p, err := s.projectFor(r.Context(), root)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if base == "" {
		base = p.cfg.DefaultBase
	}
	p.mu.RLock()
	g := p.graph
	p.mu.RUnlock()
	if g == nil {
		writeError(w, http.StatusConflict, "no graph built for this root yet; call /build first")
		return
	}

	changes, err := vcsutil.DetectChanges(r.Context(), root, base)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("detecting changes: %v", err))
		return
	}

	path, ok := affected.New(g).FindWhy(testName, changes)
	var buf bytes.Buffer
	_ = render.Why(&buf, path, ok, render.FormatJSON)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM, then drains
// in-flight requests within a grace period. If DATABASE_URL is set, every
// project's graph is persisted to the shared Postgres table instead of a
// local cache file, so a fleet of ephemeral CI runners shares one cache.
func Run(port string) error {
	s := New()
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := cache.NewPool(ctx, dsn)
		cancel()
		if err != nil {
			return fmt.Errorf("connecting to DATABASE_URL: %w", err)
		}
		store := cache.NewPostgresStore(pool)
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		err = store.EnsureSchema(ctx)
		cancel()
		if err != nil {
			pool.Close()
			return fmt.Errorf("preparing postgres schema: %w", err)
		}
		slog.Info("using shared postgres graph cache")
		s = NewWithStore(store)
	}
	srv := &http.Server{Addr: ":" + port, Handler: s.Router()}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server started", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
