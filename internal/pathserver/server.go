// Package pathserver exposes the pathfinding engine over HTTP and websocket.
package pathserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/wayfinder/internal/config"
	"github.com/udisondev/wayfinder/internal/db"
	"github.com/udisondev/wayfinder/internal/pathfind"
)

// Server serves search requests against one terrain store. The engine is
// non-reentrant, so all searches are serialised over a single finder.
type Server struct {
	cfg   config.PathServer
	store *pathfind.TerrainStore
	repo  *db.TerrainRepository // nil disables /admin/reload

	mu     sync.Mutex
	finder *pathfind.Finder

	upgrader websocket.Upgrader
}

// New creates a server over the given store. repo may be nil when terrain
// reloading is not available.
func New(cfg config.PathServer, store *pathfind.TerrainStore, repo *db.TerrainRepository) *Server {
	return &Server{
		cfg:    cfg,
		store:  store,
		repo:   repo,
		finder: pathfind.NewFinder(store),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the HTTP handler tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/admin/reload", s.requireAdmin(s.handleReload))
	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("path server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// search runs one request through the shared finder.
func (s *Server) search(ctx context.Context, req *pathfind.Request) (pathfind.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finder.Search(ctx, req)
}
