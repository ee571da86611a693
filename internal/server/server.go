// Package server exposes the dialogue engine over HTTP: an NDJSON
// streaming endpoint that drives the turn loop plus read-only views of
// a conversation's transcript and memory.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"colloquy/internal/config"
	"colloquy/internal/llm"
	"colloquy/internal/memory"
	"colloquy/internal/orchestrator"
	"colloquy/internal/store"
)

const shutdownGrace = 10 * time.Second

// Server wires the store, memory engine and orchestrator behind gin.
// Limits can be swapped at runtime; in-flight requests keep the limits
// they started with.
type Server struct {
	cfg    config.Config
	store  store.Store
	gen    llm.Generator
	logger *zap.Logger
	http   *http.Server

	mu     sync.RWMutex
	engine *memory.Engine
	orch   *orchestrator.Orchestrator
}

// New builds the server. gen may be nil; every generation then runs on
// the local deterministic path.
func New(cfg config.Config, st store.Store, gen llm.Generator, logger *zap.Logger) *Server {
	s := &Server{cfg: cfg, store: st, gen: gen, logger: logger}
	s.rebuild(cfg.Limits)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.POST("/dialogue", s.handleDialogue)
	api.GET("/conversations/:id/messages", s.handleMessages)
	api.GET("/conversations/:id/memory", s.handleMemory)

	s.http = &http.Server{Addr: cfg.Addr, Handler: router}
	return s
}

// ApplyLimits swaps the memory engine and orchestrator for new
// requests. Called by the config watcher on file change.
func (s *Server) ApplyLimits(limits config.Limits) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildLocked(limits)
	s.logger.Info("Applied updated limits")
}

func (s *Server) rebuild(limits config.Limits) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildLocked(limits)
}

func (s *Server) rebuildLocked(limits config.Limits) {
	s.engine = memory.NewEngine(s.store, s.gen, limits, s.logger)
	s.orch = orchestrator.New(s.store, s.engine, s.gen, limits, s.logger)
}

func (s *Server) current() (*orchestrator.Orchestrator, *memory.Engine) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orch, s.engine
}

// Run serves until ctx is canceled, then drains with a grace period.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("HTTP server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
