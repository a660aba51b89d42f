// Package http exposes the budget planner as a JSON API for the presentation
// layer, plus a websocket stream of the sync status.
package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	applog "rkas/internal/log"
	"rkas/internal/middleware/ratelimit"
	"rkas/internal/middleware/security"
	"rkas/internal/middleware/trace"
	"rkas/internal/ports"
	"rkas/internal/services"
)

// Options configures the listener and middleware.
type Options struct {
	Addr              string
	AllowedOrigins    []string
	RequestsPerMinute int
	Logger            *applog.Logger
}

// Deps are the services the handlers delegate to. Sync may be nil when no
// remote store is configured.
type Deps struct {
	Store        *services.BudgetStore
	Planner      *services.Planner
	SPJ          *services.SPJService
	Audit        *services.AuditService
	Reallocation *services.Reallocation
	Status       *services.StatusTracker
	Advisor      ports.Advisor
	Sync         *services.SyncProcessor
}

type Server struct {
	http.Server
	engine   *gin.Engine
	deps     Deps
	logger   *applog.Logger
	errlog   *applog.StructuredLogger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	trace    *trace.Middleware
	hub      *statusHub

	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer configures middleware and routes, returning a ready-to-run server.
func NewServer(opts Options, deps Deps) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	engine := gin.New()
	s := &Server{
		engine:    engine,
		deps:      deps,
		logger:    logger,
		errlog:    applog.NewStructuredLogger(logger),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		detector:  security.NewDetector(),
		trace:     trace.NewMiddleware(logger),
		hub:       newStatusHub(deps.Status, logger),
		startedAt: time.Now(),
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	engine.Use(gin.Recovery())
	engine.Use(s.trace.Handler())
	if c, ok := corsConfig(opts.AllowedOrigins); ok {
		engine.Use(cors.New(c))
	}
	engine.Use(security.Headers(security.DefaultHeadersConfig()))
	engine.Use(s.detector.Middleware())

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", s.handleMetrics)
	engine.GET("/ws/status", s.hub.handle)

	api := engine.Group("/api")
	api.Use(s.limiter.Middleware(s.detector.ExtractClientIP))
	{
		api.GET("/status", s.handleStatus)
		api.GET("/state", s.handleState)
		api.POST("/reload", s.handleReload)

		api.GET("/items", s.handleListItems)
		api.POST("/items", s.handleCreateItems)
		api.PUT("/items/:id", s.handleUpdateItem)
		api.DELETE("/items/:id", s.handleDeleteItem)

		api.GET("/settings", s.handleGetSettings)
		api.PUT("/settings", s.handleSaveSettings)
		api.GET("/summary", s.handleSummary)
		api.GET("/accounts", s.handleAccounts)
		api.GET("/export/items.csv", s.handleExportItems)

		api.POST("/audit", s.handleAudit)
		api.POST("/items/:id/spj", s.handleChecklist)
		api.GET("/items/:id/spj", s.handleRecommendation)
		api.PATCH("/items/:id/spj/:evidenceId", s.handleToggleEvidence)

		api.POST("/items/:id/reallocate", s.handleProposeReallocation)
		api.GET("/reallocation", s.handleReallocation)
		api.DELETE("/reallocation", s.handleAbandonReallocation)
		api.POST("/reallocation/submit", s.handleSubmitReallocation)
	}

	return s
}

// corsConfig builds the cors settings; "*" allows any origin without
// credentials. No origins means no CORS middleware at all.
func corsConfig(origins []string) (cors.Config, bool) {
	var allowed []string
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}
	if len(allowed) == 0 {
		return cors.Config{}, false
	}

	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", trace.HeaderRequestID},
		ExposeHeaders: []string{"Content-Length", trace.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range allowed {
		if o == "*" {
			c.AllowAllOrigins = true
			return c, true
		}
	}
	c.AllowOrigins = allowed
	c.AllowCredentials = true
	return c, true
}

// Router exposes the gin engine for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.engine
}

// ListenAndServe runs until Shutdown; a clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.InfoContext(context.Background(), "HTTP server listening", "addr", s.Addr)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener, closes websocket sessions and releases the
// rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		if err := s.hub.close(); err != nil {
			s.logger.WarnContext(ctx, "Failed to close status websocket hub", "error", err)
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
