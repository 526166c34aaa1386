// Package server is the gateway's HTTP surface: API proxy routes, the page
// shell with its route guard, and SEO artifacts.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/portal-dev/portal/internal/auth"
	"github.com/portal-dev/portal/internal/backend"
	"github.com/portal-dev/portal/internal/config"
	"github.com/portal-dev/portal/internal/seo"
	"github.com/portal-dev/portal/internal/widgets"
	"github.com/portal-dev/portal/internal/workspace"
)

//go:embed templates/*.html
var templateFS embed.FS

// Dependencies are the collaborators a Server is built from
type Dependencies struct {
	Backend   *backend.Client
	Sessions  *auth.Resolver
	Workspace *workspace.Store
	SEO       *seo.Generator
}

// Server represents the HTTP server
type Server struct {
	router    *gin.Engine
	config    *config.Config
	logger    zerolog.Logger
	validator *validator.Validate
	backend   *backend.Client
	sessions  *auth.Resolver
	workspace *workspace.Store
	seo       *seo.Generator
	limiter   *clientLimiter
	pruner    *cron.Cron
	version   string
}

// New creates a new server instance with production dependencies
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	if cfg.Session.Secret == "" {
		zlog.Warn().Msg("NEXTAUTH_SECRET is not set - every session will be treated as signed out")
	}

	store, err := workspace.Open(cfg.Database.URL, cfg.Session.ImpersonationTTL)
	if err != nil {
		return nil, err
	}

	generator, err := seo.New(cfg.Site.URL)
	if err != nil {
		return nil, err
	}

	deps := Dependencies{
		Backend:   backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout),
		Sessions:  auth.NewResolver(auth.NewManager(cfg.Session.Secret, cfg.Session.MaxAge), cfg.SecureCookies()),
		Workspace: store,
		SEO:       generator,
	}

	srv, err := NewWithDependencies(cfg, zlog, version, deps)
	if err != nil {
		return nil, err
	}

	srv.pruner, err = workspace.StartPruner(store, zlog, workspace.PruneSchedule)
	if err != nil {
		return nil, err
	}

	return srv, nil
}

// NewWithDependencies creates a server around already-built collaborators
func NewWithDependencies(cfg *config.Config, zlog zerolog.Logger, version string, deps Dependencies) (*Server, error) {
	if deps.Backend == nil || deps.Sessions == nil || deps.Workspace == nil || deps.SEO == nil {
		return nil, errors.New("server: all dependencies are required")
	}

	server := &Server{
		config:    cfg,
		logger:    zlog,
		validator: validator.New(),
		backend:   deps.Backend,
		sessions:  deps.Sessions,
		workspace: deps.Workspace,
		seo:       deps.SEO,
		limiter:   newClientLimiter(cfg.Server.WaitlistRateLimit),
		version:   version,
	}

	if err := server.setupRouter(); err != nil {
		return nil, err
	}

	return server, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() error {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	tmpl, err := template.New("").Funcs(widgets.FuncMap()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse page templates: %w", err)
	}
	s.router.SetHTMLTemplate(tmpl)

	// Add middleware
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(metricsMiddleware())

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.router.Use(s.sessionMiddleware())

	// Operational endpoints
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// SEO artifacts
	s.router.GET("/robots.txt", s.robots)
	s.router.GET("/sitemap.xml", s.sitemap)

	// Pages (route guard applies to /dashboard/*, /signin, /signup)
	pages := s.router.Group("")
	pages.Use(s.routeGuardMiddleware())
	{
		for _, path := range []string{"/", "/pricing", "/waitlist", "/signin", "/signup", "/dashboard", "/dashboard/*section"} {
			pages.GET(path, s.renderPage)
		}
	}

	api := s.router.Group("/api")
	{
		// Public auth endpoints
		api.POST("/auth/signup", s.signup)
		api.POST("/auth/signin", s.signin)
		api.POST("/auth/signout", s.signout)
		api.POST("/auth/refresh", s.refresh)
		api.GET("/auth/session", s.getSession)

		api.POST("/waitlist", s.limiter.middleware(s.logger), s.joinWaitlist)
		api.GET("/seo/metadata", s.pageMetadata)

		// Session required
		authed := api.Group("")
		authed.Use(s.requireSession())
		{
			authed.GET("/onboarding/tasks", s.listOnboardingTasks)

			authed.GET("/workspace", s.getWorkspace)
			authed.PUT("/workspace/project", s.selectProject)
			authed.PUT("/workspace/impersonation", s.startImpersonation)
			authed.DELETE("/workspace/impersonation", s.clearImpersonation)
		}
	}

	return nil
}

// @Router /health [get]
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "portal",
		"version":   s.version,
	})
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM
func (s *Server) Start() error {
	addr := ":" + s.config.Server.Port

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.config.Backend.Timeout + 15*time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Str("backend", s.config.Backend.BaseURL).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		s.stopBackground()
		return fmt.Errorf("HTTP server error: %w", err)
	case <-sigChan:
	}
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	err := srv.Shutdown(shutdownCtx)
	s.stopBackground()
	if err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}

// stopBackground waits for a running prune to finish, then closes the store
func (s *Server) stopBackground() {
	if s.pruner != nil {
		<-s.pruner.Stop().Done()
	}
	if err := s.workspace.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Error closing database")
	}
}
