package ui

import (
	"context"
	"net/http"
	"time"

	"exprview/adapters/blob"
	"exprview/app"
	"exprview/internal"
	"exprview/ui/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures a Server
type Options struct {
	Service *app.MatrixService
	// LocalDownloads, when set, is served under /downloads
	LocalDownloads  *blob.LocalStore
	DefaultPageSize int
	GinMode         string
}

// Server is the HTTP JSON transport of the matrix service
type Server struct {
	router   *gin.Engine
	service  *app.MatrixService
	local    *blob.LocalStore
	pageSize int
	http     *http.Server
	logger   *internal.Logger
}

// NewServer creates a server with all routes registered
func NewServer(opts Options) *Server {
	if opts.GinMode != "" {
		gin.SetMode(opts.GinMode)
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 50
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	s := &Server{
		router:   router,
		service:  opts.Service,
		local:    opts.LocalDownloads,
		pageSize: opts.DefaultPageSize,
		logger:   internal.DefaultLogger.WithComponent("ui"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": len(s.service.Sessions())})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	api.GET("/samples", s.handleSamples)
	api.GET("/units", s.handleUnits)

	api.GET("/sessions", s.handleListSessions)
	api.POST("/sessions", s.handleOpenSession)
	api.GET("/snapshots", s.handleListSnapshots)

	sess := api.Group("/sessions/:id", middleware.RequireSession("id"))
	sess.DELETE("", s.handleCloseSession)
	sess.POST("/save", s.handleSaveSession)
	sess.POST("/resume", s.handleResumeSession)
	sess.DELETE("/snapshot", s.handleForgetSession)

	sess.POST("/matrix", s.handleLoadMatrix)
	sess.GET("/matrix", s.handleInfo)
	sess.GET("/rows", s.handleRows)
	sess.PUT("/probes", s.handleSelectProbes)
	sess.POST("/tests", s.handleAddTest)
	sess.DELETE("/tests", s.handleRemoveTests)
	sess.PUT("/filters/:column", s.handleSetFilter)
	sess.DELETE("/filters/:column", s.handleClearFilter)
	sess.GET("/colorscale/:column", s.handleColorScale)
	sess.GET("/groups", s.handleGroups)
	sess.GET("/majors", s.handleMajors)
	sess.POST("/downloads", s.handlePrepareDownload)

	files := s.fileRouter()
	// S3 downloads are fetched from presigned URLs instead
	if s.local != nil {
		s.router.GET("/downloads/*path", gin.WrapH(files))
	}
	s.router.GET("/reports/*path", gin.WrapH(files))
}

// Handler exposes the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Listening on %s", addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
