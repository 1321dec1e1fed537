// Package web serves the HTTP API and the WebSocket stream and upload
// endpoints.
package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jal-drishti/streamd/internal/config"
	"github.com/jal-drishti/streamd/internal/events"
	"github.com/jal-drishti/streamd/internal/health"
	"github.com/jal-drishti/streamd/internal/logger"
	"github.com/jal-drishti/streamd/internal/source"
	"github.com/jal-drishti/streamd/internal/telemetry"
)

// Server is the web server service
type Server struct {
	configSvc  *config.Service
	logger     *logger.Logger
	httpServer *http.Server
	router     *gin.Engine
	hub        *Hub
	collector  *telemetry.Collector
	checks     *health.Registry
	store      *events.Store      // optional, nil when the event log is disabled
	push       *source.PushSource // optional, nil unless the source type is push
}

// NewServer creates a new web server service
func NewServer(configSvc *config.Service, hub *Hub, collector *telemetry.Collector, checks *health.Registry, store *events.Store, push *source.PushSource, log *logger.Logger) *Server {
	// Debug mode can be enabled via GIN_MODE environment variable
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	return &Server{
		configSvc: configSvc,
		logger:    log,
		router:    router,
		hub:       hub,
		collector: collector,
		checks:    checks,
		store:     store,
		push:      push,
	}
}

// Start starts the web server
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configSvc.Get().Web
	if !cfg.Enabled {
		s.logger.Info("Web server is disabled")
		return nil
	}

	s.setupRoutes()

	// WriteTimeout stays disabled: WebSocket connections outlive any
	// sensible HTTP write deadline.
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 0,
	}

	go func() {
		s.logger.Info("Starting web server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Web server error", "address", addr, "error", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		s.logger.Info("Web server started", "address", addr)
		return nil
	}
}

// Stop stops the web server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping web server")
	s.hub.CloseAll()
	return s.httpServer.Shutdown(ctx)
}

// Name returns the service name
func (s *Server) Name() string {
	return "web-server"
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)
		api.GET("/events", s.handleListEvents)

		cfg := api.Group("/config")
		{
			cfg.GET("", s.handleGetConfig)
			cfg.PUT("", s.handleUpdateConfig)
		}
	}

	ws := s.router.Group("/ws")
	{
		ws.GET("/stream", s.handleStream)
		ws.GET("/upload", s.handleUpload)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	report := s.checks.Check(c.Request.Context())

	code := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  report.Status,
		"uptime":  report.Uptime,
		"checks":  report.Checks,
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	snap := s.collector.Collect()

	status := gin.H{
		"timestamp": snap.Timestamp,
		"uptime":    snap.UptimeSeconds,
		"system":    snap.System,
		"pipeline":  snap.Pipeline,
		"clients":   s.hub.ClientCount(),
	}
	if s.push != nil {
		injected, rejected := s.push.Stats()
		status["push_source"] = gin.H{
			"connected": s.push.Connected(),
			"injected":  injected,
			"rejected":  rejected,
		}
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleListEvents(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event log is disabled"})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	list, err := s.store.ListEvents(c.Request.Context(), c.Query("type"), limit)
	if err != nil {
		s.logger.Error("Failed to list events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}
	if list == nil {
		list = []*events.Event{}
	}

	c.JSON(http.StatusOK, gin.H{"events": list, "count": len(list)})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.configSvc.Get())
}

// configUpdateRequest is the accepted PUT /api/config body. Only the
// runtime-adjustable knobs are exposed.
type configUpdateRequest struct {
	TargetFPS *int `json:"target_fps"`
}

func (s *Server) handleUpdateConfig(c *gin.Context) {
	var req configUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.TargetFPS == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no updatable fields in request"})
		return
	}

	err := s.configSvc.Update(c.Request.Context(), func(cfg *config.Config) {
		cfg.Stream.TargetFPS = *req.TargetFPS
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info("Configuration updated via API", "target_fps", *req.TargetFPS)
	c.JSON(http.StatusOK, s.configSvc.Get())
}

func ginLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", latency,
			"client_ip", c.ClientIP(),
		)
	}
}

// corsMiddleware creates a CORS middleware for local network access
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
