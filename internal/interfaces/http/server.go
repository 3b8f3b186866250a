// Package http provides the HTTP adapter for the application layer. It is a
// thin translation layer: handlers parse requests, call services and map
// errors to status codes.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/millworks/backoffice/internal/application/service"
)

// requestIDHeader carries the per-request correlation id
const requestIDHeader = "X-Request-ID"

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config          ServerConfig
	httpServer      *http.Server
	router          *gin.Engine
	overtimeService service.OvertimeService
	purchaseService service.PurchaseService
	policyService   service.PolicyService
	registryService service.RegistryService
	logger          *zap.Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	overtimeService service.OvertimeService,
	purchaseService service.PurchaseService,
	policyService service.PolicyService,
	registryService service.RegistryService,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:          config,
		router:          gin.New(),
		overtimeService: overtimeService,
		purchaseService: purchaseService,
		policyService:   policyService,
		registryService: registryService,
		logger:          logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

// requestIDMiddleware assigns a correlation id to every request, honoring a
// caller-provided one
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// loggingMiddleware logs request details after completion
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString("request_id")),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.overtimeService, s.purchaseService, s.policyService, s.registryService, s.logger)

	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api")
	{
		// Overtime requests
		api.POST("/overtime", handlers.CreateOvertime)
		api.GET("/overtime", handlers.ListOvertime)
		api.GET("/overtime/:id", handlers.GetOvertime)
		api.GET("/overtime/:id/workflow", handlers.GetOvertimeWorkflow)
		api.POST("/overtime/:id/approve", handlers.ApproveOvertime)
		api.POST("/overtime/:id/reject", handlers.RejectOvertime)
		api.POST("/overtime/:id/cancel", handlers.CancelOvertime)

		// Purchase requests
		api.POST("/purchase-requests", handlers.CreatePurchase)
		api.GET("/purchase-requests", handlers.ListPurchases)
		api.GET("/purchase-requests/:id", handlers.GetPurchase)
		api.GET("/purchase-requests/:id/workflow", handlers.GetPurchaseWorkflow)
		api.POST("/purchase-requests/:id/submit", handlers.SubmitPurchase)
		api.POST("/purchase-requests/:id/approve", handlers.ApprovePurchase)
		api.POST("/purchase-requests/:id/reject", handlers.RejectPurchase)
		api.POST("/purchase-requests/:id/cancel", handlers.CancelPurchase)

		// Pending approvals for the calling user
		api.GET("/inbox/overtime", handlers.OvertimeInbox)
		api.GET("/inbox/purchase-requests", handlers.PurchaseInbox)

		// Registry exports
		api.GET("/registry/overtime.xlsx", handlers.ExportOvertimeRegistry)
		api.GET("/registry/purchase-requests.xlsx", handlers.ExportPurchaseRegistry)

		// Policy administration
		api.POST("/policies", handlers.CreatePolicy)
		api.GET("/policies", handlers.ListPolicies)
		api.GET("/policies/:id", handlers.GetPolicy)
	}
}

// Start starts the HTTP server and blocks until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
