package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/imgsmith/imgsmith/pkg/imagegen"
	"github.com/imgsmith/imgsmith/pkg/logging"
	"github.com/imgsmith/imgsmith/pkg/session"
	"github.com/imgsmith/imgsmith/pkg/upload"
)

const (
	// SessionHeader carries the client's opaque session identifier. It is
	// a routing key only; nothing authenticates it.
	SessionHeader = "X-Session-Id"

	// FolderHeader optionally pins the upload folder for a new session.
	FolderHeader = "X-Upload-Folder"

	// RequestIDHeader echoes the per-request ID.
	RequestIDHeader = "X-Request-ID"

	defaultReadTimeout = 30 * time.Second
	// Long write timeout: generation requests wait on the model.
	defaultWriteTimeout = 300 * time.Second
	defaultIdleTimeout  = 60 * time.Second

	maxMultipartMemory = 32 << 20
)

// Server is the imgsmith HTTP API server.
type Server struct {
	registry  *session.Registry
	ingestor  *upload.Ingestor
	generator imagegen.Generator
	logger    *logging.Logger

	engine     *gin.Engine
	httpServer *http.Server
}

// Config collects the server's collaborators.
type Config struct {
	Registry    *session.Registry
	Ingestor    *upload.Ingestor
	Generator   imagegen.Generator
	Logger      *logging.Logger
	CORSOrigins []string
}

// NewServer wires routes and middleware and returns a ready server.
func NewServer(cfg Config) *Server {
	s := &Server{
		registry:  cfg.Registry,
		ingestor:  cfg.Ingestor,
		generator: cfg.Generator,
		logger:    cfg.Logger,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware())
	engine.MaxMultipartMemory = maxMultipartMemory

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	engine.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", SessionHeader, FolderHeader},
		MaxAge:       12 * time.Hour,
	}))

	engine.GET("/health", s.handleHealth)
	engine.POST("/api/upload", s.handleUpload)
	engine.GET("/api/session", s.handleFetchSession)
	engine.POST("/api/session/new-upload", s.handleRotateSession)
	engine.DELETE("/api/session", s.handleClearSession)
	engine.POST("/api/generate", s.handleGenerate)

	s.engine = engine
	return s
}

// Engine exposes the router, mainly for httptest.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start runs the HTTP server until it fails or is shut down.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting API server", "addr", addr)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// requestIDMiddleware tags each request with an ID, honoring one supplied
// by the client.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("requestID", requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// sessionID pulls the session identifier off the request, minting one
// when the client did not send any.
func sessionID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.GetHeader(SessionHeader))
	if id != "" {
		return id, true
	}
	return uuid.New().String(), false
}
