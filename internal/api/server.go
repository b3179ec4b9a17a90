package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/gochp/internal/observability"
	"github.com/vyrodovalexey/gochp/internal/routes"
)

// ginModeOnce ensures gin.SetMode is only called once to avoid race conditions
var ginModeOnce sync.Once

// Server assembles the admin API handler: token authentication, the
// route management endpoints, and method dispatch.
type Server struct {
	engine *gin.Engine
	logger observability.Logger
}

// NewServer creates the admin API server over a shared route table.
func NewServer(table *routes.Table, tokens TokenSource, logger observability.Logger) *Server {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	engine := gin.New()

	// Unknown method/path combinations must answer 405/404 rather
	// than redirect, and authentication must run first either way.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false
	engine.HandleMethodNotAllowed = true

	engine.Use(TokenAuth(tokens, logger))

	handlers := NewHandlers(table, logger)

	engine.GET("/api/routes", handlers.ListRoutes)
	engine.POST("/api/routes/*spec", handlers.SetRoute)
	engine.DELETE("/api/routes/*spec", handlers.DeleteRoute)

	engine.NoMethod(func(c *gin.Context) {
		writeError(c, &MethodNotAllowedError{Method: c.Request.Method})
	})
	engine.NoRoute(func(c *gin.Context) {
		writeError(c, &NotFoundError{Resource: c.Request.URL.Path})
	})

	return &Server{
		engine: engine,
		logger: logger,
	}
}

// Handler returns the HTTP handler for the admin listener.
func (s *Server) Handler() http.Handler {
	return s.engine
}
