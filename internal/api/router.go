// Package api exposes the admin API and fronts the capture proxy.
package api

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prasenjit/firescope/internal/apidoc"
	"github.com/prasenjit/firescope/internal/resolver"
	"github.com/prasenjit/firescope/internal/stats"
	"github.com/prasenjit/firescope/internal/storage"
)

// Options wires the router's collaborators
type Options struct {
	Store    storage.Storage
	Stats    *stats.Collector
	Pipeline Pipeline
	Resolver resolver.Resolver
	Document *apidoc.Document
	// Stream serves the listener websocket, usually the transport hub
	Stream http.Handler
	// Proxy receives every request outside the admin API
	Proxy http.Handler
}

// Router handles HTTP routing
type Router struct {
	engine  *gin.Engine
	opts    Options
	handler *Handler
}

// NewRouter creates a new router
func NewRouter(opts Options) *Router {
	r := &Router{
		engine: gin.New(),
		opts:   opts,
	}

	var listeners ListenerCounter
	if lc, ok := opts.Stream.(ListenerCounter); ok {
		listeners = lc
	}
	r.handler = NewHandler(opts.Store, opts.Stats, opts.Pipeline, listeners, opts.Resolver, opts.Document)

	r.engine.Use(gin.Recovery())
	r.engine.Use(corsMiddleware())
	r.engine.Use(gin.Logger())

	r.setupRoutes()

	return r
}

// setupRoutes configures all routes
func (r *Router) setupRoutes() {
	api := r.engine.Group("/_api")
	api.Use(validateBody(r.opts.Document))
	{
		// Records
		api.GET("/records", r.handler.ListRecords)
		api.DELETE("/records", r.handler.ClearRecords)
		api.GET("/records/:id", r.handler.GetRecord)
		api.GET("/records/:id/link", r.handler.GetRecordLink)

		// Console links
		api.POST("/link", r.handler.ResolveLink)
		api.POST("/querystring/encode", r.handler.EncodeQueryString)
		api.POST("/querystring/decode", r.handler.DecodeQueryString)

		// Ingest from external capture sources
		api.POST("/capture/start", r.handler.CaptureStart)
		api.POST("/capture/complete", r.handler.CaptureComplete)

		// Statistics
		api.GET("/stats", r.handler.GetGlobalStats)
		api.POST("/stats/reset", r.handler.ResetStats)

		api.GET("/openapi.json", r.handler.GetAPIDocument)
		api.GET("/health", r.handler.HealthCheck)
	}

	if r.opts.Stream != nil {
		r.engine.GET("/_api/stream", gin.WrapH(r.opts.Stream))
	}
	r.engine.GET("/metrics", gin.WrapH(r.opts.Stats.Handler()))

	if r.opts.Proxy != nil {
		r.engine.NoRoute(gin.WrapH(r.opts.Proxy))
	}
}

// Handler returns the http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// validateBody rejects JSON bodies that do not match the API document
func validateBody(doc *apidoc.Document) gin.HandlerFunc {
	return func(c *gin.Context) {
		if doc == nil || c.Request.Body == nil || (c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut) {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
		c.Request.Body.Close()
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if err := doc.ValidateBody(c.Request.Context(), c.Request.Method, c.FullPath(), body); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-FireScope-Tab")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
