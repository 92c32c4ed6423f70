package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"terminal-core/internal/engine"
	"terminal-core/internal/monitor"
)

// Options tune the HTTP layer.
type Options struct {
	RateLimit float64
	RateBurst int
	Timeout   time.Duration
	// Gatherer backs GET /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Server wires HTTP endpoints around the engine service.
type Server struct {
	Router  *gin.Engine
	Engine  engine.Service
	Metrics *monitor.Metrics
}

func NewServer(svc engine.Service, metrics *monitor.Metrics, opts Options) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 50
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())                                      // Panic recovery (first)
	r.Use(RequestIDMiddleware())                               // Request ID tracking
	r.Use(RequestLogger())                                     // Request logging (after ID is set)
	r.Use(RateLimitMiddleware(opts.RateLimit, opts.RateBurst)) // Rate limiting
	r.Use(CORSMiddleware())                                    // CORS (last before routes)

	s := &Server{
		Router:  r,
		Engine:  svc,
		Metrics: metrics,
	}
	s.routes(opts)
	return s
}

func (s *Server) routes(opts Options) {
	s.Router.GET("/health", s.health)
	s.Router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	s.Router.GET("/ws/sessions/:id", s.sessionStream)

	// websocket streams are long-lived, so the timeout only covers the JSON API
	api := s.Router.Group("/api")
	api.Use(TimeoutMiddleware(opts.Timeout))
	{
		api.GET("/system/status", s.getSystemStatus)
		api.GET("/metrics/summary", s.getMetricsSummary)
		api.GET("/symbols", s.getSymbols)

		// Sessions
		api.GET("/sessions", s.listSessions)
		api.POST("/sessions", s.openSession)
		api.GET("/sessions/:id", s.getSession)
		api.DELETE("/sessions/:id", s.closeSession)
		api.PATCH("/sessions/:id/fields", s.editField)
		api.POST("/sessions/:id/panels/:panel/toggle", s.togglePanel)
		api.POST("/sessions/:id/groups/:group/targets", s.addTarget)
		api.DELETE("/sessions/:id/groups/:group/targets", s.removeTarget)
		api.DELETE("/sessions/:id/groups/:group/targets/:target", s.removeTarget)
		api.POST("/sessions/:id/payload", s.assemblePayload)
		api.GET("/sessions/:id/payloads", s.listPayloads)
		api.POST("/sessions/:id/refresh", s.refreshPosition)

		// Position service push
		api.PUT("/positions/:id", s.putPosition)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HTTPServer wraps the router for graceful shutdown.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
