package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rzzdr/options-engine/pkg/metrics"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
)

// Config for the API server
type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RateLimit      float64 // requests per second, 0 disables limiting
	RateBurst      int
	AllowedOrigins []string
}

// Server represents the API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     Config
	handlers   *Handlers
	recorder   *metrics.Recorder
	log        *logger.Logger
}

// NewServer creates a new API server
func NewServer(config Config, handlers *Handlers, recorder *metrics.Recorder) *Server {
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 10 * time.Second
	}

	s := &Server{
		router:   gin.New(),
		config:   config,
		handlers: handlers,
		recorder: recorder,
		log:      logger.GetLogger("api.server"),
	}
	s.setupRoutes()

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server and blocks until it is stopped
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Infof("Starting API server on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "api server")
	}
	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		s.log.Info("Stopping API server")
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) setupRoutes() {
	s.router.Use(RequestIDMiddleware())
	s.router.Use(ErrorMiddleware())
	s.router.Use(LoggingMiddleware())
	s.router.Use(MetricsMiddleware(s.recorder))
	s.router.Use(CORSMiddleware(s.config.AllowedOrigins))
	if s.config.RateLimit > 0 {
		s.router.Use(RateLimitMiddleware(s.config.RateLimit, s.config.RateBurst))
	}

	s.router.GET("/health", s.handlers.HealthCheckHandler)
	s.router.GET("/metrics", gin.WrapH(s.recorder.Handler()))

	v1 := s.router.Group("/api/v1")

	options := v1.Group("/options")
	options.POST("/price", s.handlers.PriceHandler)
	options.POST("/greeks", s.handlers.GreeksHandler)
	options.POST("/valuation", s.handlers.ValuationHandler)
	options.POST("/strategy", s.handlers.StrategyHandler)
	options.POST("/implied-vol", s.handlers.ImpliedVolHandler)

	v1.POST("/risk/var", s.handlers.VaRHandler)
	v1.POST("/backtest", s.handlers.BacktestHandler)
	v1.GET("/history/:symbol", s.handlers.HistoryHandler)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
}
