package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	config "gitlab.com/maplesense1/esp.sim_module/src/production/ESP.Config"
	logger "gitlab.com/maplesense1/esp.sim_module/src/production/ESP.Logger"
)

// StatusProvider reports the publisher's live state
type StatusProvider interface {
	IsConnected() bool
	Published() int64
}

// Server exposes liveness, readiness and Prometheus metrics over HTTP
type Server struct {
	router *gin.Engine
	srv    *http.Server
	status StatusProvider
	logger *logger.Logger
}

// NewServer builds the health router around status and gatherer
func NewServer(cfg config.ServerConfig, status StatusProvider, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router: router,
		status: status,
		logger: log.WithComponent("health"),
	}

	router.GET("/health/live", s.HealthLive)
	router.GET("/health/ready", s.HealthReady)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	s.srv = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (s *Server) HealthReady(ctx *gin.Context) {
	connected := s.status.IsConnected()
	body := gin.H{
		"status":    "ready",
		"mqtt":      connected,
		"published": s.status.Published(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if !connected {
		body["status"] = "not_ready"
		ctx.JSON(http.StatusServiceUnavailable, body)
		return
	}
	ctx.JSON(http.StatusOK, body)
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves in the background
func (s *Server) Start() {
	go func() {
		s.logger.Info("Health server starting on " + s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.ErrorWithError(err, "Health server failed")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
