package container

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	config "gitlab.com/maplesense1/esp.sim_module/src/production/ESP.Config"
	logger "gitlab.com/maplesense1/esp.sim_module/src/production/ESP.Logger"
	metrics "gitlab.com/maplesense1/esp.sim_module/src/production/ESP.Metrics"
)

// SimulatorContainer manages dependencies for the simulator service
type SimulatorContainer struct {
	config   *config.SimulatorConfig
	logger   *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	logFile  io.Closer

	mu           sync.Mutex
	cleanupFuncs []func() error
}

// NewSimulatorContainer loads configuration from the environment and
// builds the shared dependencies
func NewSimulatorContainer() (*SimulatorContainer, error) {
	cfg, err := config.LoadSimulatorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load simulator configuration: %w", err)
	}

	log, logFile, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	c := NewSimulatorContainerWith(cfg, log)
	c.logFile = logFile
	return c, nil
}

// NewSimulatorContainerWith builds a container around an existing
// configuration and logger
func NewSimulatorContainerWith(cfg *config.SimulatorConfig, log *logger.Logger) *SimulatorContainer {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &SimulatorContainer{
		config:   cfg,
		logger:   log,
		registry: reg,
		metrics:  metrics.New(reg),
	}
}

// GetConfig returns the simulator configuration
func (c *SimulatorContainer) GetConfig() *config.SimulatorConfig {
	return c.config
}

// GetLogger returns the logger
func (c *SimulatorContainer) GetLogger() *logger.Logger {
	return c.logger
}

// GetMetrics returns the simulator collectors
func (c *SimulatorContainer) GetMetrics() *metrics.Metrics {
	return c.metrics
}

// GetRegistry returns the registry backing /metrics
func (c *SimulatorContainer) GetRegistry() *prometheus.Registry {
	return c.registry
}

// AddCleanupFunc adds a cleanup function
func (c *SimulatorContainer) AddCleanupFunc(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// Shutdown runs cleanup functions in reverse registration order, then
// closes the log output
func (c *SimulatorContainer) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down simulator container...")

	c.mu.Lock()
	funcs := c.cleanupFuncs
	logFile := c.logFile
	c.cleanupFuncs = nil
	c.logFile = nil
	c.mu.Unlock()

	if logFile != nil {
		defer logFile.Close()
	}

	for i := len(funcs) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := funcs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}

	c.logger.Info("Simulator container shutdown complete")
	return nil
}
