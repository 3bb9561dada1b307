package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	container "gitlab.com/maplesense1/esp.sim_module/src/production/ESP.Container"
	espsimulator "gitlab.com/maplesense1/esp.sim_module/src/production/ESP.Simulator"
	"gitlab.com/maplesense1/esp.sim_module/src/production/ESP.SimulatorService/health"
)

func main() {
	os.Exit(run(os.Stdout))
}

// run wires the simulator and returns the process exit code. Failure
// messages are written to stdout.
func run(stdout io.Writer) int {
	ctr, err := container.NewSimulatorContainer()
	if err != nil {
		fmt.Fprintln(stdout, err.Error())
		return 1
	}

	logger := ctr.GetLogger()
	logger.Info("Starting ESP temperature simulator")

	cfg := ctr.GetConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub := espsimulator.New(*cfg, logger, espsimulator.WithMetrics(ctr.GetMetrics()))
	if err := pub.Connect(ctx); err != nil {
		return fail(stdout, ctr, err, "Failed to connect to MQTT broker")
	}
	ctr.AddCleanupFunc(func() error {
		pub.Close()
		return nil
	})

	if cfg.Server.Port != "" {
		srv := health.NewServer(cfg.Server, pub, ctr.GetRegistry(), logger)
		srv.Start()
		ctr.AddCleanupFunc(func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("Simulator running... press Ctrl+C to stop")

	if err := pub.Run(ctx); err != nil {
		return fail(stdout, ctr, err, "Publish loop failed")
	}

	logger.Info("Shutting down...")
	_ = ctr.Shutdown(context.Background())
	return 0
}

// fail prints the error message on stdout, logs it and releases resources
func fail(stdout io.Writer, ctr *container.SimulatorContainer, err error, msg string) int {
	fmt.Fprintln(stdout, err.Error())
	ctr.GetLogger().ErrorWithError(err, msg)
	_ = ctr.Shutdown(context.Background())
	return 1
}
