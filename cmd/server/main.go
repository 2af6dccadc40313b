// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/go-dogfight/pkg/api"
	"github.com/opd-ai/go-dogfight/pkg/config"
	"github.com/opd-ai/go-dogfight/pkg/engine"
	"github.com/opd-ai/go-dogfight/pkg/health"
	"github.com/opd-ai/go-dogfight/pkg/logging"
	"github.com/opd-ai/go-dogfight/pkg/network"
	"github.com/opd-ai/go-dogfight/pkg/resource"
	"github.com/opd-ai/go-dogfight/pkg/telemetry"
)

func main() {
	logger := logging.NewLogger()
	ctx := context.Background()

	configPath := flag.String("config", "config.json", "Path to configuration file")
	createDefault := flag.Bool("default", false, "Create default configuration file")
	flag.Parse()

	if *createDefault {
		if err := config.SaveConfig(config.DefaultConfig(), *configPath); err != nil {
			logger.Error(ctx, "Failed to create default configuration", err, "config_path", *configPath)
			os.Exit(1)
		}
		logger.Info(ctx, "Created default configuration file", "config_path", *configPath)
		return
	}

	simConfig, err := loadConfig(*configPath, logger)
	if err != nil {
		logger.Error(ctx, "Failed to load configuration", err, "config_path", *configPath)
		os.Exit(1)
	}

	envConfig, err := config.LoadConfigFromEnv()
	if err != nil {
		logger.Error(ctx, "Invalid environment configuration", err)
		os.Exit(1)
	}

	sim, err := engine.NewSimulation(simConfig, logger)
	if err != nil {
		logger.Error(ctx, "Failed to create simulation", err)
		os.Exit(1)
	}

	exporter, err := telemetry.NewExporter(nil, sim)
	if err != nil {
		logger.Error(ctx, "Failed to register metrics", err)
		os.Exit(1)
	}
	exporter.Attach(sim.EventBus)
	defer exporter.Detach()

	server := network.NewServer(sim, envConfig, logger)
	manager := resource.NewManager(envConfig, logger)

	healthChecker := health.NewHealthChecker()
	healthChecker.AddCheck(health.NewSimulationHealthCheck(sim.IsRunning, sim.Tick, 5*time.Second))
	healthChecker.AddCheck(health.NewNetworkHealthCheck(server.ListenerAddress))
	healthChecker.AddCheck(health.NewMemoryHealthCheck(envConfig.MaxMemoryMB, manager.MemoryUsageMB))
	healthChecker.AddCheck(resource.NewHealthCheck(manager))

	httpAPI := api.NewServer(sim, exporter.Handler(), healthChecker, logger)
	httpAPI.ReadTimeout = envConfig.ReadTimeout
	httpAPI.WriteTimeout = envConfig.WriteTimeout

	if err := server.Start(simConfig.NetworkConfig.ServerAddress); err != nil {
		logger.Error(ctx, "Failed to start telemetry server", err, "address", simConfig.NetworkConfig.ServerAddress)
		os.Exit(1)
	}
	defer server.Stop()

	if err := manager.Start(); err != nil {
		logger.Error(ctx, "Failed to start resource manager", err)
		os.Exit(1)
	}

	workers := map[string]func(context.Context) error{
		"simulation": sim.Run,
		"http": func(ctx context.Context) error {
			return httpAPI.ListenAndServe(ctx, simConfig.HTTPConfig.Address)
		},
	}
	for name, run := range workers {
		if err := manager.Go(name, run); err != nil {
			logger.Error(ctx, "Failed to start worker", err, "worker", name)
			os.Exit(1)
		}
	}

	logger.Info(ctx, "Server running",
		"telemetry_address", simConfig.NetworkConfig.ServerAddress,
		"http_address", simConfig.HTTPConfig.Address,
		"tick_rate", simConfig.TickRate,
		"aircraft", sim.AircraftCount(),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigChan:
		logger.Info(ctx, "Shutting down server", "signal", sig.String())
	case err := <-manager.Failures():
		logger.Error(ctx, "Shutting down after worker failure", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), envConfig.ShutdownTimeout)
	defer cancel()

	server.Stop()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Shutdown incomplete", err)
		exitCode = 1
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// loadConfig reads the configuration file, falling back to the defaults
// when it does not exist, and applies DOGFIGHT_* environment overrides
func loadConfig(path string, logger *logging.Logger) (*config.SimConfig, error) {
	var simConfig *config.SimConfig

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info(context.Background(), "Configuration file not found, using default configuration", "config_path", path)
		simConfig = config.DefaultConfig()
	} else {
		simConfig, err = config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnvironmentOverrides(simConfig); err != nil {
		return nil, err
	}
	return simConfig, simConfig.Validate()
}
