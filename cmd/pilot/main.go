// cmd/pilot/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/EngoEngine/engo"

	"github.com/opd-ai/go-dogfight/pkg/config"
	"github.com/opd-ai/go-dogfight/pkg/control"
	"github.com/opd-ai/go-dogfight/pkg/event"
	"github.com/opd-ai/go-dogfight/pkg/logging"
	"github.com/opd-ai/go-dogfight/pkg/network"
)

func main() {
	logger := logging.NewLogger()
	ctx := context.Background()

	configPath := flag.String("config", "config.json", "Path to configuration file")
	serverAddr := flag.String("server", "", "Server address (overrides config)")
	aircraft := flag.String("aircraft", "viper", "Aircraft to fly, empty to observe")
	headless := flag.Bool("headless", false, "Run without a window, holding the -throttle setting")
	throttle := flag.Float64("throttle", 0, "Initial throttle input in [-1, 1]")
	reconnect := flag.Bool("reconnect", true, "Reconnect automatically when the connection drops")
	width := flag.Int("width", 800, "Window width")
	height := flag.Int("height", 600, "Window height")
	flag.Parse()

	simConfig := config.DefaultConfig()
	if _, err := os.Stat(*configPath); err == nil {
		if simConfig, err = config.LoadConfig(*configPath); err != nil {
			logger.Error(ctx, "Failed to load configuration", err, "config_path", *configPath)
			os.Exit(1)
		}
	}
	if err := config.ApplyEnvironmentOverrides(simConfig); err != nil {
		logger.Error(ctx, "Failed to apply environment configuration", err)
		os.Exit(1)
	}
	if *serverAddr == "" {
		*serverAddr = simConfig.NetworkConfig.ServerAddress
	}

	envConfig, err := config.LoadConfigFromEnv()
	if err != nil {
		logger.Error(ctx, "Invalid environment configuration", err)
		os.Exit(1)
	}

	bus := event.NewEventBus()
	client := network.NewPilotClient(bus, envConfig, logger)
	client.AutoReconnect = *reconnect

	bus.Subscribe(event.ClientDisconnected, func(e event.Event) {
		logger.Warn(ctx, "Disconnected from server")
	})
	bus.Subscribe(network.ClientReconnected, func(e event.Event) {
		logger.Info(ctx, "Reconnected to server")
	})
	bus.Subscribe(network.ClientReconnectFailed, func(e event.Event) {
		logger.Error(ctx, "Failed to reconnect to server", nil)
		engo.Exit()
	})
	bus.Subscribe(network.ControlInputRejected, func(e event.Event) {
		if r, ok := e.(*network.RejectionEvent); ok {
			logger.Warn(ctx, "Control input rejected", "reason", r.Reason)
		}
	})

	logger.Info(ctx, "Connecting to server", "address", *serverAddr, "aircraft", *aircraft)
	if err := client.Connect(ctx, *serverAddr, *aircraft); err != nil {
		logger.Error(ctx, "Failed to connect to server", err, "address", *serverAddr)
		os.Exit(1)
	}
	defer client.Disconnect()

	var buttons control.Buttons = control.EngoButtons{}
	if *headless {
		buttons = control.NoButtons{}
	}
	input := control.NewInputSystem(client, buttons, control.DefaultRates, simConfig.NetworkConfig.UpdateRate, logger)
	input.SetThrottle(*throttle)

	g0 := simConfig.Gravity.Len()
	hud := control.NewHUDSystem(control.NewHUD(os.Stdout, g0, !*headless), client.AircraftID(), 0.5)
	scene := control.NewPilotScene(client, input, hud, !*headless, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		engo.Exit()
	}()

	engo.Run(engo.RunOptions{
		Title:          "Go Dogfight",
		Width:          *width,
		Height:         *height,
		HeadlessMode:   *headless,
		StandardInputs: false,
		VSync:          true,
		FPSLimit:       60,
	}, scene)
}
