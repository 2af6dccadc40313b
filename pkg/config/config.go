// pkg/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/brunoga/deep"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-dogfight/pkg/flight"
	"github.com/opd-ai/go-dogfight/pkg/physics"
)

// SimConfig contains configuration for a flight simulation server
type SimConfig struct {
	TickRate      int              `json:"tickRate"` // fixed steps per second
	Gravity       mgl64.Vec3       `json:"gravity"`
	Aircraft      []AircraftConfig `json:"aircraft"`
	NetworkConfig NetworkConfig    `json:"network"`
	HTTPConfig    HTTPConfig       `json:"http"`
}

// Orientation is an euler rotation in degrees
type Orientation struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// AircraftConfig contains configuration for one spawned aircraft
type AircraftConfig struct {
	Name        string        `json:"name"`
	Mass        float64       `json:"mass"`
	Position    mgl64.Vec3    `json:"position"`
	Velocity    mgl64.Vec3    `json:"velocity"`
	Orientation Orientation   `json:"orientation"`
	Flight      flight.Config `json:"flight"`
}

// NetworkConfig contains telemetry stream configuration
type NetworkConfig struct {
	UpdateRate    int    `json:"updateRate"`
	TicksPerState int    `json:"ticksPerState"`
	MaxClients    int    `json:"maxClients"`
	ServerPort    int    `json:"serverPort"`
	ServerAddress string `json:"serverAddress"`
}

// HTTPConfig contains the REST and metrics listener configuration
type HTTPConfig struct {
	Address string `json:"address"`
}

// TickDuration returns the fixed step length in seconds
func (c *SimConfig) TickDuration() float64 {
	if c.TickRate <= 0 {
		return 0
	}
	return 1 / float64(c.TickRate)
}

// Validate checks the simulation settings and every aircraft
func (c *SimConfig) Validate() error {
	var errs []error
	if c.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tickRate must be positive, got %d", c.TickRate))
	}
	if !physics.IsFinite(c.Gravity) {
		errs = append(errs, fmt.Errorf("gravity must be finite, got %v", c.Gravity))
	}

	names := make(map[string]bool, len(c.Aircraft))
	for i := range c.Aircraft {
		a := &c.Aircraft[i]
		if names[a.Name] {
			errs = append(errs, fmt.Errorf("aircraft[%d]: duplicate name %q", i, a.Name))
		}
		names[a.Name] = true
		if err := a.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("aircraft[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// Validate checks the aircraft's body parameters and flight tuning
func (a *AircraftConfig) Validate() error {
	var errs []error
	if a.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if a.Mass <= 0 {
		errs = append(errs, fmt.Errorf("%q: mass must be positive, got %v", a.Name, a.Mass))
	}
	if !physics.IsFinite(a.Position) || !physics.IsFinite(a.Velocity) {
		errs = append(errs, fmt.Errorf("%q: position and velocity must be finite", a.Name))
	}
	if err := a.Flight.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%q: %w", a.Name, err))
	}
	return errors.Join(errs...)
}

// FlightConfig returns a validated copy of the flight tuning. The copy
// shares no curve data with this config.
func (a *AircraftConfig) FlightConfig() (flight.Config, error) {
	cfg, err := deep.Copy(a.Flight)
	if err != nil {
		return flight.Config{}, fmt.Errorf("failed to copy flight config for %q: %w", a.Name, err)
	}
	if err := cfg.Validate(); err != nil {
		return flight.Config{}, fmt.Errorf("aircraft %q: %w", a.Name, err)
	}
	return cfg, nil
}

// BodyState returns the initial rigid body state for the aircraft
func (a *AircraftConfig) BodyState() physics.BodyState {
	return physics.BodyState{
		Position:    a.Position,
		Velocity:    a.Velocity,
		Orientation: physics.EulerToQuat(a.Orientation.Pitch, a.Orientation.Yaw, a.Orientation.Roll),
	}
}

// LoadConfig loads a configuration from a file
func LoadConfig(path string) (*SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config SimConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveConfig saves a configuration to a file
func SaveConfig(config *SimConfig, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a default simulation with a jet and a trainer
func DefaultConfig() *SimConfig {
	jet := *GetAircraftPreset("jet")
	jet.Name = "viper"
	jet.Position = mgl64.Vec3{0, 1000, 0}
	jet.Velocity = mgl64.Vec3{0, 0, 150}

	trainer := *GetAircraftPreset("trainer")
	trainer.Name = "cub"
	trainer.Position = mgl64.Vec3{200, 500, 0}
	trainer.Velocity = mgl64.Vec3{0, 0, 50}

	return &SimConfig{
		TickRate: 50,
		Gravity:  mgl64.Vec3{0, -9.81, 0},
		Aircraft: []AircraftConfig{jet, trainer},
		NetworkConfig: NetworkConfig{
			UpdateRate:    20,
			TicksPerState: 3,
			MaxClients:    32,
			ServerPort:    4566,
			ServerAddress: "localhost:4566",
		},
		HTTPConfig: HTTPConfig{
			Address: "localhost:8080",
		},
	}
}
