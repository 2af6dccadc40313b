// pkg/engine/simulation.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/EngoEngine/ecs"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-dogfight/pkg/config"
	"github.com/opd-ai/go-dogfight/pkg/entity"
	"github.com/opd-ai/go-dogfight/pkg/event"
	"github.com/opd-ai/go-dogfight/pkg/logging"
	"github.com/opd-ai/go-dogfight/pkg/physics"
	"github.com/opd-ai/go-dogfight/pkg/telemetry"
)

var (
	// ErrAircraftNotFound is returned for operations on an unknown aircraft id
	ErrAircraftNotFound = errors.New("aircraft not found")
	// ErrDuplicateAircraft is returned when an aircraft name is already in use
	ErrDuplicateAircraft = errors.New("aircraft name already in use")
)

// Simulation owns every aircraft and advances them on a fixed step. It is
// the only writer of flight state; readers take EntityLock for reading.
type Simulation struct {
	Config      *config.SimConfig
	Aircraft    map[entity.ID]*entity.Aircraft
	EntityLock  sync.RWMutex
	TimeStep    float64 // seconds per tick
	CurrentTick uint64
	SimTime     float64 // seconds
	EventBus    *event.Bus
	Logger      *logging.Logger
	StartTime   time.Time

	running     bool
	world       *ecs.World
	flight      *FlightSystem
	integration *IntegrationSystem

	// events raised while the write lock is held, published after release
	pending []event.Event
	faults  int
}

// NewSimulation creates a simulation and spawns every configured aircraft
func NewSimulation(cfg *config.SimConfig, logger *logging.Logger) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}
	if logger == nil {
		logger = logging.NewLogger()
	}

	sim := &Simulation{
		Config:   cfg,
		Aircraft: make(map[entity.ID]*entity.Aircraft),
		TimeStep: cfg.TickDuration(),
		EventBus: event.NewEventBus(),
		Logger:   logger.With("component", "engine"),
		world:    &ecs.World{},
	}
	sim.flight = NewFlightSystem(sim.TimeStep, sim.recordFault)
	sim.integration = NewIntegrationSystem(sim.TimeStep)
	sim.world.AddSystem(sim.flight)
	sim.world.AddSystem(sim.integration)

	for _, a := range cfg.Aircraft {
		if _, err := sim.AddAircraft(a); err != nil {
			return nil, err
		}
	}

	return sim, nil
}

// Start marks the simulation as running
func (s *Simulation) Start() {
	s.EntityLock.Lock()
	s.running = true
	s.StartTime = time.Now()
	s.EntityLock.Unlock()

	s.Logger.Info(context.Background(), "simulation started", "tick_rate", s.Config.TickRate, "aircraft", s.AircraftCount())
	s.EventBus.Publish(&event.BaseEvent{EventType: event.SimulationStarted, Source: s})
}

// Stop marks the simulation as stopped
func (s *Simulation) Stop() {
	s.EntityLock.Lock()
	s.running = false
	s.EntityLock.Unlock()

	s.Logger.Info(context.Background(), "simulation stopped", "tick", s.Tick())
	s.EventBus.Publish(&event.BaseEvent{EventType: event.SimulationStopped, Source: s})
}

// IsRunning reports whether the tick loop is active
func (s *Simulation) IsRunning() bool {
	s.EntityLock.RLock()
	defer s.EntityLock.RUnlock()
	return s.running
}

// Run steps the simulation at the configured tick rate until ctx is done
func (s *Simulation) Run(ctx context.Context) error {
	s.Start()
	defer s.Stop()

	ticker := time.NewTicker(time.Duration(s.TimeStep * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step advances every aircraft by one fixed tick. All flight models
// submit forces before any body integrates.
func (s *Simulation) Step() {
	s.publish(s.advance())
}

// advance updates the world under the write lock and returns the events
// raised during the tick.
func (s *Simulation) advance() []event.Event {
	s.EntityLock.Lock()
	defer s.EntityLock.Unlock()

	s.faults = 0
	s.world.Update(float32(s.TimeStep))
	s.CurrentTick++
	s.SimTime += s.TimeStep
	s.pending = append(s.pending, event.NewTickEvent(s, s.CurrentTick, s.SimTime, len(s.Aircraft), s.faults))
	return s.takePending()
}

// recordFault is called by the flight system with the write lock held
func (s *Simulation) recordFault(a *entity.Aircraft, err error) {
	s.faults++
	tick := s.CurrentTick + 1
	s.Logger.WithAircraft(uint64(a.GetID()), a.Name).Error(context.Background(), "flight tick fault", err, logging.KeyTick, tick)
	s.pending = append(s.pending, event.NewFaultEvent(s, uint64(a.GetID()), tick, err))
}

func (s *Simulation) takePending() []event.Event {
	pending := s.pending
	s.pending = nil
	return pending
}

func (s *Simulation) publish(events []event.Event) {
	for _, e := range events {
		s.EventBus.Publish(e)
	}
}

// AddAircraft spawns an aircraft from its configuration
func (s *Simulation) AddAircraft(cfg config.AircraftConfig) (entity.ID, error) {
	if err := cfg.Validate(); err != nil {
		return 0, fmt.Errorf("invalid aircraft config: %w", err)
	}
	flightCfg, err := cfg.FlightConfig()
	if err != nil {
		return 0, err
	}
	body, err := physics.NewRigidBody(cfg.Mass, s.Config.Gravity, cfg.BodyState())
	if err != nil {
		return 0, fmt.Errorf("aircraft %q: %w", cfg.Name, err)
	}
	aircraft, err := entity.NewAircraft(cfg.Name, body, flightCfg)
	if err != nil {
		return 0, err
	}

	s.EntityLock.Lock()
	for _, existing := range s.Aircraft {
		if existing.Name == cfg.Name {
			s.EntityLock.Unlock()
			return 0, fmt.Errorf("%w: %q", ErrDuplicateAircraft, cfg.Name)
		}
	}
	id := aircraft.GetID()
	s.Aircraft[id] = aircraft
	s.flight.Add(aircraft)
	s.integration.Add(aircraft)
	s.EntityLock.Unlock()

	s.Logger.Info(context.Background(), "aircraft spawned", "aircraft_id", uint64(id), "aircraft", cfg.Name)
	s.EventBus.Publish(event.NewAircraftEvent(event.AircraftSpawned, s, uint64(id), cfg.Name))
	return id, nil
}

// RemoveAircraft removes an aircraft from the simulation
func (s *Simulation) RemoveAircraft(id entity.ID) error {
	s.EntityLock.Lock()
	aircraft, ok := s.Aircraft[id]
	if !ok {
		s.EntityLock.Unlock()
		return fmt.Errorf("%w: %d", ErrAircraftNotFound, id)
	}
	aircraft.Active = false
	delete(s.Aircraft, id)
	s.world.RemoveEntity(aircraft.BasicEntity)
	s.EntityLock.Unlock()

	s.Logger.Info(context.Background(), "aircraft removed", "aircraft_id", uint64(id), "aircraft", aircraft.Name)
	s.EventBus.Publish(event.NewAircraftEvent(event.AircraftRemoved, s, uint64(id), aircraft.Name))
	return nil
}

// SetThrottleInput commands the throttle of an aircraft. Input is clamped
// to [-1, 1] by the flight model.
func (s *Simulation) SetThrottleInput(id entity.ID, input float64) error {
	s.EntityLock.Lock()
	aircraft, ok := s.Aircraft[id]
	if !ok {
		s.EntityLock.Unlock()
		return fmt.Errorf("%w: %d", ErrAircraftNotFound, id)
	}
	aircraft.SetThrottleInput(input)
	applied := aircraft.Flight.ThrottleInput()
	s.EntityLock.Unlock()

	e := event.NewAircraftEvent(event.ThrottleChanged, s, uint64(id), aircraft.Name)
	e.Value = applied
	s.EventBus.Publish(e)
	return nil
}

// SetAngularVelocity sets the steering rate of an aircraft in world frame rad/s
func (s *Simulation) SetAngularVelocity(id entity.ID, w mgl64.Vec3) error {
	if !physics.IsFinite(w) {
		return fmt.Errorf("angular velocity must be finite, got %v", w)
	}

	s.EntityLock.Lock()
	defer s.EntityLock.Unlock()

	aircraft, ok := s.Aircraft[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrAircraftNotFound, id)
	}
	aircraft.SetAngularVelocity(w)
	return nil
}

// FindAircraft returns the id of the aircraft with the given name
func (s *Simulation) FindAircraft(name string) (entity.ID, bool) {
	s.EntityLock.RLock()
	defer s.EntityLock.RUnlock()

	for id, a := range s.Aircraft {
		if a.Name == name {
			return id, true
		}
	}
	return 0, false
}

// AircraftCount returns the number of simulated aircraft
func (s *Simulation) AircraftCount() int {
	s.EntityLock.RLock()
	defer s.EntityLock.RUnlock()
	return len(s.Aircraft)
}

// Tick returns the number of completed ticks
func (s *Simulation) Tick() uint64 {
	s.EntityLock.RLock()
	defer s.EntityLock.RUnlock()
	return s.CurrentTick
}

// SimState is a snapshot of the whole simulation
type SimState struct {
	Tick     uint64               `json:"tick"`
	SimTime  float64              `json:"simTime"`
	Running  bool                 `json:"running"`
	Aircraft []telemetry.Snapshot `json:"aircraft"`
}

// GetSimState returns a snapshot of the current simulation state
func (s *Simulation) GetSimState() *SimState {
	s.EntityLock.RLock()
	defer s.EntityLock.RUnlock()

	return &SimState{
		Tick:     s.CurrentTick,
		SimTime:  s.SimTime,
		Running:  s.running,
		Aircraft: s.snapshotsLocked(),
	}
}

// Snapshots returns the telemetry of every aircraft ordered by id
func (s *Simulation) Snapshots() []telemetry.Snapshot {
	s.EntityLock.RLock()
	defer s.EntityLock.RUnlock()
	return s.snapshotsLocked()
}

// GetAircraftState returns the telemetry of one aircraft
func (s *Simulation) GetAircraftState(id entity.ID) (telemetry.Snapshot, error) {
	s.EntityLock.RLock()
	defer s.EntityLock.RUnlock()

	aircraft, ok := s.Aircraft[id]
	if !ok {
		return telemetry.Snapshot{}, fmt.Errorf("%w: %d", ErrAircraftNotFound, id)
	}
	return telemetry.FromAircraft(aircraft), nil
}

func (s *Simulation) snapshotsLocked() []telemetry.Snapshot {
	snapshots := make([]telemetry.Snapshot, 0, len(s.Aircraft))
	for _, a := range s.Aircraft {
		snapshots = append(snapshots, telemetry.FromAircraft(a))
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].ID < snapshots[j].ID })
	return snapshots
}
