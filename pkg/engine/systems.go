package engine

import (
	"github.com/EngoEngine/ecs"

	"github.com/opd-ai/go-dogfight/pkg/entity"
)

// System priorities. Higher priorities run first within a world update, so
// every flight model submits its forces before any body is integrated.
const (
	FlightPriority      = 10
	IntegrationPriority = 0
)

// aircraftSet is an ordered set of aircraft keyed by ecs id
type aircraftSet struct {
	entities []*entity.Aircraft
}

func (s *aircraftSet) Add(a *entity.Aircraft) {
	s.entities = append(s.entities, a)
}

// Remove satisfies the ecs.System interface
func (s *aircraftSet) Remove(basic ecs.BasicEntity) {
	for i, a := range s.entities {
		if a.BasicEntity.ID() == basic.ID() {
			s.entities = append(s.entities[:i], s.entities[i+1:]...)
			return
		}
	}
}

// FlightSystem runs the flight model tick of every aircraft
type FlightSystem struct {
	aircraftSet
	timeStep float64
	onFault  func(a *entity.Aircraft, err error)
}

// NewFlightSystem creates a flight system stepping at timeStep seconds.
// onFault receives the joined generator faults of an aircraft's tick.
func NewFlightSystem(timeStep float64, onFault func(*entity.Aircraft, error)) *FlightSystem {
	return &FlightSystem{timeStep: timeStep, onFault: onFault}
}

// Update ticks every flight model. The ecs frame time is ignored in favour
// of the fixed step.
func (fs *FlightSystem) Update(float32) {
	for _, a := range fs.entities {
		if err := a.Update(fs.timeStep); err != nil && fs.onFault != nil {
			fs.onFault(a, err)
		}
	}
}

// Priority satisfies ecs.Prioritizer
func (fs *FlightSystem) Priority() int { return FlightPriority }

// IntegrationSystem advances every rigid body with the forces requested
// during the flight pass
type IntegrationSystem struct {
	aircraftSet
	timeStep float64
}

// NewIntegrationSystem creates an integration system stepping at timeStep seconds
func NewIntegrationSystem(timeStep float64) *IntegrationSystem {
	return &IntegrationSystem{timeStep: timeStep}
}

// Update integrates every body
func (is *IntegrationSystem) Update(float32) {
	for _, a := range is.entities {
		a.Integrate(is.timeStep)
	}
}

// Priority satisfies ecs.Prioritizer
func (is *IntegrationSystem) Priority() int { return IntegrationPriority }
