package entity

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-dogfight/pkg/flight"
	"github.com/opd-ai/go-dogfight/pkg/physics"
)

// Aircraft binds one flight model to the rigid body it drives
type Aircraft struct {
	BaseEntity
	Name   string
	Body   *physics.RigidBody
	Flight *flight.Model
}

// NewAircraft creates an aircraft whose flight model is bound to body
func NewAircraft(name string, body *physics.RigidBody, cfg flight.Config) (*Aircraft, error) {
	if body == nil {
		return nil, fmt.Errorf("aircraft %q: rigid body is required", name)
	}
	model, err := flight.NewModel(cfg, body)
	if err != nil {
		return nil, fmt.Errorf("aircraft %q: %w", name, err)
	}

	return &Aircraft{
		BaseEntity: NewBaseEntity(),
		Name:       name,
		Body:       body,
		Flight:     model,
	}, nil
}

// GetPosition returns the aircraft's world position
func (a *Aircraft) GetPosition() mgl64.Vec3 {
	return a.Body.Position()
}

// Update runs one flight model tick. Forces are left pending on the body
// until Integrate is called.
func (a *Aircraft) Update(deltaTime float64) error {
	if !a.Active {
		return nil
	}
	return a.Flight.Tick(deltaTime)
}

// Integrate advances the rigid body using the forces requested this tick
func (a *Aircraft) Integrate(deltaTime float64) {
	if !a.Active {
		return
	}
	a.Body.Integrate(deltaTime)
}

// SetThrottleInput forwards a pilot throttle command to the flight model
func (a *Aircraft) SetThrottleInput(input float64) {
	a.Flight.SetThrottleInput(input)
}

// SetAngularVelocity sets the steering rate of the body in world frame rad/s
func (a *Aircraft) SetAngularVelocity(w mgl64.Vec3) {
	a.Body.SetAngularVelocity(w)
}
