// Package flight implements the per-tick aircraft force model: throttle
// smoothing, body-frame state sampling, and the thrust, lift and
// directional drag generators that feed a rigid body host.
//
// A Model is driven by exactly one caller per tick (see Tick). Its
// accessors form the read-only telemetry surface.
package flight

import (
	"fmt"

	"github.com/brunoga/deep"
	"github.com/go-gl/mathgl/mgl64"
)

// Body is the rigid body host a Model is bound to. The host owns motion
// integration; the model only reads state and requests forces.
type Body interface {
	WorldVelocity() mgl64.Vec3
	Orientation() mgl64.Quat
	Position() mgl64.Vec3
	// AddLocalForce accumulates a body frame force for the next integration step.
	AddLocalForce(f mgl64.Vec3)
}

// Phase is the position of a Model inside the per-tick protocol
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSampled
	PhaseThrottleUpdated
	PhaseForcesApplied
	PhaseResampled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSampled:
		return "sampled"
	case PhaseThrottleUpdated:
		return "throttle_updated"
	case PhaseForcesApplied:
		return "forces_applied"
	case PhaseResampled:
		return "resampled"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Forces are the body frame forces submitted during the last tick
type Forces struct {
	Thrust  mgl64.Vec3 `json:"thrust"`
	Lift    mgl64.Vec3 `json:"lift"`
	YawLift mgl64.Vec3 `json:"yawLift"`
	Drag    mgl64.Vec3 `json:"drag"`
}

// Total returns the sum of all submitted forces
func (f Forces) Total() mgl64.Vec3 {
	return f.Thrust.Add(f.Lift).Add(f.YawLift).Add(f.Drag)
}

// Model is the flight dynamics state of one aircraft
type Model struct {
	cfg  Config
	body Body

	throttleInput float64
	throttle      float64

	velocity         mgl64.Vec3
	localVelocity    mgl64.Vec3
	angleOfAttack    float64
	angleOfAttackYaw float64

	lastVelocity mgl64.Vec3
	localGForce  mgl64.Vec3

	phase  Phase
	forces Forces
	ticks  uint64
}

// NewModel validates cfg and binds a new model to body. The config is deep
// copied so tuning is never shared between aircraft.
func NewModel(cfg Config, body Body) (*Model, error) {
	if body == nil {
		return nil, fmt.Errorf("%w: rigid body is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	owned, err := deep.Copy(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to copy flight config: %w", err)
	}

	m := &Model{
		cfg:  owned,
		body: body,
	}
	m.CalculateState()
	m.lastVelocity = m.velocity
	return m, nil
}

// Config returns the model's tuning
func (m *Model) Config() Config { return m.cfg }

// Throttle returns the smoothed throttle level in [0, 1]
func (m *Model) Throttle() float64 { return m.throttle }

// ThrottleInput returns the last commanded throttle input in [-1, 1]
func (m *Model) ThrottleInput() float64 { return m.throttleInput }

// Velocity returns the world frame velocity from the last sample
func (m *Model) Velocity() mgl64.Vec3 { return m.velocity }

// LocalVelocity returns the body frame velocity from the last sample
func (m *Model) LocalVelocity() mgl64.Vec3 { return m.localVelocity }

// AngleOfAttack returns the pitch-plane angle of attack in radians
func (m *Model) AngleOfAttack() float64 { return m.angleOfAttack }

// AngleOfAttackYaw returns the yaw-plane angle of attack in radians
func (m *Model) AngleOfAttackYaw() float64 { return m.angleOfAttackYaw }

// LocalGForce returns the body frame acceleration over the last tick in m/s^2
func (m *Model) LocalGForce() mgl64.Vec3 { return m.localGForce }

// Phase returns the last completed protocol phase
func (m *Model) Phase() Phase { return m.phase }

// LastForces returns the forces submitted during the last tick
func (m *Model) LastForces() Forces { return m.forces }

// Ticks returns the number of completed ticks
func (m *Model) Ticks() uint64 { return m.ticks }

// Position returns the bound body's world position
func (m *Model) Position() mgl64.Vec3 { return m.body.Position() }
