package physics

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidMass is returned when a rigid body is created without positive mass
var ErrInvalidMass = errors.New("rigid body mass must be positive")

// BodyState is the initial motion state of a rigid body
type BodyState struct {
	Position        mgl64.Vec3
	Velocity        mgl64.Vec3 // world frame, m/s
	Orientation     mgl64.Quat
	AngularVelocity mgl64.Vec3 // world frame, rad/s
}

// RigidBody is a minimal point-mass host for force models. Forces are
// accumulated between steps and consumed by Integrate.
type RigidBody struct {
	mass            float64
	gravity         mgl64.Vec3
	position        mgl64.Vec3
	velocity        mgl64.Vec3
	orientation     mgl64.Quat
	angularVelocity mgl64.Vec3
	force           mgl64.Vec3 // world frame accumulator
}

// NewRigidBody creates a body with the given mass, gravity acceleration and
// starting state. A zero orientation is replaced with identity.
func NewRigidBody(mass float64, gravity mgl64.Vec3, state BodyState) (*RigidBody, error) {
	if mass <= 0 {
		return nil, ErrInvalidMass
	}
	orientation := state.Orientation
	if orientation.Len() == 0 {
		orientation = mgl64.QuatIdent()
	}
	return &RigidBody{
		mass:            mass,
		gravity:         gravity,
		position:        state.Position,
		velocity:        state.Velocity,
		orientation:     orientation.Normalize(),
		angularVelocity: state.AngularVelocity,
	}, nil
}

// Mass returns the body mass in kilograms
func (b *RigidBody) Mass() float64 { return b.mass }

// Position returns the world position
func (b *RigidBody) Position() mgl64.Vec3 { return b.position }

// WorldVelocity returns the world frame velocity
func (b *RigidBody) WorldVelocity() mgl64.Vec3 { return b.velocity }

// Orientation returns the body to world rotation
func (b *RigidBody) Orientation() mgl64.Quat { return b.orientation }

// AngularVelocity returns the world frame angular velocity
func (b *RigidBody) AngularVelocity() mgl64.Vec3 { return b.angularVelocity }

// PendingForce returns the world frame force accumulated since the last step
func (b *RigidBody) PendingForce() mgl64.Vec3 { return b.force }

// SetAngularVelocity sets the world frame angular velocity used by the next
// integration steps. Steering is owned by the host, not the force model.
func (b *RigidBody) SetAngularVelocity(w mgl64.Vec3) {
	b.angularVelocity = w
}

// AddForce accumulates a world frame force
func (b *RigidBody) AddForce(f mgl64.Vec3) {
	b.force = b.force.Add(f)
}

// AddLocalForce accumulates a body frame force. It is rotated into the
// world frame using the orientation at the time of the call.
func (b *RigidBody) AddLocalForce(f mgl64.Vec3) {
	b.force = b.force.Add(b.orientation.Rotate(f))
}

// LocalToWorld rotates a body frame direction into the world frame
func (b *RigidBody) LocalToWorld(v mgl64.Vec3) mgl64.Vec3 {
	return b.orientation.Rotate(v)
}

// Integrate advances the body by dt seconds with semi-implicit Euler and
// clears the force accumulator.
func (b *RigidBody) Integrate(dt float64) {
	if dt <= 0 {
		return
	}

	// Velocity first, then position from the new velocity
	accel := b.force.Mul(1 / b.mass).Add(b.gravity)
	b.velocity = b.velocity.Add(accel.Mul(dt))
	b.position = b.position.Add(b.velocity.Mul(dt))

	// Rotate by the angle swept this step
	if rate := b.angularVelocity.Len(); rate > 0 {
		step := mgl64.QuatRotate(rate*dt, b.angularVelocity.Mul(1/rate))
		b.orientation = step.Mul(b.orientation).Normalize()
	}

	b.force = mgl64.Vec3{}
}
