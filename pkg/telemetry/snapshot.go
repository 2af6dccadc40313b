// Package telemetry exposes read-only views of aircraft flight state: JSON
// snapshots for clients and Prometheus metrics for operators.
package telemetry

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-dogfight/pkg/entity"
	"github.com/opd-ai/go-dogfight/pkg/flight"
)

// Snapshot is a copy of one aircraft's flight state after a tick
type Snapshot struct {
	ID               uint64        `json:"id"`
	Name             string        `json:"name"`
	Tick             uint64        `json:"tick"`
	Position         mgl64.Vec3    `json:"position"`
	Velocity         mgl64.Vec3    `json:"velocity"`
	LocalVelocity    mgl64.Vec3    `json:"localVelocity"`
	Orientation      [4]float64    `json:"orientation"` // w, x, y, z
	AngularVelocity  mgl64.Vec3    `json:"angularVelocity"`
	Throttle         float64       `json:"throttle"`
	ThrottleInput    float64       `json:"throttleInput"`
	AngleOfAttack    float64       `json:"angleOfAttack"`    // radians
	AngleOfAttackYaw float64       `json:"angleOfAttackYaw"` // radians
	LocalGForce      mgl64.Vec3    `json:"localGForce"`      // m/s², body frame
	Phase            string        `json:"phase"`
	Forces           flight.Forces `json:"forces"`
}

// FromAircraft copies the current state of an aircraft. The caller must
// hold whatever lock guards the aircraft against concurrent ticks.
func FromAircraft(a *entity.Aircraft) Snapshot {
	m := a.Flight
	q := a.Body.Orientation()
	return Snapshot{
		ID:               uint64(a.GetID()),
		Name:             a.Name,
		Tick:             m.Ticks(),
		Position:         a.Body.Position(),
		Velocity:         m.Velocity(),
		LocalVelocity:    m.LocalVelocity(),
		Orientation:      [4]float64{q.W, q.X(), q.Y(), q.Z()},
		AngularVelocity:  a.Body.AngularVelocity(),
		Throttle:         m.Throttle(),
		ThrottleInput:    m.ThrottleInput(),
		AngleOfAttack:    m.AngleOfAttack(),
		AngleOfAttackYaw: m.AngleOfAttackYaw(),
		LocalGForce:      m.LocalGForce(),
		Phase:            m.Phase().String(),
		Forces:           m.LastForces(),
	}
}

// Airspeed returns the magnitude of the world velocity
func (s Snapshot) Airspeed() float64 {
	return s.Velocity.Len()
}

// Altitude returns the height above the world origin
func (s Snapshot) Altitude() float64 {
	return s.Position.Y()
}

// GLoad returns the body frame vertical acceleration in multiples of g0
func (s Snapshot) GLoad(g0 float64) float64 {
	if g0 == 0 {
		return 0
	}
	return s.LocalGForce.Y() / g0
}

// Quat returns the orientation as a quaternion
func (s Snapshot) Quat() mgl64.Quat {
	o := s.Orientation
	return mgl64.Quat{W: o[0], V: mgl64.Vec3{o[1], o[2], o[3]}}
}
