package flight

import (
	"math"
)

// CalculateState samples the body's world velocity, rotates it into the
// body frame and derives both angles of attack. It only writes the cached
// fields and is safe to call repeatedly.
func (m *Model) CalculateState() {
	m.velocity = m.body.WorldVelocity()
	m.localVelocity = m.body.Orientation().Inverse().Rotate(m.velocity)

	m.calculateAngleOfAttack()
}

func (m *Model) calculateAngleOfAttack() {
	lv := m.localVelocity
	m.angleOfAttack = atan2(-lv.Y(), lv.Z())
	m.angleOfAttackYaw = atan2(lv.X(), lv.Z())
}

// atan2 is math.Atan2 with signed zeros folded, so a zero vector always
// reads as 0 rather than ±π.
func atan2(y, x float64) float64 {
	if y == 0 && x == 0 {
		return 0
	}
	return math.Atan2(y, x)
}

// calculateGForce derives the body frame acceleration from the velocity
// change since the previous tick.
func (m *Model) calculateGForce(dt float64) {
	if dt <= 0 {
		return
	}
	accel := m.velocity.Sub(m.lastVelocity).Mul(1 / dt)
	m.localGForce = m.body.Orientation().Inverse().Rotate(accel)
	m.lastVelocity = m.velocity
}
