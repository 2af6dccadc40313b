package flight

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-dogfight/pkg/physics"
)

// minLiftSpeedSqr is the squared airspeed below which no lift is generated
const minLiftSpeedSqr = 1.0

// Thrust returns the body frame thrust for the current throttle
func (m *Model) Thrust() mgl64.Vec3 {
	return physics.Forward.Mul(m.throttle * m.cfg.MaxThrust)
}

// Lift returns lift plus induced drag for one lift plane. rightAxis is the
// body axis normal to that plane: physics.Right for pitch-plane lift,
// physics.Up for yaw-plane lift.
//
// Lift scales with the in-plane airspeed squared and the AoA coefficient;
// induced drag scales with the coefficient squared and opposes the
// in-plane velocity.
func (m *Model) Lift(angleOfAttack float64, rightAxis mgl64.Vec3, surface LiftSurface) mgl64.Vec3 {
	liftVelocity := physics.ProjectOnPlane(m.localVelocity, rightAxis)
	coefficient := surface.AOACurve.Evaluate(mgl64.RadToDeg(angleOfAttack))
	liftForce := liftVelocity.LenSqr() * coefficient * surface.Power

	// perpendicular to the velocity, inside the lift plane
	reference := m.velocity
	if m.cfg.BodyFrameLiftDirection {
		reference = m.localVelocity
	}
	liftDirection := physics.SafeNormalize(reference).Cross(rightAxis)
	lift := liftDirection.Mul(liftForce)

	dragForce := coefficient * coefficient
	dragDirection := physics.SafeNormalize(liftVelocity).Mul(-1)
	inducedDrag := dragDirection.Mul(dragForce * surface.InducedDragCurve.Evaluate(math.Max(0, m.localVelocity.Z())))

	return lift.Add(inducedDrag)
}

// PitchLift returns the pitch-plane lift, or zero below the minimum airspeed
func (m *Model) PitchLift() mgl64.Vec3 {
	if !m.hasLiftAirspeed() {
		return mgl64.Vec3{}
	}
	return m.Lift(m.angleOfAttack, physics.Right, m.cfg.PitchLift())
}

// YawLift returns the yaw-plane lift when configured, or zero
func (m *Model) YawLift() mgl64.Vec3 {
	if m.cfg.YawLift == nil || !m.hasLiftAirspeed() {
		return mgl64.Vec3{}
	}
	return m.Lift(m.angleOfAttackYaw, physics.Up, *m.cfg.YawLift)
}

func (m *Model) hasLiftAirspeed() bool {
	return m.localVelocity.LenSqr() >= minLiftSpeedSqr
}

// Drag returns the body frame directional drag. The coefficient blends the
// six axis curves by the direction of travel, so drag depends on which side
// of the airframe meets the airflow. Zero velocity yields zero drag.
func (m *Model) Drag() mgl64.Vec3 {
	lv := m.localVelocity
	lv2 := lv.LenSqr()
	if lv2 == 0 {
		return mgl64.Vec3{}
	}

	d := m.cfg.Drag
	direction := physics.SafeNormalize(lv)
	coefficient := physics.Scale6(direction,
		d.Right.Evaluate(lv.X()), d.Left.Evaluate(-lv.X()),
		d.Top.Evaluate(lv.Y()), d.Bottom.Evaluate(-lv.Y()),
		d.Forward.Evaluate(lv.Z()), d.Back.Evaluate(-lv.Z()),
	)

	// opposite the direction of travel
	return direction.Mul(-coefficient.Len() * lv2)
}
