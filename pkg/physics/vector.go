// pkg/physics/vector.go
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Body axes. +X is right, +Y is up and +Z is forward.
var (
	Right   = mgl64.Vec3{1, 0, 0}
	Up      = mgl64.Vec3{0, 1, 0}
	Forward = mgl64.Vec3{0, 0, 1}
)

// normalizeEpsilon is the squared length below which a vector is treated as zero
const normalizeEpsilon = 1e-24

// SafeNormalize returns a unit vector in the same direction, or the zero
// vector when v has no usable direction. mgl64's Normalize yields NaN there.
func SafeNormalize(v mgl64.Vec3) mgl64.Vec3 {
	if v.LenSqr() < normalizeEpsilon {
		return mgl64.Vec3{}
	}
	return v.Mul(1 / v.Len())
}

// ProjectOnPlane removes the component of v along the plane normal.
// The normal does not need to be unit length.
func ProjectOnPlane(v, normal mgl64.Vec3) mgl64.Vec3 {
	n2 := normal.LenSqr()
	if n2 < normalizeEpsilon {
		return v
	}
	return v.Sub(normal.Mul(v.Dot(normal) / n2))
}

// Scale6 scales each component of v by the positive- or negative-side factor
// matching that component's sign. Zero components stay zero.
func Scale6(v mgl64.Vec3, posX, negX, posY, negY, posZ, negZ float64) mgl64.Vec3 {
	return mgl64.Vec3{
		scaleSigned(v.X(), posX, negX),
		scaleSigned(v.Y(), posY, negY),
		scaleSigned(v.Z(), posZ, negZ),
	}
}

func scaleSigned(c, pos, neg float64) float64 {
	switch {
	case c > 0:
		return c * pos
	case c < 0:
		return c * neg
	default:
		return 0
	}
}

// moveSnap absorbs the rounding a run of equal steps accumulates, so the
// final step lands on the target.
const moveSnap = 1e-9

// MoveToward moves value toward target by at most maxDelta without overshooting.
func MoveToward(value, target, maxDelta float64) float64 {
	if maxDelta <= 0 {
		return value
	}
	diff := target - value
	if math.Abs(diff) <= maxDelta*(1+moveSnap) {
		return target
	}
	return value + math.Copysign(maxDelta, diff)
}

// MoveTo moves value toward target at speed units per second over dt and
// keeps the result inside [min, max].
func MoveTo(value, target, speed, dt, min, max float64) float64 {
	return mgl64.Clamp(MoveToward(value, target, speed*dt), min, max)
}

// IsFinite reports whether every component of v is a real number.
func IsFinite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// EulerToQuat builds an orientation from pitch (about +X), yaw (about +Y)
// and roll (about +Z) in degrees, applied yaw, then pitch, then roll.
func EulerToQuat(pitchDeg, yawDeg, rollDeg float64) mgl64.Quat {
	yaw := mgl64.QuatRotate(mgl64.DegToRad(yawDeg), Up)
	pitch := mgl64.QuatRotate(mgl64.DegToRad(pitchDeg), Right)
	roll := mgl64.QuatRotate(mgl64.DegToRad(rollDeg), Forward)
	return yaw.Mul(pitch).Mul(roll).Normalize()
}
