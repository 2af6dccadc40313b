package flight

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-dogfight/pkg/physics"
)

// ErrNonFiniteForce is reported when a generator produces NaN or Inf.
// The offending force is not submitted to the body.
var ErrNonFiniteForce = errors.New("non-finite force")

// Tick runs one fixed step of the flight protocol:
//
//	sample state -> update throttle -> thrust, lift, drag -> resample
//
// Every generator runs even if an earlier one faulted; faults are joined
// into the returned error after the step completes. The second sample keeps
// telemetry current with this tick's throttle change; the body's velocity
// only changes when the host integrates.
func (m *Model) Tick(dt float64) error {
	m.CalculateState()
	m.calculateGForce(dt)
	m.phase = PhaseSampled

	m.UpdateThrottle(dt)
	m.phase = PhaseThrottleUpdated

	var errs []error
	m.forces = Forces{
		Thrust:  m.submit("thrust", m.Thrust(), &errs),
		Lift:    m.submit("lift", m.PitchLift(), &errs),
		YawLift: m.submit("yaw lift", m.YawLift(), &errs),
		Drag:    m.submit("drag", m.Drag(), &errs),
	}
	m.phase = PhaseForcesApplied

	m.CalculateState()
	m.phase = PhaseResampled
	m.ticks++

	return errors.Join(errs...)
}

// submit forwards a finite, non-zero force to the body and returns what was applied.
func (m *Model) submit(name string, f mgl64.Vec3, errs *[]error) mgl64.Vec3 {
	if !physics.IsFinite(f) {
		*errs = append(*errs, fmt.Errorf("%s generator: %w: %v", name, ErrNonFiniteForce, f))
		return mgl64.Vec3{}
	}
	if f == (mgl64.Vec3{}) {
		return f
	}
	m.body.AddLocalForce(f)
	return f
}
