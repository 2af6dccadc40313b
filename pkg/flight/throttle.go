package flight

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-dogfight/pkg/physics"
)

// SetThrottleInput stores the commanded throttle. Values are clamped to
// [-1, 1] and NaN is treated as no input.
func (m *Model) SetThrottleInput(input float64) {
	if math.IsNaN(input) {
		input = 0
	}
	m.throttleInput = mgl64.Clamp(input, -1, 1)
}

// UpdateThrottle moves the throttle toward full when the input is positive
// and toward idle otherwise, at a rate scaled by the input magnitude.
// There is no reverse thrust.
func (m *Model) UpdateThrottle(dt float64) {
	target := 0.0
	if m.throttleInput > 0 {
		target = 1
	}

	m.throttle = physics.MoveTo(m.throttle, target, m.cfg.ThrottleSpeed*math.Abs(m.throttleInput), dt, 0, 1)
}
