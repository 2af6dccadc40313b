package flight

import (
	"errors"
	"fmt"
	"math"

	"github.com/opd-ai/go-dogfight/pkg/curve"
)

// ErrInvalidConfig is wrapped by every configuration validation failure
var ErrInvalidConfig = errors.New("invalid flight config")

// DragCurves holds one drag curve per body axis direction. Each curve is
// evaluated with the speed component moving into its own direction.
type DragCurves struct {
	Right   *curve.Curve `json:"right"`   // +X
	Left    *curve.Curve `json:"left"`    // -X
	Top     *curve.Curve `json:"top"`     // +Y
	Bottom  *curve.Curve `json:"bottom"`  // -Y
	Forward *curve.Curve `json:"forward"` // +Z
	Back    *curve.Curve `json:"back"`    // -Z
}

// LiftSurface is the tuning of one lift generating plane
type LiftSurface struct {
	Power            float64      `json:"power"`
	AOACurve         *curve.Curve `json:"aoaCurve"`
	InducedDragCurve *curve.Curve `json:"inducedDragCurve"`
}

// Config is the per-aircraft tuning. It is fixed once a Model is created.
type Config struct {
	MaxThrust        float64      `json:"maxThrust"`
	ThrottleSpeed    float64      `json:"throttleSpeed"`
	LiftPower        float64      `json:"liftPower"`
	LiftAOACurve     *curve.Curve `json:"liftAOACurve"`
	InducedDragCurve *curve.Curve `json:"inducedDragCurve"`
	Drag             DragCurves   `json:"drag"`

	// YawLift enables a second lift plane driven by the yaw angle of
	// attack. Nil leaves only pitch-plane lift active.
	YawLift *LiftSurface `json:"yawLift,omitempty"`

	// BodyFrameLiftDirection orients lift from the body frame velocity
	// instead of the world frame velocity. The two agree only while the
	// airframe is aligned with the world axes.
	BodyFrameLiftDirection bool `json:"bodyFrameLiftDirection,omitempty"`
}

// PitchLift returns the pitch-plane lift tuning
func (c Config) PitchLift() LiftSurface {
	return LiftSurface{
		Power:            c.LiftPower,
		AOACurve:         c.LiftAOACurve,
		InducedDragCurve: c.InducedDragCurve,
	}
}

// Validate checks scalar ranges and that every curve is present.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	check(c.MaxThrust > 0 && !math.IsInf(c.MaxThrust, 0), "maxThrust must be positive and finite, got %v", c.MaxThrust)
	check(c.ThrottleSpeed > 0 && !math.IsInf(c.ThrottleSpeed, 0), "throttleSpeed must be positive and finite, got %v", c.ThrottleSpeed)
	check(!math.IsNaN(c.LiftPower) && !math.IsInf(c.LiftPower, 0), "liftPower must be finite, got %v", c.LiftPower)
	check(c.LiftAOACurve.Validate() == nil, "liftAOACurve is required")
	check(c.InducedDragCurve.Validate() == nil, "inducedDragCurve is required")

	drag := []struct {
		name  string
		curve *curve.Curve
	}{
		{"right", c.Drag.Right},
		{"left", c.Drag.Left},
		{"top", c.Drag.Top},
		{"bottom", c.Drag.Bottom},
		{"forward", c.Drag.Forward},
		{"back", c.Drag.Back},
	}
	for _, d := range drag {
		check(d.curve.Validate() == nil, "drag curve %q is required", d.name)
	}

	if c.YawLift != nil {
		check(!math.IsNaN(c.YawLift.Power) && !math.IsInf(c.YawLift.Power, 0), "yawLift.power must be finite, got %v", c.YawLift.Power)
		check(c.YawLift.AOACurve.Validate() == nil, "yawLift.aoaCurve is required")
		check(c.YawLift.InducedDragCurve.Validate() == nil, "yawLift.inducedDragCurve is required")
	}

	return errors.Join(errs...)
}
