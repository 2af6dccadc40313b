package config

import (
	"sort"

	"github.com/opd-ai/go-dogfight/pkg/curve"
	"github.com/opd-ai/go-dogfight/pkg/flight"
)

// aircraftPresets builds a fresh config for each known airframe. Every call
// allocates new curves so presets never share state.
var aircraftPresets = map[string]func() AircraftConfig{
	"jet":     jetPreset,
	"trainer": trainerPreset,
	"stunt":   stuntPreset,
}

// GetAircraftPreset returns a new copy of the named preset, or nil
func GetAircraftPreset(name string) *AircraftConfig {
	build, ok := aircraftPresets[name]
	if !ok {
		return nil
	}
	preset := build()
	return &preset
}

// ListAircraftPresets returns the preset names in sorted order
func ListAircraftPresets() []string {
	names := make([]string, 0, len(aircraftPresets))
	for name := range aircraftPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// liftCurve is a symmetric lift coefficient curve over AoA in degrees that
// peaks at stallDeg and falls off past it.
func liftCurve(peak, stallDeg float64) *curve.Curve {
	return curve.MustNew(curve.Smooth,
		curve.Key{In: -90, Out: 0},
		curve.Key{In: -stallDeg - 5, Out: -peak * 0.8},
		curve.Key{In: -stallDeg, Out: -peak},
		curve.Key{In: 0, Out: 0},
		curve.Key{In: stallDeg, Out: peak},
		curve.Key{In: stallDeg + 5, Out: peak * 0.8},
		curve.Key{In: 90, Out: 0},
	)
}

func linear(keys ...curve.Key) *curve.Curve {
	return curve.MustNew(curve.Linear, keys...)
}

func jetPreset() AircraftConfig {
	return AircraftConfig{
		Name: "jet",
		Mass: 10000,
		Flight: flight.Config{
			MaxThrust:     100000,
			ThrottleSpeed: 0.5,
			LiftPower:     9,
			LiftAOACurve:  liftCurve(1.4, 15),
			InducedDragCurve: linear(
				curve.Key{In: 0, Out: 10000},
				curve.Key{In: 150, Out: 4000},
				curve.Key{In: 350, Out: 1000},
			),
			Drag: flight.DragCurves{
				Right:   curve.Constant(4),
				Left:    curve.Constant(4),
				Top:     curve.Constant(8),
				Bottom:  curve.Constant(8),
				Forward: linear(curve.Key{In: 0, Out: 0.5}, curve.Key{In: 100, Out: 0.8}, curve.Key{In: 300, Out: 2}),
				Back:    curve.Constant(3),
			},
			BodyFrameLiftDirection: true,
		},
	}
}

// trainerPreset orients lift from the world frame velocity.
func trainerPreset() AircraftConfig {
	return AircraftConfig{
		Name: "trainer",
		Mass: 1200,
		Flight: flight.Config{
			MaxThrust:     6000,
			ThrottleSpeed: 0.8,
			LiftPower:     9,
			LiftAOACurve:  liftCurve(1.2, 16),
			InducedDragCurve: linear(
				curve.Key{In: 0, Out: 800},
				curve.Key{In: 60, Out: 300},
			),
			Drag: flight.DragCurves{
				Right:   curve.Constant(2),
				Left:    curve.Constant(2),
				Top:     curve.Constant(5),
				Bottom:  curve.Constant(5),
				Forward: linear(curve.Key{In: 0, Out: 0.5}, curve.Key{In: 80, Out: 1.5}),
				Back:    curve.Constant(2),
			},
		},
	}
}

// stuntPreset is a light aerobatic airframe with a lifting fuselage, so it
// also generates side force when slipping.
func stuntPreset() AircraftConfig {
	return AircraftConfig{
		Name: "stunt",
		Mass: 800,
		Flight: flight.Config{
			MaxThrust:     9000,
			ThrottleSpeed: 1.5,
			LiftPower:     7,
			LiftAOACurve:  liftCurve(1.5, 18),
			InducedDragCurve: linear(
				curve.Key{In: 0, Out: 600},
				curve.Key{In: 70, Out: 200},
			),
			Drag: flight.DragCurves{
				Right:   curve.Constant(1.5),
				Left:    curve.Constant(1.5),
				Top:     curve.Constant(4),
				Bottom:  curve.Constant(4),
				Forward: linear(curve.Key{In: 0, Out: 0.4}, curve.Key{In: 90, Out: 1.2}),
				Back:    curve.Constant(1.5),
			},
			YawLift: &flight.LiftSurface{
				Power:    2,
				AOACurve: liftCurve(0.6, 20),
				InducedDragCurve: linear(
					curve.Key{In: 0, Out: 300},
					curve.Key{In: 70, Out: 100},
				),
			},
			BodyFrameLiftDirection: true,
		},
	}
}
