// pkg/physics/vector_test.go
package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestSafeNormalize(t *testing.T) {
	tests := []struct {
		name     string
		vector   mgl64.Vec3
		expected mgl64.Vec3
	}{
		{
			name:     "axis_vector",
			vector:   mgl64.Vec3{0, 0, 10},
			expected: mgl64.Vec3{0, 0, 1},
		},
		{
			name:     "diagonal",
			vector:   mgl64.Vec3{3, 4, 0},
			expected: mgl64.Vec3{0.6, 0.8, 0},
		},
		{
			name:     "zero_vector",
			vector:   mgl64.Vec3{},
			expected: mgl64.Vec3{},
		},
		{
			name:     "denormal_vector",
			vector:   mgl64.Vec3{1e-200, 0, 0},
			expected: mgl64.Vec3{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SafeNormalize(tt.vector)
			if !IsFinite(result) {
				t.Fatalf("SafeNormalize() produced non-finite %v", result)
			}
			if !vecNear(result, tt.expected, 1e-9) {
				t.Errorf("SafeNormalize() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestProjectOnPlane(t *testing.T) {
	tests := []struct {
		name     string
		vector   mgl64.Vec3
		normal   mgl64.Vec3
		expected mgl64.Vec3
	}{
		{
			name:     "removes_lateral_component",
			vector:   mgl64.Vec3{5, -2, 30},
			normal:   Right,
			expected: mgl64.Vec3{0, -2, 30},
		},
		{
			name:     "non_unit_normal",
			vector:   mgl64.Vec3{5, -2, 30},
			normal:   mgl64.Vec3{4, 0, 0},
			expected: mgl64.Vec3{0, -2, 30},
		},
		{
			name:     "vector_along_normal",
			vector:   mgl64.Vec3{0, 7, 0},
			normal:   Up,
			expected: mgl64.Vec3{},
		},
		{
			name:     "zero_normal_returns_input",
			vector:   mgl64.Vec3{1, 2, 3},
			normal:   mgl64.Vec3{},
			expected: mgl64.Vec3{1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ProjectOnPlane(tt.vector, tt.normal)
			if !vecNear(result, tt.expected, 1e-9) {
				t.Errorf("ProjectOnPlane() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestScale6(t *testing.T) {
	tests := []struct {
		name     string
		vector   mgl64.Vec3
		expected mgl64.Vec3
	}{
		{
			name:     "positive_components",
			vector:   mgl64.Vec3{1, 1, 1},
			expected: mgl64.Vec3{2, 4, 6},
		},
		{
			name:     "negative_components",
			vector:   mgl64.Vec3{-1, -1, -1},
			expected: mgl64.Vec3{-3, -5, -7},
		},
		{
			name:     "mixed",
			vector:   mgl64.Vec3{0.5, 0, -0.5},
			expected: mgl64.Vec3{1, 0, -3.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Scale6(tt.vector, 2, 3, 4, 5, 6, 7)
			if !vecNear(result, tt.expected, 1e-9) {
				t.Errorf("Scale6() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestMoveToward(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		target   float64
		maxDelta float64
		expected float64
	}{
		{"step_up", 0, 1, 0.25, 0.25},
		{"step_down", 1, 0, 0.25, 0.75},
		{"no_overshoot_up", 0.9, 1, 0.5, 1},
		{"no_overshoot_down", 0.1, 0, 0.5, 0},
		{"zero_delta", 0.3, 1, 0, 0.3},
		{"already_at_target", 1, 1, 0.1, 1},
		{"rounded_last_step", 0.8999999999999999, 1, 0.1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MoveToward(tt.value, tt.target, tt.maxDelta)
			if math.Abs(result-tt.expected) > 1e-12 {
				t.Errorf("MoveToward() = %f, expected %f", result, tt.expected)
			}
		})
	}
}

func TestMoveTo_ClampsToRange(t *testing.T) {
	if got := MoveTo(0.5, 3, 100, 1, 0, 1); got != 1 {
		t.Errorf("MoveTo() = %f, expected clamp to 1", got)
	}
	if got := MoveTo(0.5, -3, 100, 1, 0, 1); got != 0 {
		t.Errorf("MoveTo() = %f, expected clamp to 0", got)
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(mgl64.Vec3{1, -2, 3}) {
		t.Error("expected finite vector")
	}
	if IsFinite(mgl64.Vec3{math.NaN(), 0, 0}) {
		t.Error("NaN component reported as finite")
	}
	if IsFinite(mgl64.Vec3{0, math.Inf(-1), 0}) {
		t.Error("Inf component reported as finite")
	}
}

func TestEulerToQuat(t *testing.T) {
	tests := []struct {
		name            string
		pitch, yaw, rol float64
		expectedForward mgl64.Vec3
	}{
		{"identity", 0, 0, 0, Forward},
		{"yaw_right_90", 0, 90, 0, mgl64.Vec3{1, 0, 0}},
		{"pitch_down_90", 90, 0, 0, mgl64.Vec3{0, -1, 0}},
		{"roll_keeps_forward", 0, 0, 45, Forward},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := EulerToQuat(tt.pitch, tt.yaw, tt.rol)
			forward := q.Rotate(Forward)
			if !vecNear(forward, tt.expectedForward, 1e-9) {
				t.Errorf("forward = %v, expected %v", forward, tt.expectedForward)
			}
		})
	}
}

// vecNear reports whether a and b are within tol of each other.
func vecNear(a, b mgl64.Vec3, tol float64) bool {
	return a.Sub(b).Len() <= tol
}
