package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("DefaultConfig is invalid: %v", err)
	}
	if config.TickRate != 50 {
		t.Errorf("Expected TickRate 50, got %d", config.TickRate)
	}
	if config.TickDuration() != 0.02 {
		t.Errorf("Expected TickDuration 0.02, got %v", config.TickDuration())
	}
	if config.Gravity != (mgl64.Vec3{0, -9.81, 0}) {
		t.Errorf("Expected standard gravity, got %v", config.Gravity)
	}
	if len(config.Aircraft) != 2 {
		t.Fatalf("Expected 2 aircraft, got %d", len(config.Aircraft))
	}
	if config.Aircraft[0].Name != "viper" || config.Aircraft[1].Name != "cub" {
		t.Errorf("Unexpected aircraft names %q, %q", config.Aircraft[0].Name, config.Aircraft[1].Name)
	}
	if !config.Aircraft[0].Flight.BodyFrameLiftDirection {
		t.Error("viper: expected body frame lift direction")
	}
	if config.Aircraft[1].Flight.BodyFrameLiftDirection {
		t.Error("cub: expected world frame lift direction")
	}
	if config.NetworkConfig.ServerPort != 4566 {
		t.Errorf("Expected ServerPort 4566, got %d", config.NetworkConfig.ServerPort)
	}
}

func TestDefaultConfig_AircraftDoNotShareCurves(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	if a.Aircraft[0].Flight.LiftAOACurve == b.Aircraft[0].Flight.LiftAOACurve {
		t.Error("separate default configs share a curve")
	}
}

func TestSimConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SimConfig)
		wantErr string
	}{
		{"valid", func(*SimConfig) {}, ""},
		{"zero_tick_rate", func(c *SimConfig) { c.TickRate = 0 }, "tickRate"},
		{"nan_gravity", func(c *SimConfig) { c.Gravity = mgl64.Vec3{0, math.NaN(), 0} }, "gravity"},
		{"duplicate_name", func(c *SimConfig) { c.Aircraft[1].Name = c.Aircraft[0].Name }, "duplicate name"},
		{"missing_name", func(c *SimConfig) { c.Aircraft[0].Name = "" }, "name is required"},
		{"zero_mass", func(c *SimConfig) { c.Aircraft[0].Mass = 0 }, "mass"},
		{"bad_flight", func(c *SimConfig) { c.Aircraft[1].Flight.MaxThrust = -1 }, "maxThrust"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAircraftConfig_FlightConfigIsACopy(t *testing.T) {
	a := GetAircraftPreset("stunt")

	cfg, err := a.FlightConfig()
	if err != nil {
		t.Fatalf("FlightConfig failed: %v", err)
	}
	if cfg.LiftAOACurve == a.Flight.LiftAOACurve {
		t.Error("flight config shares lift curve with aircraft config")
	}
	if cfg.YawLift == a.Flight.YawLift {
		t.Error("flight config shares yaw lift block with aircraft config")
	}
	if cfg.LiftAOACurve.Evaluate(10) != a.Flight.LiftAOACurve.Evaluate(10) {
		t.Error("copied lift curve evaluates differently")
	}

	a.Flight.MaxThrust = 0
	if _, err := a.FlightConfig(); err == nil {
		t.Error("expected error for invalid flight config")
	}
}

func TestAircraftConfig_BodyState(t *testing.T) {
	a := AircraftConfig{
		Position:    mgl64.Vec3{1, 2, 3},
		Velocity:    mgl64.Vec3{0, 0, 40},
		Orientation: Orientation{Yaw: 90},
	}
	state := a.BodyState()

	if state.Position != a.Position || state.Velocity != a.Velocity {
		t.Errorf("unexpected state %+v", state)
	}
	nose := state.Orientation.Rotate(mgl64.Vec3{0, 0, 1})
	if !vecNear(nose, mgl64.Vec3{1, 0, 0}, 1e-9) {
		t.Errorf("yaw 90 should point the nose along +X, got %v", nose)
	}
}

func TestLoadConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.json")
	original := DefaultConfig()
	original.Aircraft = append(original.Aircraft, *GetAircraftPreset("stunt"))

	if err := SaveConfig(original, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := loaded.Validate(); err != nil {
		t.Fatalf("loaded config is invalid: %v", err)
	}

	if len(loaded.Aircraft) != 3 {
		t.Fatalf("Expected 3 aircraft, got %d", len(loaded.Aircraft))
	}
	for i, a := range loaded.Aircraft {
		want := original.Aircraft[i]
		if a.Name != want.Name || a.Mass != want.Mass || a.Position != want.Position {
			t.Errorf("aircraft %d: got %s/%v/%v, want %s/%v/%v", i, a.Name, a.Mass, a.Position, want.Name, want.Mass, want.Position)
		}
		for _, aoa := range []float64{-30, -10, 0, 7.5, 15, 40} {
			if got, exp := a.Flight.LiftAOACurve.Evaluate(aoa), want.Flight.LiftAOACurve.Evaluate(aoa); math.Abs(got-exp) > 1e-12 {
				t.Errorf("aircraft %d: lift curve at %v = %v, want %v", i, aoa, got, exp)
			}
		}
	}
	if loaded.Aircraft[2].Flight.YawLift == nil {
		t.Error("yaw lift block lost in round trip")
	}
	if loaded.Aircraft[0].Flight.YawLift != nil {
		t.Error("yaw lift block appeared on jet")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte(`{"tickRate": "fast"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for malformed config")
	}

	// curves are checked while parsing
	if err := os.WriteFile(path, []byte(`{"aircraft":[{"flight":{"liftAOACurve":{"keys":[[1,0],[0,1]]}}}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for unsorted curve keys")
	}
}

func TestAircraftPresets(t *testing.T) {
	names := ListAircraftPresets()
	expected := []string{"jet", "stunt", "trainer"}
	if len(names) != len(expected) {
		t.Fatalf("Expected presets %v, got %v", expected, names)
	}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("preset %d = %q, want %q", i, names[i], name)
		}

		preset := GetAircraftPreset(name)
		if preset == nil {
			t.Fatalf("GetAircraftPreset(%q) returned nil", name)
		}
		if err := preset.Validate(); err != nil {
			t.Errorf("preset %q is invalid: %v", name, err)
		}
	}

	if GetAircraftPreset("zeppelin") != nil {
		t.Error("Expected nil for unknown preset")
	}
	if GetAircraftPreset("jet").Flight.LiftAOACurve == GetAircraftPreset("jet").Flight.LiftAOACurve {
		t.Error("presets share curves between calls")
	}
}

func TestAircraftPresets_LiftCurveShape(t *testing.T) {
	jet := GetAircraftPreset("jet")
	c := jet.Flight.LiftAOACurve

	if c.Evaluate(0) != 0 {
		t.Errorf("lift at zero AoA = %v, want 0", c.Evaluate(0))
	}
	if c.Evaluate(15) != 1.4 || c.Evaluate(-15) != -1.4 {
		t.Errorf("lift at stall = %v / %v, want ±1.4", c.Evaluate(15), c.Evaluate(-15))
	}
	if c.Evaluate(30) >= c.Evaluate(15) {
		t.Error("lift should fall off past the stall angle")
	}
}

// vecNear reports whether a and b are within tol of each other.
func vecNear(a, b mgl64.Vec3, tol float64) bool {
	return a.Sub(b).Len() <= tol
}
