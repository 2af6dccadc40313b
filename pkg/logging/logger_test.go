package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log entry is not JSON: %v\n%s", err, buf.String())
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  slog.Level
		known bool
	}{
		{"DEBUG", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"Warn", slog.LevelWarn, true},
		{"WARNING", slog.LevelWarn, true},
		{" ERROR ", slog.LevelError, true},
		{"WARN+2", slog.LevelWarn + 2, true},
		{"", slog.LevelInfo, false},
		{"LOUD", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, known := ParseLevel(tt.in)
			if got != tt.want || known != tt.known {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, known, tt.want, tt.known)
			}
		})
	}
}

func TestNewLogger_UsesEnvLevel(t *testing.T) {
	t.Setenv(LevelEnvVar, "ERROR")
	logger := NewLogger()
	if logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be disabled at ERROR")
	}
	if !logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at ERROR")
	}
}

func TestCorrelationID(t *testing.T) {
	a, b := GenerateCorrelationID(), GenerateCorrelationID()
	if len(a) != 16 || a == b {
		t.Errorf("generated IDs %q and %q should be distinct 16-char strings", a, b)
	}

	if got := GetCorrelationID(context.Background()); got != "" {
		t.Errorf("empty context yielded %q", got)
	}
	if got := GetCorrelationID(WithCorrelationID(context.Background(), "req-1")); got != "req-1" {
		t.Errorf("GetCorrelationID = %q, want req-1", got)
	}
	if got := GetCorrelationID(WithCorrelationID(context.Background(), "")); len(got) != 16 {
		t.Errorf("empty ID should be replaced by a generated one, got %q", got)
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, slog.LevelDebug)
	ctx := WithCorrelationID(context.Background(), "req-7")

	tests := []struct {
		level string
		log   func()
	}{
		{"DEBUG", func() { logger.Debug(ctx, "msg") }},
		{"INFO", func() { logger.Info(ctx, "msg") }},
		{"WARN", func() { logger.Warn(ctx, "msg") }},
		{"ERROR", func() { logger.Error(ctx, "msg", errors.New("stall")) }},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf.Reset()
			tt.log()
			entry := decode(t, &buf)
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %s", entry["level"], tt.level)
			}
			if entry[KeyCorrelationID] != "req-7" {
				t.Errorf("correlation_id = %v", entry[KeyCorrelationID])
			}
		})
	}

	buf.Reset()
	logger.Error(context.Background(), "msg", errors.New("stall"))
	entry := decode(t, &buf)
	if entry["error"] != "stall" {
		t.Errorf("error = %v, want stall", entry["error"])
	}
	if _, ok := entry[KeyCorrelationID]; ok {
		t.Error("correlation_id written without one in context")
	}

	buf.Reset()
	logger.Error(context.Background(), "msg", nil)
	if _, ok := decode(t, &buf)["error"]; ok {
		t.Error("nil error should not add an error attribute")
	}
}

func TestWithAircraft(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter(&buf, slog.LevelInfo).WithAircraft(4, "viper").Info(context.Background(), "spawned", KeyTick, 10)

	entry := decode(t, &buf)
	if entry[KeyAircraftID] != float64(4) || entry[KeyAircraft] != "viper" || entry[KeyTick] != float64(10) {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestReplaceAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, slog.LevelInfo)

	logger.Info(context.Background(), "state",
		"auth_token", "abc",
		"Session", "xyz",
		"speed", math.NaN(),
		"altitude", math.Inf(1),
		"mass", 1200.0,
		"velocity", mgl64.Vec3{1, 2, 3},
		"force", mgl64.Vec3{0, math.Inf(-1), 0},
		"orientation", mgl64.QuatIdent(),
	)
	entry := decode(t, &buf)

	tests := []struct {
		key  string
		want interface{}
	}{
		{"auth_token", "[REDACTED]"},
		{"Session", "[REDACTED]"},
		{"speed", "NaN"},
		{"altitude", "+Inf"},
		{"mass", 1200.0},
		{"force", "[0 -Inf 0]"},
	}
	for _, tt := range tests {
		if entry[tt.key] != tt.want {
			t.Errorf("%s = %v, want %v", tt.key, entry[tt.key], tt.want)
		}
	}

	vel, ok := entry["velocity"].([]interface{})
	if !ok || len(vel) != 3 || vel[2] != 3.0 {
		t.Errorf("velocity = %v, want [1 2 3]", entry["velocity"])
	}
	q, ok := entry["orientation"].([]interface{})
	if !ok || len(q) != 4 || q[0] != 1.0 {
		t.Errorf("orientation = %v, want [1 0 0 0]", entry["orientation"])
	}
}

func TestWith_BelowLevelDropped(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, slog.LevelWarn).With("component", "engine")

	logger.Info(context.Background(), "dropped")
	if buf.Len() != 0 {
		t.Fatalf("info entry written below warn level: %s", buf.String())
	}
	logger.Warn(context.Background(), "tick fault")
	if decode(t, &buf)["component"] != "engine" {
		t.Error("component attribute missing")
	}
}
