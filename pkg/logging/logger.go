// Package logging provides structured JSON logging for the simulation server
// and its tools, with correlation IDs carried through context.
package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// LevelEnvVar selects the minimum log level
const LevelEnvVar = "DOGFIGHT_LOG_LEVEL"

// Attribute keys shared by every component that logs about an aircraft.
const (
	KeyAircraftID    = "aircraft_id"
	KeyAircraft      = "aircraft"
	KeyTick          = "tick"
	KeyCorrelationID = "correlation_id"
)

// Logger wraps slog.Logger with correlation ID support. Vector and float
// attributes that are not finite are written as strings so a diverging
// aircraft never breaks the JSON stream.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger on stdout at the level named by
// DOGFIGHT_LOG_LEVEL, INFO when unset or unrecognised.
func NewLogger() *Logger {
	level, _ := ParseLevel(os.Getenv(LevelEnvVar))
	return NewLoggerWithWriter(os.Stdout, level)
}

func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	})
	return &Logger{slog.New(handler)}
}

// With returns a logger that adds args to every entry
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// WithAircraft returns a logger that tags every entry with the aircraft
func (l *Logger) WithAircraft(id uint64, name string) *Logger {
	return l.With(KeyAircraftID, id, KeyAircraft, name)
}

// LogWithContext logs msg, adding the correlation ID carried by ctx if any.
func (l *Logger) LogWithContext(ctx context.Context, level slog.Level, msg string, args ...any) {
	if id := GetCorrelationID(ctx); id != "" {
		args = append(args, KeyCorrelationID, id)
	}
	l.Log(ctx, level, msg, args...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.LogWithContext(ctx, slog.LevelInfo, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.LogWithContext(ctx, slog.LevelWarn, msg, args...)
}

// Error logs msg at error level. A nil err is allowed.
func (l *Logger) Error(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	l.LogWithContext(ctx, slog.LevelError, msg, args...)
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.LogWithContext(ctx, slog.LevelDebug, msg, args...)
}

type correlationIDKey struct{}

// WithCorrelationID stores id in ctx, generating one when id is empty.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = GenerateCorrelationID()
	}
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// GetCorrelationID returns the ID stored by WithCorrelationID, or "".
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// GenerateCorrelationID returns 16 random hex characters
func GenerateCorrelationID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// ParseLevel maps a level name to a slog.Level. WARNING is accepted as an
// alias for WARN. Unknown names yield INFO and false.
func ParseLevel(name string) (slog.Level, bool) {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "WARNING") {
		return slog.LevelWarn, true
	}
	var level slog.Level
	if name == "" || level.UnmarshalText([]byte(name)) != nil {
		return slog.LevelInfo, false
	}
	return level, true
}

var redactedKeys = []string{"password", "token", "secret", "auth", "api_key", "apikey", "cookie", "session"}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, s := range redactedKeys {
		if strings.Contains(key, s) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}

	switch a.Value.Kind() {
	case slog.KindFloat64:
		if f := a.Value.Float64(); math.IsNaN(f) || math.IsInf(f, 0) {
			return slog.String(a.Key, fmt.Sprint(f))
		}
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case mgl64.Vec3:
			return slog.Any(a.Key, vectorValue(v[:]))
		case mgl64.Quat:
			return slog.Any(a.Key, vectorValue([]float64{v.W, v.X(), v.Y(), v.Z()}))
		}
	}
	return a
}

// vectorValue returns v as a float slice, or as its printed form when any
// component is NaN or infinite.
func vectorValue(v []float64) any {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Sprint(v)
		}
	}
	return append([]float64(nil), v...)
}
