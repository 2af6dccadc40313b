// Package validation checks and sanitizes pilot input arriving over the
// network or HTTP before it reaches the simulation.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-gl/mathgl/mgl64"
)

// Message size and content limits
const (
	MaxMessageSize     = math.MaxUint16 // largest payload a frame length can carry
	MaxAircraftNameLen = 32
	// MaxAngularRate bounds commanded steering rates in rad/s
	MaxAngularRate = 4 * math.Pi
)

// Aircraft names become metric labels and URL segments
var validAircraftName = regexp.MustCompile(`^[a-zA-Z0-9\-_.]+$`)

// MessageValidator checks raw control messages and rate limits each client
type MessageValidator struct {
	rateLimiter *RateLimiter
	maxPerSec   int
}

// NewMessageValidator creates a validator allowing maxPerSecond messages per
// client. A non-positive limit disables rate limiting.
func NewMessageValidator(maxPerSecond int) *MessageValidator {
	v := &MessageValidator{maxPerSec: maxPerSecond}
	if maxPerSecond > 0 {
		v.rateLimiter = NewRateLimiter(maxPerSecond, time.Second)
	}
	return v
}

// Close releases resources used by the message validator
func (v *MessageValidator) Close() {
	if v.rateLimiter != nil {
		v.rateLimiter.Close()
	}
}

// Forget drops the rate limiting state of a disconnected client
func (v *MessageValidator) Forget(clientID string) {
	if v.rateLimiter != nil {
		v.rateLimiter.Forget(clientID)
	}
}

// ValidateMessage validates a raw message against size and format constraints
func (v *MessageValidator) ValidateMessage(data []byte, clientID string) error {
	if len(data) > MaxMessageSize {
		return fmt.Errorf("message too large: %d bytes (max %d)", len(data), MaxMessageSize)
	}

	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON format")
	}

	if v.rateLimiter != nil && !v.rateLimiter.Allow(clientID) {
		return fmt.Errorf("rate limit exceeded: max %d messages per second", v.maxPerSec)
	}

	return nil
}

// ValidateAircraftName validates an aircraft name and returns it trimmed
func ValidateAircraftName(name string) (string, error) {
	if !utf8.ValidString(name) {
		return "", fmt.Errorf("aircraft name contains invalid UTF-8 characters")
	}

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("aircraft name cannot be empty")
	}
	if len(trimmed) > MaxAircraftNameLen {
		return "", fmt.Errorf("aircraft name too long: %d characters (max %d)", len(trimmed), MaxAircraftNameLen)
	}
	if !validAircraftName.MatchString(trimmed) {
		return "", fmt.Errorf("aircraft name %q contains invalid characters (only alphanumeric, hyphens, underscores and dots allowed)", trimmed)
	}

	return trimmed, nil
}

// ValidateThrottleInput rejects non-finite input and clamps the rest to [-1, 1]
func ValidateThrottleInput(input float64) (float64, error) {
	if math.IsNaN(input) || math.IsInf(input, 0) {
		return 0, fmt.Errorf("throttle input must be finite, got %v", input)
	}
	return mgl64.Clamp(input, -1, 1), nil
}

// ValidateAngularVelocity rejects non-finite or excessive steering rates
func ValidateAngularVelocity(w mgl64.Vec3) error {
	for i, c := range w {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("angular velocity component %d must be finite, got %v", i, c)
		}
	}
	if rate := w.Len(); rate > MaxAngularRate {
		return fmt.Errorf("angular velocity too large: %.2f rad/s (max %.2f)", rate, MaxAngularRate)
	}
	return nil
}

// ValidateAircraftID rejects the zero id, which no aircraft carries
func ValidateAircraftID(id uint64) error {
	if id == 0 {
		return fmt.Errorf("invalid aircraft id: 0")
	}
	return nil
}
