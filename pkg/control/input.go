// Package control turns pilot key presses into throttle and steering
// commands for a remote aircraft, and prints a text HUD of its telemetry.
package control

import (
	"context"
	"math"
	"sync"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-dogfight/pkg/logging"
)

// Button names registered by RegisterBindings
const (
	ButtonThrottleUp   = "throttleUp"
	ButtonThrottleDown = "throttleDown"
	ButtonPitchUp      = "pitchUp"
	ButtonPitchDown    = "pitchDown"
	ButtonYawLeft      = "yawLeft"
	ButtonYawRight     = "yawRight"
	ButtonRollLeft     = "rollLeft"
	ButtonRollRight    = "rollRight"
	ButtonCutThrottle  = "cutThrottle"
)

// Sender delivers commands to the simulation. network.PilotClient
// implements it.
type Sender interface {
	SetThrottle(input float64) error
	SetAngularVelocity(w mgl64.Vec3) error
}

// Buttons reports which named buttons are held
type Buttons interface {
	Down(name string) bool
}

// EngoButtons reads the engo input manager
type EngoButtons struct{}

// Down implements Buttons
func (EngoButtons) Down(name string) bool {
	return engo.Input.Button(name).Down()
}

// NoButtons never reports a press. Headless pilots use it.
type NoButtons struct{}

// Down implements Buttons
func (NoButtons) Down(string) bool { return false }

// RegisterBindings maps the keyboard to the control buttons
func RegisterBindings() {
	engo.Input.RegisterButton(ButtonThrottleUp, engo.KeyR)
	engo.Input.RegisterButton(ButtonThrottleDown, engo.KeyF)
	engo.Input.RegisterButton(ButtonCutThrottle, engo.KeyX)
	engo.Input.RegisterButton(ButtonPitchUp, engo.KeyS, engo.KeyArrowDown)
	engo.Input.RegisterButton(ButtonPitchDown, engo.KeyW, engo.KeyArrowUp)
	engo.Input.RegisterButton(ButtonYawLeft, engo.KeyQ)
	engo.Input.RegisterButton(ButtonYawRight, engo.KeyE)
	engo.Input.RegisterButton(ButtonRollLeft, engo.KeyA, engo.KeyArrowLeft)
	engo.Input.RegisterButton(ButtonRollRight, engo.KeyD, engo.KeyArrowRight)
}

// Rates are the command rates while a button is held. Throttle is in
// input units per second, the rest in rad/s.
type Rates struct {
	Throttle float64
	Pitch    float64
	Yaw      float64
	Roll     float64
}

// DefaultRates suit the bundled aircraft presets
var DefaultRates = Rates{Throttle: 0.5, Pitch: 1.2, Yaw: 0.5, Roll: 2.5}

// InputSystem is an ecs system that samples buttons every frame and sends
// commands at most updateRate times per second. Steering is commanded in
// body axes: positive pitch raises the nose, positive yaw turns right and
// positive roll banks right. It is rotated to world frame using the last
// orientation reported by telemetry.
type InputSystem struct {
	sender   Sender
	buttons  Buttons
	rates    Rates
	interval float64
	logger   *logging.Logger

	mu          sync.Mutex
	orientation mgl64.Quat

	throttle     float64
	angular      mgl64.Vec3
	elapsed      float64
	sent         bool
	sentThrottle float64
	sentAngular  mgl64.Vec3
}

// NewInputSystem creates an input system sending through sender.
// updateRate is the maximum number of commands per second.
func NewInputSystem(sender Sender, buttons Buttons, rates Rates, updateRate int, logger *logging.Logger) *InputSystem {
	if logger == nil {
		logger = logging.NewLogger()
	}
	if updateRate <= 0 {
		updateRate = 20
	}
	return &InputSystem{
		sender:      sender,
		buttons:     buttons,
		rates:       rates,
		interval:    1 / float64(updateRate),
		logger:      logger.With("component", "input"),
		orientation: mgl64.QuatIdent(),
	}
}

// Priority runs input ahead of the HUD
func (s *InputSystem) Priority() int { return 10 }

// Remove implements ecs.System
func (s *InputSystem) Remove(ecs.BasicEntity) {}

// SetOrientation records the latest orientation of the controlled aircraft
func (s *InputSystem) SetOrientation(q mgl64.Quat) {
	s.mu.Lock()
	s.orientation = q.Normalize()
	s.mu.Unlock()
}

// SetThrottle sets the commanded throttle, clamped to [-1, 1]
func (s *InputSystem) SetThrottle(input float64) {
	s.throttle = clampUnit(input)
}

// Throttle returns the commanded throttle
func (s *InputSystem) Throttle() float64 {
	return s.throttle
}

// AngularVelocity returns the last commanded world frame steering rate
func (s *InputSystem) AngularVelocity() mgl64.Vec3 {
	return s.angular
}

// Update implements ecs.System
func (s *InputSystem) Update(dt float32) {
	step := float64(dt)

	switch {
	case s.buttons.Down(ButtonCutThrottle):
		s.throttle = 0
	case s.buttons.Down(ButtonThrottleUp):
		s.throttle = clampUnit(s.throttle + s.rates.Throttle*step)
	case s.buttons.Down(ButtonThrottleDown):
		s.throttle = clampUnit(s.throttle - s.rates.Throttle*step)
	}

	pitch := s.axis(ButtonPitchUp, ButtonPitchDown) * s.rates.Pitch
	yaw := s.axis(ButtonYawRight, ButtonYawLeft) * s.rates.Yaw
	roll := s.axis(ButtonRollRight, ButtonRollLeft) * s.rates.Roll

	// body axes: +x right, +y up, +z forward
	body := mgl64.Vec3{-pitch, yaw, -roll}

	s.mu.Lock()
	q := s.orientation
	s.mu.Unlock()
	s.angular = q.Rotate(body)

	s.elapsed += step
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0
	s.send()
}

func (s *InputSystem) axis(positive, negative string) float64 {
	var v float64
	if s.buttons.Down(positive) {
		v++
	}
	if s.buttons.Down(negative) {
		v--
	}
	return v
}

// send transmits whatever changed since the last successful send
func (s *InputSystem) send() {
	ctx := context.Background()

	if !s.sent || s.throttle != s.sentThrottle {
		if err := s.sender.SetThrottle(s.throttle); err != nil {
			s.logger.Debug(ctx, "throttle not sent", "error", err.Error())
			return
		}
		s.sentThrottle = s.throttle
	}

	if !s.sent || !s.angular.ApproxEqual(s.sentAngular) {
		if err := s.sender.SetAngularVelocity(s.angular); err != nil {
			s.logger.Debug(ctx, "steering not sent", "error", err.Error())
			return
		}
		s.sentAngular = s.angular
	}
	s.sent = true
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}
