package control

import (
	"context"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"

	"github.com/opd-ai/go-dogfight/pkg/engine"
	"github.com/opd-ai/go-dogfight/pkg/logging"
)

// StateSource delivers simulation states received from the server
type StateSource interface {
	States() <-chan *engine.SimState
}

// PilotScene is the engo scene flying one remote aircraft
type PilotScene struct {
	states   StateSource
	input    *InputSystem
	hud      *HUDSystem
	bindKeys bool
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPilotScene creates a scene driving input from states. bindKeys
// registers the keyboard bindings during Setup; headless pilots leave it off.
func NewPilotScene(states StateSource, input *InputSystem, hud *HUDSystem, bindKeys bool, logger *logging.Logger) *PilotScene {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &PilotScene{
		states:   states,
		input:    input,
		hud:      hud,
		bindKeys: bindKeys,
		logger:   logger.With("component", "pilot_scene"),
	}
}

// Type implements engo.Scene
func (scene *PilotScene) Type() string {
	return "PilotScene"
}

// Preload implements engo.Scene
func (scene *PilotScene) Preload() {}

// Setup implements engo.Scene
func (scene *PilotScene) Setup(u engo.Updater) {
	world, ok := u.(*ecs.World)
	if !ok {
		scene.logger.Warn(context.Background(), "unexpected updater, systems not added")
		return
	}

	if scene.bindKeys {
		RegisterBindings()
	}
	world.AddSystem(scene.input)
	world.AddSystem(scene.hud)

	scene.ctx, scene.cancel = context.WithCancel(context.Background())
	go scene.follow(scene.ctx)
}

// Exit stops following telemetry
func (scene *PilotScene) Exit() {
	if scene.cancel != nil {
		scene.cancel()
	}
}

// follow feeds each received state to the HUD and the orientation of the
// flown aircraft to the input system
func (scene *PilotScene) follow(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-scene.states.States():
			if !ok {
				return
			}
			if s, found := scene.hud.Observe(state); found {
				scene.input.SetOrientation(s.Quat())
			}
		}
	}
}
