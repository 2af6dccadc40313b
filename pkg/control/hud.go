package control

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/EngoEngine/ecs"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-dogfight/pkg/engine"
	"github.com/opd-ai/go-dogfight/pkg/telemetry"
)

// HUD prints the flight state of one aircraft as a fixed width text panel
type HUD struct {
	out   io.Writer
	width int
	g0    float64
	clear bool
}

// NewHUD creates a HUD writing to out. g0 is the gravity magnitude used to
// express load factor. When clear is set the terminal is cleared before
// each frame.
func NewHUD(out io.Writer, g0 float64, clear bool) *HUD {
	return &HUD{out: out, width: 44, g0: g0, clear: clear}
}

// Render writes one frame for s
func (h *HUD) Render(s telemetry.Snapshot) {
	var b strings.Builder
	if h.clear {
		b.WriteString("\033[H\033[2J")
	}

	border := "+" + strings.Repeat("-", h.width) + "+\n"
	b.WriteString(border)
	h.line(&b, "%s  tick %d  %s", s.Name, s.Tick, s.Phase)
	h.line(&b, "airspeed %8.1f m/s  alt %8.1f m", s.Airspeed(), s.Altitude())
	h.line(&b, "throttle %5.2f  cmd %+5.2f  %s", s.Throttle, s.ThrottleInput, throttleBar(s.Throttle, 10))
	h.line(&b, "aoa %+6.1f°  slip %+6.1f°  load %+5.2fg",
		mgl64.RadToDeg(s.AngleOfAttack), mgl64.RadToDeg(s.AngleOfAttackYaw), s.GLoad(h.g0))
	h.line(&b, "thrust %8.0f N  drag %8.0f N", s.Forces.Thrust.Len(), s.Forces.Drag.Len())
	h.line(&b, "lift   %8.0f N  side %8.0f N", s.Forces.Lift.Len(), s.Forces.YawLift.Len())
	b.WriteString(border)

	io.WriteString(h.out, b.String())
}

func (h *HUD) line(b *strings.Builder, format string, args ...interface{}) {
	text := []rune(fmt.Sprintf(format, args...))
	if len(text) > h.width {
		text = text[:h.width]
	}
	b.WriteString("|")
	b.WriteString(string(text))
	b.WriteString(strings.Repeat(" ", h.width-len(text)))
	b.WriteString("|\n")
}

// throttleBar draws a throttle level in [0, 1] as filled cells
func throttleBar(x float64, cells int) string {
	n := int(math.Round(mgl64.Clamp(x, 0, 1) * float64(cells)))
	return "[" + strings.Repeat("#", n) + strings.Repeat(".", cells-n) + "]"
}

// HUDSystem redraws the HUD at a fixed interval with the newest state of
// the followed aircraft
type HUDSystem struct {
	hud        *HUD
	aircraftID uint64
	interval   float64
	elapsed    float64

	mu     sync.Mutex
	latest *telemetry.Snapshot
	drawn  bool
}

// NewHUDSystem follows aircraftID, redrawing every interval seconds
func NewHUDSystem(hud *HUD, aircraftID uint64, interval float64) *HUDSystem {
	return &HUDSystem{hud: hud, aircraftID: aircraftID, interval: interval}
}

// Observe picks the followed aircraft out of a simulation state. It
// returns false when the aircraft is not present.
func (h *HUDSystem) Observe(state *engine.SimState) (telemetry.Snapshot, bool) {
	for i := range state.Aircraft {
		if state.Aircraft[i].ID == h.aircraftID {
			s := state.Aircraft[i]
			h.mu.Lock()
			h.latest = &s
			h.drawn = false
			h.mu.Unlock()
			return s, true
		}
	}
	return telemetry.Snapshot{}, false
}

// Priority runs the HUD after input
func (h *HUDSystem) Priority() int { return 0 }

// Remove implements ecs.System
func (h *HUDSystem) Remove(ecs.BasicEntity) {}

// Update implements ecs.System
func (h *HUDSystem) Update(dt float32) {
	h.elapsed += float64(dt)
	if h.elapsed < h.interval {
		return
	}
	h.elapsed = 0

	h.mu.Lock()
	latest, drawn := h.latest, h.drawn
	h.drawn = true
	h.mu.Unlock()

	if latest != nil && !drawn {
		h.hud.Render(*latest)
	}
}
