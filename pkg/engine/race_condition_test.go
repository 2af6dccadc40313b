// pkg/engine/race_condition_test.go
package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-dogfight/pkg/event"
)

// TestSimulationRaceCondition runs ticks while aircraft are spawned, removed
// and steered from other goroutines. Run with -race.
func TestSimulationRaceCondition(t *testing.T) {
	sim, _ := newTestSimulation(t, testConfig(testAircraft("viper"), testAircraft("cub")))
	sim.Start()

	// handlers read state while the simulation keeps ticking
	sim.EventBus.Subscribe(event.TickCompleted, func(event.Event) {
		_ = sim.Snapshots()
	})

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				sim.Step()
				time.Sleep(time.Millisecond)
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			id, err := sim.AddAircraft(testAircraft(fmt.Sprintf("temp-%d", i)))
			if err != nil {
				t.Errorf("Failed to add aircraft: %v", err)
				return
			}
			if err := sim.RemoveAircraft(id); err != nil {
				t.Errorf("Failed to remove aircraft: %v", err)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		id, _ := sim.FindAircraft("viper")
		for i := 0; i < 50; i++ {
			_ = sim.SetThrottleInput(id, float64(i%3)-1)
			_ = sim.SetAngularVelocity(id, mgl64.Vec3{0, 0.1, 0})
			_ = sim.GetSimState()
			time.Sleep(2 * time.Millisecond)
		}
	}()

	time.Sleep(100 * time.Millisecond)
	close(done)

	wg.Wait()
	sim.Stop()

	if sim.AircraftCount() != 2 {
		t.Errorf("expected 2 aircraft after churn, got %d", sim.AircraftCount())
	}
}

// TestSimulationConcurrentMapAccess steps while the aircraft map is modified
func TestSimulationConcurrentMapAccess(t *testing.T) {
	sim, _ := newTestSimulation(t, testConfig(testAircraft("viper")))

	var wg sync.WaitGroup
	errs := make(chan error, 10)

	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			sim.Step()
			time.Sleep(time.Microsecond)
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			id, err := sim.AddAircraft(testAircraft(fmt.Sprintf("temp-%d", i)))
			if err != nil {
				errs <- err
				return
			}
			if err := sim.RemoveAircraft(id); err != nil {
				errs <- err
				return
			}
			time.Sleep(time.Microsecond)
		}
	}()

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent access error: %v", err)
	}
	if sim.Tick() != 100 {
		t.Errorf("expected 100 ticks, got %d", sim.Tick())
	}
}
