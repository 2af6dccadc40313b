// Package health provides liveness and readiness probes for the simulation
// server.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthCheck is one probe of a server component.
type HealthCheck interface {
	Name() string
	// Check returns nil when the component is healthy
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to the HealthCheck interface.
type CheckFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// Func returns a HealthCheck called name that runs fn
func Func(name string, fn func(ctx context.Context) error) CheckFunc {
	return CheckFunc{name: name, fn: fn}
}

func (c CheckFunc) Name() string                    { return c.name }
func (c CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// HealthStatus is the aggregate served by the readiness probe.
type HealthStatus struct {
	Status string                     `json:"status"`
	Checks map[string]ComponentHealth `json:"checks"`
}

type ComponentHealth struct {
	Status    string  `json:"status"`
	Message   string  `json:"message,omitempty"`
	LatencyMS float64 `json:"latencyMs"`
}

// HealthChecker runs a named set of checks. Checks run concurrently and
// share the caller's deadline.
type HealthChecker struct {
	checks map[string]HealthCheck
	mu     sync.RWMutex
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checks: make(map[string]HealthCheck)}
}

// AddCheck registers check, replacing any check with the same name.
func (hc *HealthChecker) AddCheck(check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[check.Name()] = check
}

func (hc *HealthChecker) RemoveCheck(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	delete(hc.checks, name)
}

// Names returns the registered check names in order
func (hc *HealthChecker) Names() []string {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckHealth runs every check. The result is healthy only when all pass; a
// check still running when ctx ends is reported unhealthy.
func (hc *HealthChecker) CheckHealth(ctx context.Context) HealthStatus {
	hc.mu.RLock()
	checks := make([]HealthCheck, 0, len(hc.checks))
	for _, c := range hc.checks {
		checks = append(checks, c)
	}
	hc.mu.RUnlock()

	results := make([]ComponentHealth, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c HealthCheck) {
			defer wg.Done()
			results[i] = runCheck(ctx, c)
		}(i, c)
	}
	wg.Wait()

	status := HealthStatus{Status: StatusHealthy, Checks: make(map[string]ComponentHealth, len(checks))}
	for i, c := range checks {
		if results[i].Status != StatusHealthy {
			status.Status = StatusUnhealthy
		}
		status.Checks[c.Name()] = results[i]
	}
	return status
}

func runCheck(ctx context.Context, c HealthCheck) ComponentHealth {
	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- c.Check(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("check did not finish: %w", ctx.Err())
	}

	result := ComponentHealth{Status: StatusHealthy, LatencyMS: float64(time.Since(start).Microseconds()) / 1000}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	return result
}

// LivenessHandler answers 200 whenever the process can serve HTTP.
func (hc *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessHandler runs all checks with a five second budget and answers
// 200 when healthy, 503 otherwise.
func (hc *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := hc.CheckHealth(ctx)
	code := http.StatusOK
	if health.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	writeStatus(w, code, health)
}

func writeStatus(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// SimulationHealthCheck reports the simulation unhealthy when its tick loop
// is stopped, or when the tick counter has not advanced for stallAfter.
type SimulationHealthCheck struct {
	running    func() bool
	tick       func() uint64
	stallAfter time.Duration
	now        func() time.Time

	mu         sync.Mutex
	lastTick   uint64
	lastChange time.Time
}

// NewSimulationHealthCheck creates a health check for the simulation loop.
// A zero stallAfter disables stall detection.
func NewSimulationHealthCheck(running func() bool, tick func() uint64, stallAfter time.Duration) *SimulationHealthCheck {
	return &SimulationHealthCheck{
		running:    running,
		tick:       tick,
		stallAfter: stallAfter,
		now:        time.Now,
	}
}

func (s *SimulationHealthCheck) Name() string { return "simulation" }

func (s *SimulationHealthCheck) Check(ctx context.Context) error {
	if !s.running() {
		return fmt.Errorf("simulation is not running")
	}
	if s.stallAfter <= 0 || s.tick == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now, tick := s.now(), s.tick()
	if tick != s.lastTick || s.lastChange.IsZero() {
		s.lastTick = tick
		s.lastChange = now
		return nil
	}
	if stalled := now.Sub(s.lastChange); stalled > s.stallAfter {
		return fmt.Errorf("simulation stalled at tick %d for %s", tick, stalled.Round(time.Millisecond))
	}
	return nil
}

// NewNetworkHealthCheck fails while listenerAddr reports no address.
func NewNetworkHealthCheck(listenerAddr func() string) CheckFunc {
	return Func("network", func(context.Context) error {
		if listenerAddr() == "" {
			return fmt.Errorf("telemetry listener is not active")
		}
		return nil
	})
}

// NewMemoryHealthCheck fails when usage exceeds maxMemoryMB. A limit of
// zero or less disables the check.
func NewMemoryHealthCheck(maxMemoryMB int64, usageMB func() int64) CheckFunc {
	return Func("memory", func(context.Context) error {
		if maxMemoryMB <= 0 {
			return nil
		}
		if current := usageMB(); current > maxMemoryMB {
			return fmt.Errorf("memory usage %dMB exceeds limit %dMB", current, maxMemoryMB)
		}
		return nil
	})
}
