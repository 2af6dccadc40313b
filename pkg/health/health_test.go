package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func pass(name string) CheckFunc {
	return Func(name, func(context.Context) error { return nil })
}

func fail(name, msg string) CheckFunc {
	return Func(name, func(context.Context) error { return errors.New(msg) })
}

func TestHealthChecker_Registry(t *testing.T) {
	hc := NewHealthChecker()
	hc.AddCheck(pass("simulation"))
	hc.AddCheck(pass("network"))
	hc.AddCheck(fail("network", "replaced"))

	if got, want := hc.Names(), []string{"network", "simulation"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if msg := hc.CheckHealth(context.Background()).Checks["network"].Message; msg != "replaced" {
		t.Errorf("re-adding a name should replace the check, message = %q", msg)
	}

	hc.RemoveCheck("network")
	hc.RemoveCheck("absent")
	if got := hc.Names(); !reflect.DeepEqual(got, []string{"simulation"}) {
		t.Errorf("Names() after remove = %v", got)
	}
}

func TestHealthChecker_CheckHealth(t *testing.T) {
	tests := []struct {
		name   string
		checks []HealthCheck
		want   string
	}{
		{"no checks", nil, StatusHealthy},
		{"all pass", []HealthCheck{pass("a"), pass("b")}, StatusHealthy},
		{"one fails", []HealthCheck{pass("a"), fail("b", "down")}, StatusUnhealthy},
		{"all fail", []HealthCheck{fail("a", "x"), fail("b", "y")}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			for _, c := range tt.checks {
				hc.AddCheck(c)
			}
			got := hc.CheckHealth(context.Background())
			if got.Status != tt.want {
				t.Errorf("Status = %s, want %s", got.Status, tt.want)
			}
			if len(got.Checks) != len(tt.checks) {
				t.Errorf("reported %d checks, want %d", len(got.Checks), len(tt.checks))
			}
			for name, c := range got.Checks {
				if (c.Status == StatusUnhealthy) != (c.Message != "") {
					t.Errorf("%s: status %s with message %q", name, c.Status, c.Message)
				}
			}
		})
	}
}

func TestHealthChecker_SlowCheckTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	hc := NewHealthChecker()
	hc.AddCheck(pass("fast"))
	hc.AddCheck(Func("stuck", func(context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	got := hc.CheckHealth(ctx)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("CheckHealth blocked for %s", elapsed)
	}
	if got.Checks["stuck"].Status != StatusUnhealthy || got.Checks["fast"].Status != StatusHealthy {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestHealthChecker_Handlers(t *testing.T) {
	tests := []struct {
		name    string
		checks  []HealthCheck
		handler func(*HealthChecker) http.HandlerFunc
		code    int
		status  string
	}{
		{"liveness ignores checks", []HealthCheck{fail("a", "down")}, func(h *HealthChecker) http.HandlerFunc { return h.LivenessHandler }, http.StatusOK, "alive"},
		{"ready", []HealthCheck{pass("a")}, func(h *HealthChecker) http.HandlerFunc { return h.ReadinessHandler }, http.StatusOK, StatusHealthy},
		{"not ready", []HealthCheck{pass("a"), fail("b", "down")}, func(h *HealthChecker) http.HandlerFunc { return h.ReadinessHandler }, http.StatusServiceUnavailable, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			for _, c := range tt.checks {
				hc.AddCheck(c)
			}
			w := httptest.NewRecorder()
			tt.handler(hc)(w, httptest.NewRequest(http.MethodGet, "/", nil))

			if w.Code != tt.code {
				t.Errorf("code = %d, want %d", w.Code, tt.code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body struct{ Status string }
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.status {
				t.Errorf("status = %q, want %q", body.Status, tt.status)
			}
		})
	}
}

func TestSimulationHealthCheck_Running(t *testing.T) {
	for _, running := range []bool{true, false} {
		check := NewSimulationHealthCheck(func() bool { return running }, nil, time.Second)
		if err := check.Check(context.Background()); (err != nil) == running {
			t.Errorf("running=%v: Check() = %v", running, err)
		}
	}
	if name := NewSimulationHealthCheck(nil, nil, 0).Name(); name != "simulation" {
		t.Errorf("Name() = %q", name)
	}
}

func TestSimulationHealthCheck_Stall(t *testing.T) {
	tick := uint64(10)
	now := time.Unix(1000, 0)

	check := NewSimulationHealthCheck(
		func() bool { return true },
		func() uint64 { return tick },
		time.Second,
	)
	check.now = func() time.Time { return now }
	ctx := context.Background()

	steps := []struct {
		advance     time.Duration
		ticks       uint64
		expectError bool
	}{
		{0, 0, false},                      // first observation
		{500 * time.Millisecond, 0, false}, // within stall window
		{time.Second, 0, true},             // 1.5s without a tick
		{100 * time.Millisecond, 5, false}, // ticking again
		{900 * time.Millisecond, 0, false}, // window restarts at the new tick
		{200 * time.Millisecond, 0, true},
	}

	for i, step := range steps {
		now = now.Add(step.advance)
		tick += step.ticks

		err := check.Check(ctx)
		if step.expectError != (err != nil) {
			t.Errorf("step %d: Check() = %v, expect error %v", i, err, step.expectError)
		}
	}
}

func TestNetworkHealthCheck(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"127.0.0.1:4000", false},
		{"", true},
	}
	for _, tt := range tests {
		check := NewNetworkHealthCheck(func() string { return tt.addr })
		if check.Name() != "network" {
			t.Errorf("Name() = %q", check.Name())
		}
		if err := check.Check(context.Background()); (err != nil) != tt.wantErr {
			t.Errorf("addr %q: Check() = %v", tt.addr, err)
		}
	}
}

func TestMemoryHealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		limit   int64
		usage   int64
		wantErr bool
	}{
		{"under limit", 512, 100, false},
		{"at limit", 512, 512, false},
		{"over limit", 512, 513, true},
		{"no limit", 0, 1 << 20, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := NewMemoryHealthCheck(tt.limit, func() int64 { return tt.usage })
			if check.Name() != "memory" {
				t.Errorf("Name() = %q", check.Name())
			}
			if err := check.Check(context.Background()); (err != nil) != tt.wantErr {
				t.Errorf("Check() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
