package network

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/opd-ai/go-dogfight/pkg/config"
	"github.com/opd-ai/go-dogfight/pkg/logging"
)

func quietLogger() *logging.Logger {
	return logging.NewLoggerWithWriter(io.Discard, slog.LevelError)
}

func breakerConfig(maxFails uint32, timeout time.Duration) *config.EnvironmentConfig {
	return &config.EnvironmentConfig{
		CircuitBreakerMaxRequests:         2,
		CircuitBreakerInterval:            60 * time.Second,
		CircuitBreakerTimeout:             timeout,
		CircuitBreakerMaxConsecutiveFails: maxFails,
	}
}

// TestNetworkService_Execute tests basic circuit breaker execution
func TestNetworkService_Execute(t *testing.T) {
	ns := NewNetworkService(breakerConfig(5, 30*time.Second), quietLogger())
	ctx := context.Background()

	t.Run("successful operation", func(t *testing.T) {
		if err := ns.Execute(ctx, func() error { return nil }); err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
		if ns.GetState() != gobreaker.StateClosed {
			t.Errorf("Expected circuit breaker to be closed, got %v", ns.GetState())
		}
	})

	t.Run("failed operation", func(t *testing.T) {
		testError := errors.New("test error")
		err := ns.Execute(ctx, func() error { return testError })

		if !errors.Is(err, testError) {
			t.Errorf("Expected wrapped test error, got %v", err)
		}
		if ns.GetState() != gobreaker.StateClosed {
			t.Errorf("Expected circuit breaker to be closed after one failure, got %v", ns.GetState())
		}
	})
}

// TestNetworkService_CircuitBreakerTrip tests that the circuit breaker trips after consecutive failures
func TestNetworkService_CircuitBreakerTrip(t *testing.T) {
	ns := NewNetworkService(breakerConfig(3, time.Second), quietLogger())
	ctx := context.Background()
	testError := errors.New("test failure")

	for i := 0; i < 3; i++ {
		if err := ns.Execute(ctx, func() error { return testError }); err == nil {
			t.Errorf("Expected error on attempt %d, got nil", i+1)
		}
	}

	if ns.GetState() != gobreaker.StateOpen {
		t.Fatalf("Expected circuit breaker to be open after failures, got %v", ns.GetState())
	}

	err := ns.Execute(ctx, func() error {
		t.Error("Operation should not be called when circuit is open")
		return nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Expected ErrOpenState, got %v", err)
	}
}

// TestNetworkService_CircuitBreakerRecovery tests circuit breaker recovery
func TestNetworkService_CircuitBreakerRecovery(t *testing.T) {
	ns := NewNetworkService(breakerConfig(2, 100*time.Millisecond), quietLogger())
	ctx := context.Background()
	testError := errors.New("test failure")

	for i := 0; i < 2; i++ {
		_ = ns.Execute(ctx, func() error { return testError })
	}
	if ns.GetState() != gobreaker.StateOpen {
		t.Fatalf("Expected circuit breaker to be open, got %v", ns.GetState())
	}

	time.Sleep(150 * time.Millisecond)

	if err := ns.Execute(ctx, func() error { return nil }); err != nil {
		t.Errorf("Expected successful operation, got error: %v", err)
	}

	// one success out of MaxRequests keeps the breaker half-open
	state := ns.GetState()
	if state != gobreaker.StateClosed && state != gobreaker.StateHalfOpen {
		t.Errorf("Expected circuit breaker to be closed or half-open after recovery, got %v", state)
	}
}

// TestNetworkService_ExecuteWithRetry tests retry logic with growing delays
func TestNetworkService_ExecuteWithRetry(t *testing.T) {
	ns := NewNetworkService(breakerConfig(10, 30*time.Second), quietLogger())
	ns.baseDelay = 10 * time.Millisecond
	ctx := context.Background()

	t.Run("eventual success", func(t *testing.T) {
		attempt := 0
		err := ns.ExecuteWithRetry(ctx, func() error {
			attempt++
			if attempt < 3 {
				return errors.New("temporary failure")
			}
			return nil
		})
		if err != nil {
			t.Errorf("Expected eventual success, got error: %v", err)
		}
		if attempt != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempt)
		}
	})

	t.Run("all retries fail", func(t *testing.T) {
		attempt := 0
		testError := errors.New("persistent failure")
		err := ns.ExecuteWithRetry(ctx, func() error {
			attempt++
			return testError
		})

		if !errors.Is(err, testError) {
			t.Errorf("Expected wrapped persistent failure, got %v", err)
		}
		if attempt != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempt)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		slow := NewNetworkService(breakerConfig(10, 30*time.Second), quietLogger())
		slow.baseDelay = time.Minute

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		err := slow.ExecuteWithRetry(ctx, func() error { return errors.New("failure") })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})

	t.Run("open circuit stops retries", func(t *testing.T) {
		fragile := NewNetworkService(breakerConfig(1, 30*time.Second), quietLogger())
		fragile.baseDelay = time.Millisecond

		attempt := 0
		err := fragile.ExecuteWithRetry(ctx, func() error {
			attempt++
			return errors.New("refused")
		})
		if err == nil {
			t.Error("Expected error, got nil")
		}
		if attempt != 1 {
			t.Errorf("Expected a single attempt before the circuit opened, got %d", attempt)
		}
	})
}

// TestNetworkService_GetState tests state inspection methods
func TestNetworkService_GetState(t *testing.T) {
	ns := NewNetworkService(breakerConfig(5, 30*time.Second), nil)

	if ns.GetState() != gobreaker.StateClosed {
		t.Errorf("Expected initial state to be closed, got %v", ns.GetState())
	}

	counts := ns.GetCounts()
	if counts.Requests != 0 || counts.TotalSuccesses != 0 || counts.TotalFailures != 0 {
		t.Errorf("Expected empty counts initially, got %+v", counts)
	}
}
