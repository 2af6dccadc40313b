// pkg/resource/health_test.go
package resource

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"
)

func TestHealthCheck_Name(t *testing.T) {
	m := testManager(10, 5*time.Second)
	defer m.Shutdown(context.Background())

	if name := NewHealthCheck(m).Name(); name != "resource" {
		t.Errorf("Expected name 'resource', got %s", name)
	}
}

func TestHealthCheck_Healthy(t *testing.T) {
	m := testManager(100, 5*time.Second)
	defer m.Shutdown(context.Background())

	m.CheckMemoryUsage()

	if err := NewHealthCheck(m).Check(context.Background()); err != nil {
		t.Errorf("Expected healthy check to pass, got error: %v", err)
	}
}

func TestHealthCheck_MemoryUnhealthy(t *testing.T) {
	m := testManager(100, 5*time.Second)
	defer m.Shutdown(context.Background())
	m.maxMemoryMB = 1

	data := make([]byte, 8*1024*1024)
	defer runtime.KeepAlive(data)
	m.CheckMemoryUsage()

	if err := NewHealthCheck(m).Check(context.Background()); err == nil {
		t.Error("Expected health check to fail due to memory limit")
	}
}

func TestHealthCheck_WorkerThreshold(t *testing.T) {
	m := testManager(5, 5*time.Second)
	defer m.Shutdown(context.Background())

	release := make(chan struct{})
	defer close(release)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		if err := m.Go(name, func(ctx context.Context) error {
			<-release
			return nil
		}); err != nil {
			t.Fatalf("Go(%s) failed: %v", name, err)
		}
	}

	if err := NewHealthCheck(m).Check(context.Background()); err == nil {
		t.Error("Expected health check to fail due to worker threshold")
	}
}

func TestHealthCheck_FailedWorker(t *testing.T) {
	m := testManager(10, 5*time.Second)
	defer m.Shutdown(context.Background())

	if err := m.Go("api", func(ctx context.Context) error { return errors.New("bind failed") }); err != nil {
		t.Fatalf("Go failed: %v", err)
	}
	<-m.Failures()

	if err := NewHealthCheck(m).Check(context.Background()); err == nil {
		t.Error("Expected health check to fail after a worker failure")
	}
}
