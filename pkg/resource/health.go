// pkg/resource/health.go
package resource

import (
	"context"
	"fmt"
)

// HealthCheck reports the manager's state to a health.HealthChecker
type HealthCheck struct {
	manager *Manager
}

// NewHealthCheck creates a health check for manager
func NewHealthCheck(manager *Manager) *HealthCheck {
	return &HealthCheck{manager: manager}
}

// Name returns the name of this health check.
func (r *HealthCheck) Name() string {
	return "resource"
}

// Check fails when memory exceeds its limit, when workers use more than
// 80% of the allowed slots or when any worker has failed.
func (r *HealthCheck) Check(ctx context.Context) error {
	stats := r.manager.Stats()

	if stats.MemoryUsageMB > stats.MaxMemoryMB {
		return fmt.Errorf("memory usage %dMB exceeds limit %dMB",
			stats.MemoryUsageMB, stats.MaxMemoryMB)
	}

	threshold := int64(float64(stats.MaxWorkers) * 0.8)
	if stats.ActiveWorkers > threshold {
		return fmt.Errorf("worker count %d exceeds 80%% threshold (%d/%d)",
			stats.ActiveWorkers, threshold, stats.MaxWorkers)
	}

	for _, w := range r.manager.Workers() {
		if w.Err != "" {
			return fmt.Errorf("worker %s failed: %s", w.Name, w.Err)
		}
	}
	return nil
}
