// pkg/resource/manager.go
package resource

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/go-dogfight/pkg/config"
	"github.com/opd-ai/go-dogfight/pkg/logging"
)

var (
	// ErrShuttingDown is returned by Go once Shutdown has begun
	ErrShuttingDown = errors.New("resource manager is shutting down")

	// ErrWorkerLimit is returned when starting a worker would exceed MaxGoroutines
	ErrWorkerLimit = errors.New("worker limit exceeded")
)

// Manager supervises the long running workers of a server process: the
// simulation loop, the network listener and the HTTP endpoint. It bounds
// how many may run at once, recovers their panics, samples process memory
// and stops everything within the shutdown timeout.
type Manager struct {
	maxMemoryMB     int64
	maxWorkers      int64
	shutdownTimeout time.Duration
	checkInterval   time.Duration

	active   int64
	memoryMB int64

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
	failures chan error
	logger   *logging.Logger

	mu              sync.Mutex
	monitoring      bool
	stopping        bool
	workers         map[string]*WorkerStatus
	lastMemoryCheck time.Time
}

// WorkerStatus describes one supervised worker
type WorkerStatus struct {
	Name    string    `json:"name"`
	Running bool      `json:"running"`
	Started time.Time `json:"started"`
	Stopped time.Time `json:"stopped,omitempty"`
	Err     string    `json:"error,omitempty"`
}

// Stats is a point-in-time view of resource usage
type Stats struct {
	ActiveWorkers   int64     `json:"active_workers"`
	MaxWorkers      int64     `json:"max_workers"`
	MemoryUsageMB   int64     `json:"memory_usage_mb"`
	MaxMemoryMB     int64     `json:"max_memory_mb"`
	LastMemoryCheck time.Time `json:"last_memory_check"`
}

// NewManager creates a manager using the limits in env
func NewManager(env *config.EnvironmentConfig, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		maxMemoryMB:     env.MaxMemoryMB,
		maxWorkers:      int64(env.MaxGoroutines),
		shutdownTimeout: env.ShutdownTimeout,
		checkInterval:   env.ResourceCheckInterval,
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
		failures:        make(chan error, 1),
		logger:          logger.With("component", "resource_manager"),
		workers:         make(map[string]*WorkerStatus),
	}
}

// Start begins periodic memory sampling
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopping {
		return ErrShuttingDown
	}
	if m.monitoring {
		return fmt.Errorf("resource manager already running")
	}
	m.monitoring = true

	go m.monitoringLoop()

	m.logger.Info(m.ctx, "resource manager started",
		"max_memory_mb", m.maxMemoryMB,
		"max_workers", m.maxWorkers,
		"check_interval", m.checkInterval,
	)
	return nil
}

// Go starts fn as a named worker. fn receives a context cancelled by
// Shutdown. A worker that returns an error other than context.Canceled, or
// panics, is reported once on Failures.
func (m *Manager) Go(name string, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return ErrShuttingDown
	}
	if w, ok := m.workers[name]; ok && w.Running {
		m.mu.Unlock()
		return fmt.Errorf("worker %q already running", name)
	}
	if current := atomic.LoadInt64(&m.active); current >= m.maxWorkers {
		m.mu.Unlock()
		m.logger.Warn(m.ctx, "worker limit exceeded", "name", name, "current", current, "limit", m.maxWorkers)
		return fmt.Errorf("%w: %d/%d", ErrWorkerLimit, current, m.maxWorkers)
	}

	status := &WorkerStatus{Name: name, Running: true, Started: time.Now()}
	m.workers[name] = status
	atomic.AddInt64(&m.active, 1)
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(status, fn)
	return nil
}

func (m *Manager) run(status *WorkerStatus, fn func(ctx context.Context) error) {
	defer m.wg.Done()
	defer atomic.AddInt64(&m.active, -1)

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = fn(m.ctx)
	}()

	if errors.Is(err, context.Canceled) {
		err = nil
	}

	m.mu.Lock()
	status.Running = false
	status.Stopped = time.Now()
	if err != nil {
		status.Err = err.Error()
	}
	m.mu.Unlock()

	if err == nil {
		m.logger.Debug(m.ctx, "worker stopped", "name", status.Name)
		return
	}

	m.logger.Error(m.ctx, "worker failed", err, "name", status.Name)
	select {
	case m.failures <- fmt.Errorf("worker %s: %w", status.Name, err):
	default:
	}
}

// Failures delivers the first worker failure
func (m *Manager) Failures() <-chan error {
	return m.failures
}

// Workers returns the status of every worker started so far, sorted by name
func (m *Manager) Workers() []WorkerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]WorkerStatus, 0, len(m.workers))
	for _, w := range m.workers {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CheckMemoryUsage samples heap allocation and compares it to MaxMemoryMB
func (m *Manager) CheckMemoryUsage() error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	currentMB := int64(ms.Alloc / 1024 / 1024)
	atomic.StoreInt64(&m.memoryMB, currentMB)

	m.mu.Lock()
	m.lastMemoryCheck = time.Now()
	m.mu.Unlock()

	if currentMB > m.maxMemoryMB {
		return fmt.Errorf("memory usage %dMB exceeds limit %dMB", currentMB, m.maxMemoryMB)
	}
	return nil
}

// MemoryUsageMB returns the last sampled heap allocation
func (m *Manager) MemoryUsageMB() int64 {
	return atomic.LoadInt64(&m.memoryMB)
}

// ActiveWorkers returns the number of running workers
func (m *Manager) ActiveWorkers() int64 {
	return atomic.LoadInt64(&m.active)
}

// Stats returns current resource usage
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	lastCheck := m.lastMemoryCheck
	m.mu.Unlock()

	return Stats{
		ActiveWorkers:   m.ActiveWorkers(),
		MaxWorkers:      m.maxWorkers,
		MemoryUsageMB:   m.MemoryUsageMB(),
		MaxMemoryMB:     m.maxMemoryMB,
		LastMemoryCheck: lastCheck,
	}
}

// Shutdown cancels every worker and waits for them to return, bounded by
// both ctx and the configured shutdown timeout. Calling it again is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	m.stopping = true
	monitoring := m.monitoring
	m.mu.Unlock()

	m.logger.Info(ctx, "shutting down workers", "active", m.ActiveWorkers())
	m.cancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
	defer cancel()

	if monitoring {
		select {
		case <-m.done:
		case <-shutdownCtx.Done():
		}
	}

	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		m.logger.Info(ctx, "all workers stopped")
		return nil
	case <-shutdownCtx.Done():
		var running []string
		for _, w := range m.Workers() {
			if w.Running {
				running = append(running, w.Name)
			}
		}
		m.logger.Warn(ctx, "shutdown timeout exceeded", "running", running)
		return fmt.Errorf("shutdown timeout: %d workers still running %v", len(running), running)
	}
}

func (m *Manager) monitoringLoop() {
	defer close(m.done)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.CheckMemoryUsage(); err != nil {
				m.logger.Error(m.ctx, "memory limit exceeded", err,
					"current_mb", m.MemoryUsageMB(),
					"limit_mb", m.maxMemoryMB,
				)
			}
			m.logger.Debug(m.ctx, "resource usage check",
				"workers", m.ActiveWorkers(),
				"memory_mb", m.MemoryUsageMB(),
			)
		case <-m.ctx.Done():
			return
		}
	}
}
