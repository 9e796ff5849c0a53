package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jobsync/internal/services"
	"github.com/desertthunder/jobsync/internal/shared"
	"github.com/desertthunder/jobsync/internal/telemetry"
)

// HealthMonitor checks the backend health endpoint on an interval. It has no effect on job state.
type HealthMonitor struct {
	jobs     services.JobsClient
	interval time.Duration
	logger   *log.Logger

	mu        sync.Mutex
	connected bool
	checked   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewHealthMonitor(jobs services.JobsClient, interval time.Duration, logger *log.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &HealthMonitor{
		jobs:     jobs,
		interval: interval,
		logger:   shared.WithLogger(logger, "component", "health"),
	}
}

// Start runs one check immediately and then one per interval until ctx is done or Close is called.
func (h *HealthMonitor) Start(ctx context.Context) {
	h.mu.Lock()
	if h.cancel != nil {
		h.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		h.Check(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Check(ctx)
			}
		}
	}()
}

// Check calls the health endpoint once and records the result.
func (h *HealthMonitor) Check(ctx context.Context) bool {
	status, err := h.jobs.Health(ctx)
	ok := err == nil

	h.mu.Lock()
	changed := !h.checked || h.connected != ok
	h.connected = ok
	h.checked = true
	h.mu.Unlock()

	if ok {
		telemetry.BackendHealthy.Set(1)
	} else {
		telemetry.BackendHealthy.Set(0)
	}

	if changed {
		if ok {
			h.logger.Info("backend reachable", "status", status)
		} else {
			h.logger.Warn("backend unreachable", "error", err)
		}
	}
	return ok
}

// Connected returns the result of the latest check, false before the first one.
func (h *HealthMonitor) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

func (h *HealthMonitor) Close() {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	h.wg.Wait()
}
