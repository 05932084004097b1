package pipeline

import (
	"sync"

	"go.uber.org/zap"
)

// RunStatus is the lifecycle state of a project's run.
type RunStatus string

const (
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
	StatusCancelled  RunStatus = "cancelled"
)

// Registry tracks each project's run status and cancellation flag. Reads are
// frequent (the orchestrator polls before every stage and trade) and writes
// rare, so a single RWMutex covers both maps.
type Registry struct {
	mu       sync.RWMutex
	statuses map[string]RunStatus
	cancels  map[string]bool
	logger   *zap.Logger
}

// NewRegistry creates an empty run registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		statuses: make(map[string]RunStatus),
		cancels:  make(map[string]bool),
		logger:   logger,
	}
}

// BeginRun marks the project processing and clears any stale cancellation.
// A project already marked processing is a stale leftover from an
// interrupted run; it is forcibly reset. Returns whether a stale run was
// reset.
func (r *Registry) BeginRun(projectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	stale := r.statuses[projectID] == StatusProcessing
	if stale {
		r.logger.Warn("resetting stale processing run", zap.String("project_id", projectID))
	}
	r.statuses[projectID] = StatusProcessing
	delete(r.cancels, projectID)
	return stale
}

// EndRun records the terminal status and clears the cancellation flag.
func (r *Registry) EndRun(projectID string, status RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[projectID] = status
	delete(r.cancels, projectID)
}

// Status returns the project's last known run status.
func (r *Registry) Status(projectID string) (RunStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status, ok := r.statuses[projectID]
	return status, ok
}

// RequestCancel flags a processing run for cancellation. Returns false when
// the project has no active run to cancel.
func (r *Registry) RequestCancel(projectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.statuses[projectID] != StatusProcessing {
		return false
	}
	r.cancels[projectID] = true
	r.logger.Info("cancellation requested", zap.String("project_id", projectID))
	return true
}

// IsCancelled reports whether cancellation was requested for the project.
func (r *Registry) IsCancelled(projectID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cancels[projectID]
}
