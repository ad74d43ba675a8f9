// Package dispatch routes post-approval side effects to registered handlers.
// The engine guarantees at-most-once invocation per process; handlers behind
// the registry should still be idempotent per process ID since a retried
// dispatch after an indeterminate failure may reach them again.
package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Handler performs the downstream side effect for one workflow type, e.g.
// registering a ledger expense. The payload is the process payload.
type Handler func(ctx context.Context, processID string, payload map[string]any) error

// Registry maps workflow types to their post-approval handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *zap.Logger
}

// NewRegistry creates an empty dispatch registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register binds a handler to a workflow type, replacing any previous binding.
func (r *Registry) Register(workflowType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[workflowType] = h
}

// Dispatch invokes the handler registered for the workflow type. A workflow
// type with no registered handler is a no-op success: not every workflow
// requires a downstream action.
func (r *Registry) Dispatch(ctx context.Context, workflowType, processID string, payload map[string]any) error {
	r.mu.RLock()
	h, ok := r.handlers[workflowType]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("no dispatch handler registered",
			zap.String("workflow_type", workflowType),
			zap.String("process_id", processID),
		)
		return nil
	}

	if err := h(ctx, processID, payload); err != nil {
		r.logger.Error("dispatch handler failed",
			zap.String("workflow_type", workflowType),
			zap.String("process_id", processID),
			zap.Error(err),
		)
		return err
	}

	r.logger.Info("dispatch handler completed",
		zap.String("workflow_type", workflowType),
		zap.String("process_id", processID),
	)
	return nil
}

// Has returns true if a handler is registered for the workflow type.
func (r *Registry) Has(workflowType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[workflowType]
	return ok
}
