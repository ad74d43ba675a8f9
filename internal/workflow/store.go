package workflow

import (
	"context"

	"github.com/ringihq/ringi/model"
)

// ProcessStore persists process records and their audit events. Writes always
// supply the complete record; there are no partial updates. The store performs
// no retries — callers see raw persistence errors.
type ProcessStore interface {
	// Create persists a new process record.
	Create(ctx context.Context, p model.Process) error

	// Get retrieves a process by ID. Returns PROCESS_NOT_FOUND if the
	// record doesn't exist.
	Get(ctx context.Context, processID string) (model.Process, error)

	// Update persists an updated process with optimistic locking. The
	// version must match the current stored version; returns CONFLICT if
	// it has changed. Only one of two racing writers transitions the
	// record.
	Update(ctx context.Context, p model.Process) error

	// AppendEvent adds an event to the process audit trail.
	AppendEvent(ctx context.Context, event model.ProcessEvent) error

	// GetEvents retrieves all events for a process, ordered by timestamp.
	GetEvents(ctx context.Context, processID string) ([]model.ProcessEvent, error)

	// List returns process summaries matching the filters, newest first.
	List(ctx context.Context, filters ProcessFilters) ([]model.Process, error)
}

// ProcessFilters are optional filters for listing processes.
type ProcessFilters struct {
	WorkflowType string
	Status       model.ProcessStatus
	Limit        int
	Offset       int
}
