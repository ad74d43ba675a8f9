package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ringihq/ringi/model"
)

// MemoryProcessStore is an in-memory ProcessStore for testing and
// single-instance deployments.
type MemoryProcessStore struct {
	mu        sync.RWMutex
	processes map[string]model.Process
	events    map[string][]model.ProcessEvent
}

// NewMemoryProcessStore creates a new in-memory process store.
func NewMemoryProcessStore() *MemoryProcessStore {
	return &MemoryProcessStore{
		processes: make(map[string]model.Process),
		events:    make(map[string][]model.ProcessEvent),
	}
}

// Create persists a new process record.
func (s *MemoryProcessStore) Create(_ context.Context, p model.Process) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.processes[p.ID]; exists {
		return model.NewConflictError(
			fmt.Sprintf("process %q already exists", p.ID),
		)
	}

	s.processes[p.ID] = p
	return nil
}

// Get retrieves a process by ID.
func (s *MemoryProcessStore) Get(_ context.Context, processID string) (model.Process, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.processes[processID]
	if !exists {
		return model.Process{}, model.NewProcessNotFoundError(processID)
	}
	return p, nil
}

// Update persists an updated process with optimistic locking.
func (s *MemoryProcessStore) Update(_ context.Context, p model.Process) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.processes[p.ID]
	if !exists {
		return model.NewProcessNotFoundError(p.ID)
	}

	// Optimistic lock check.
	if existing.Version != p.Version {
		return model.NewConflictError(
			fmt.Sprintf("process %q version conflict (expected %d, got %d)", p.ID, p.Version, existing.Version),
		)
	}

	p.Version++
	p.UpdatedAt = time.Now().UTC()
	s.processes[p.ID] = p
	return nil
}

// AppendEvent adds an event to the process audit trail.
func (s *MemoryProcessStore) AppendEvent(_ context.Context, event model.ProcessEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[event.ProcessID] = append(s.events[event.ProcessID], event)
	return nil
}

// GetEvents retrieves all events for a process, ordered by timestamp.
func (s *MemoryProcessStore) GetEvents(_ context.Context, processID string) ([]model.ProcessEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.processes[processID]; !exists {
		return nil, model.NewProcessNotFoundError(processID)
	}

	events := s.events[processID]
	result := make([]model.ProcessEvent, len(events))
	copy(result, events)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// List returns processes matching the filters, newest first.
func (s *MemoryProcessStore) List(_ context.Context, filters ProcessFilters) ([]model.Process, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Process
	for _, p := range s.processes {
		if filters.WorkflowType != "" && p.WorkflowType != filters.WorkflowType {
			continue
		}
		if filters.Status != "" && p.Status != filters.Status {
			continue
		}
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(result) {
			return []model.Process{}, nil
		}
		result = result[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(result) {
		result = result[:filters.Limit]
	}

	return result, nil
}

// Len returns the total number of processes. For testing.
func (s *MemoryProcessStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.processes)
}

// HealthCheck implements the readiness HealthChecker interface.
func (s *MemoryProcessStore) HealthCheck(_ context.Context) error {
	return nil
}
