package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ringihq/ringi/model"
)

func newStoredProcess(id string) model.Process {
	now := time.Now().UTC()
	return model.Process{
		ID:            id,
		WorkflowType:  "expense_approval",
		Initiator:     "dev_001",
		Status:        model.StatusInitiated,
		ApprovalLevel: model.LevelManager,
		Payload:       map[string]any{"amount": 80000.0},
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
}

func TestMemoryProcessStore_CreateAndGet(t *testing.T) {
	store := NewMemoryProcessStore()
	ctx := context.Background()

	proc := newStoredProcess("p-1")
	if err := store.Create(ctx, proc); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, err := store.Get(ctx, "p-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.WorkflowType != proc.WorkflowType || got.Initiator != proc.Initiator {
		t.Errorf("Get returned %+v, want %+v", got, proc)
	}

	if err := store.Create(ctx, proc); model.CodeOf(err) != model.ErrConflict {
		t.Errorf("duplicate Create code = %s, want CONFLICT", model.CodeOf(err))
	}
}

func TestMemoryProcessStore_GetNotFound(t *testing.T) {
	store := NewMemoryProcessStore()

	_, err := store.Get(context.Background(), "missing")
	if model.CodeOf(err) != model.ErrProcessNotFound {
		t.Errorf("code = %s, want PROCESS_NOT_FOUND", model.CodeOf(err))
	}
}

func TestMemoryProcessStore_UpdateVersionCheck(t *testing.T) {
	store := NewMemoryProcessStore()
	ctx := context.Background()

	if err := store.Create(ctx, newStoredProcess("p-1")); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	first, _ := store.Get(ctx, "p-1")
	stale, _ := store.Get(ctx, "p-1")

	first.Status = model.StatusApproved
	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	got, _ := store.Get(ctx, "p-1")
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2 after update", got.Version)
	}

	// A write based on the pre-update read must lose.
	stale.Status = model.StatusRejected
	err := store.Update(ctx, stale)
	if model.CodeOf(err) != model.ErrConflict {
		t.Errorf("stale update code = %s, want CONFLICT", model.CodeOf(err))
	}

	got, _ = store.Get(ctx, "p-1")
	if got.Status != model.StatusApproved {
		t.Errorf("Status = %q, stale write must not apply", got.Status)
	}
}

func TestMemoryProcessStore_UpdateConcurrentSingleWinner(t *testing.T) {
	store := NewMemoryProcessStore()
	ctx := context.Background()

	if err := store.Create(ctx, newStoredProcess("p-1")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	base, _ := store.Get(ctx, "p-1")

	const writers = 8
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := base
			p.Status = model.StatusApproved
			results <- store.Update(ctx, p)
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case model.CodeOf(err) == model.ErrConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
	if conflicts != writers-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, writers-1)
	}
}

func TestMemoryProcessStore_Events(t *testing.T) {
	store := NewMemoryProcessStore()
	ctx := context.Background()

	if err := store.Create(ctx, newStoredProcess("p-1")); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	base := time.Now().UTC()
	for i, name := range []string{"initiated", "approved", "completed"} {
		err := store.AppendEvent(ctx, model.ProcessEvent{
			ID:        name,
			ProcessID: "p-1",
			Event:     name,
			ActorID:   "dev_001",
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("AppendEvent error: %v", err)
		}
	}

	events, err := store.GetEvents(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetEvents error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	for i, name := range []string{"initiated", "approved", "completed"} {
		if events[i].Event != name {
			t.Errorf("events[%d] = %q, want %q", i, events[i].Event, name)
		}
	}

	if _, err := store.GetEvents(ctx, "missing"); model.CodeOf(err) != model.ErrProcessNotFound {
		t.Errorf("code = %s, want PROCESS_NOT_FOUND", model.CodeOf(err))
	}
}

func TestMemoryProcessStore_ListFilters(t *testing.T) {
	store := NewMemoryProcessStore()
	ctx := context.Background()

	base := time.Now().UTC()
	seed := []struct {
		id           string
		workflowType string
		status       model.ProcessStatus
	}{
		{"p-1", "expense_approval", model.StatusInitiated},
		{"p-2", "expense_approval", model.StatusCompleted},
		{"p-3", "contract_approval", model.StatusInitiated},
		{"p-4", "hr_approval", model.StatusRejected},
	}
	for i, s := range seed {
		p := newStoredProcess(s.id)
		p.WorkflowType = s.workflowType
		p.Status = s.status
		p.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := store.Create(ctx, p); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}

	all, err := store.List(ctx, ProcessFilters{})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len = %d, want 4", len(all))
	}
	// Newest first.
	if all[0].ID != "p-4" || all[3].ID != "p-1" {
		t.Errorf("order = [%s ... %s], want newest first", all[0].ID, all[3].ID)
	}

	byType, _ := store.List(ctx, ProcessFilters{WorkflowType: "expense_approval"})
	if len(byType) != 2 {
		t.Errorf("by type len = %d, want 2", len(byType))
	}

	byStatus, _ := store.List(ctx, ProcessFilters{Status: model.StatusInitiated})
	if len(byStatus) != 2 {
		t.Errorf("by status len = %d, want 2", len(byStatus))
	}

	paged, _ := store.List(ctx, ProcessFilters{Limit: 2, Offset: 1})
	if len(paged) != 2 || paged[0].ID != "p-3" {
		t.Errorf("paged = %v, want [p-3 p-2]", paged)
	}

	past, _ := store.List(ctx, ProcessFilters{Offset: 10})
	if len(past) != 0 {
		t.Errorf("offset past end len = %d, want 0", len(past))
	}
}
