package dispatch

import (
	"context"
	"errors"
	"testing"
)

func TestRegistry_Dispatch(t *testing.T) {
	reg := NewRegistry(nil)

	var calls int
	var gotProcessID string
	var gotPayload map[string]any
	reg.Register("expense_approval", func(_ context.Context, processID string, payload map[string]any) error {
		calls++
		gotProcessID = processID
		gotPayload = payload
		return nil
	})

	err := reg.Dispatch(context.Background(), "expense_approval", "expense_approval-1", map[string]any{"amount": 45000.0})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
	if gotProcessID != "expense_approval-1" {
		t.Errorf("processID = %q", gotProcessID)
	}
	if gotPayload["amount"] != 45000.0 {
		t.Errorf("payload = %v", gotPayload)
	}
}

func TestRegistry_Dispatch_unknownTypeIsNoop(t *testing.T) {
	reg := NewRegistry(nil)
	if err := reg.Dispatch(context.Background(), "hr_approval", "hr_approval-1", nil); err != nil {
		t.Fatalf("Dispatch of unregistered type should be a no-op success, got %v", err)
	}
}

func TestRegistry_Dispatch_propagatesHandlerError(t *testing.T) {
	reg := NewRegistry(nil)
	boom := errors.New("ledger unavailable")
	reg.Register("contract_approval", func(context.Context, string, map[string]any) error {
		return boom
	})

	err := reg.Dispatch(context.Background(), "contract_approval", "contract_approval-1", nil)
	if !errors.Is(err, boom) {
		t.Errorf("Dispatch error = %v, want %v", err, boom)
	}
}

func TestRegistry_Register_replaces(t *testing.T) {
	reg := NewRegistry(nil)
	var first, second int
	reg.Register("expense_approval", func(context.Context, string, map[string]any) error {
		first++
		return nil
	})
	reg.Register("expense_approval", func(context.Context, string, map[string]any) error {
		second++
		return nil
	})

	_ = reg.Dispatch(context.Background(), "expense_approval", "p1", nil)
	if first != 0 || second != 1 {
		t.Errorf("first = %d, second = %d; replacement handler should win", first, second)
	}
	if !reg.Has("expense_approval") {
		t.Error("Has() = false")
	}
}
