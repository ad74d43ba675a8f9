package definition

import (
	"testing"

	"github.com/ringihq/ringi/model"
)

func TestRegistry_GetWorkflow(t *testing.T) {
	reg := NewRegistry(Builtin())

	def, ok := reg.GetWorkflow("expense_approval")
	if !ok {
		t.Fatal("expense_approval not found")
	}
	if len(def.Steps) != 3 {
		t.Errorf("steps = %d, want 3", len(def.Steps))
	}
	if def.AutoApprove == nil || def.AutoApprove.Value != 50000 {
		t.Errorf("AutoApprove = %+v", def.AutoApprove)
	}

	if _, ok := reg.GetWorkflow("unknown"); ok {
		t.Error("unexpected workflow: unknown")
	}
}

func TestRegistry_builtinsCoverKnownTypes(t *testing.T) {
	reg := NewRegistry(Builtin())
	want := []string{"contract_approval", "expense_approval", "hr_approval"}
	got := reg.WorkflowTypes()
	if len(got) != len(want) {
		t.Fatalf("WorkflowTypes() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("WorkflowTypes()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// hr_approval has no auto-approval.
	hr, _ := reg.GetWorkflow("hr_approval")
	if hr.AutoApprove != nil {
		t.Error("hr_approval should have no auto-approval predicate")
	}
}

func TestRegistry_Replace_laterDefinitionWins(t *testing.T) {
	reg := NewRegistry(Builtin())

	override := model.WorkflowDefinition{
		Type: "expense_approval",
		Name: "Expense Approval (strict)",
		Steps: []model.RoutingStep{
			{When: model.Predicate{Field: "amount", Op: model.OpGE, Kind: model.PredicateNumeric, Value: 0}, Level: model.LevelCEO},
		},
	}
	reg.Replace(append(Builtin(), override))

	def, ok := reg.GetWorkflow("expense_approval")
	if !ok {
		t.Fatal("expense_approval not found after replace")
	}
	if def.Name != "Expense Approval (strict)" {
		t.Errorf("Name = %q, override should win", def.Name)
	}
	if reg.Len() != 3 {
		t.Errorf("Len() = %d, want 3", reg.Len())
	}
}
