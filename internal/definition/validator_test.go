package definition

import (
	"strings"
	"testing"

	"github.com/ringihq/ringi/model"
)

func TestValidator_builtinsAreValid(t *testing.T) {
	v := NewValidator()
	if errs := v.Validate(Builtin()); len(errs) != 0 {
		t.Fatalf("builtin definitions invalid: %v", errs)
	}
}

func TestValidator_rejectsBadDefinitions(t *testing.T) {
	v := NewValidator()

	cases := []struct {
		name    string
		def     model.WorkflowDefinition
		wantMsg string
	}{
		{
			name:    "missing type",
			def:     model.WorkflowDefinition{},
			wantMsg: "workflow type is required",
		},
		{
			name:    "no steps",
			def:     model.WorkflowDefinition{Type: "empty_approval"},
			wantMsg: "at least one routing step",
		},
		{
			name: "unknown level",
			def: model.WorkflowDefinition{
				Type: "bad_level",
				Steps: []model.RoutingStep{
					{When: model.Predicate{Field: "amount", Op: model.OpLE, Kind: model.PredicateNumeric}, Level: "vp"},
				},
			},
			wantMsg: `unknown approval level "vp"`,
		},
		{
			name: "unknown operator",
			def: model.WorkflowDefinition{
				Type: "bad_op",
				Steps: []model.RoutingStep{
					{When: model.Predicate{Field: "amount", Op: "~=", Kind: model.PredicateNumeric}, Level: model.LevelManager},
				},
			},
			wantMsg: `unknown operator "~="`,
		},
		{
			name: "string with ordering op",
			def: model.WorkflowDefinition{
				Type: "bad_string",
				Steps: []model.RoutingStep{
					{When: model.Predicate{Field: "type", Op: model.OpGT, Kind: model.PredicateString}, Level: model.LevelManager},
				},
			},
			wantMsg: "string predicates support only ==",
		},
		{
			name: "bad auto approve",
			def: model.WorkflowDefinition{
				Type: "bad_auto",
				Steps: []model.RoutingStep{
					{When: model.Predicate{Field: "amount", Op: model.OpLE, Kind: model.PredicateNumeric}, Level: model.LevelManager},
				},
				AutoApprove: &model.Predicate{Op: model.OpLE, Kind: "regex"},
			},
			wantMsg: `unknown predicate kind "regex"`,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			errs := v.Validate([]model.WorkflowDefinition{c.def})
			if len(errs) == 0 {
				t.Fatal("expected validation errors")
			}
			found := false
			for _, e := range errs {
				if strings.Contains(e.Error(), c.wantMsg) {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("no error containing %q in %v", c.wantMsg, errs)
			}
		})
	}
}

func TestValidator_duplicateTypes(t *testing.T) {
	v := NewValidator()
	def := Builtin()[0]
	errs := v.Validate([]model.WorkflowDefinition{def, def})
	found := false
	for _, e := range errs {
		if strings.Contains(e.Error(), "duplicate workflow type") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected duplicate type error, got %v", errs)
	}
}
