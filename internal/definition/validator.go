package definition

import (
	"fmt"

	"github.com/ringihq/ringi/model"
)

// ValidationError describes one problem found in a workflow definition.
type ValidationError struct {
	WorkflowType string
	Field        string
	Message      string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("workflow %q: %s: %s", e.WorkflowType, e.Field, e.Message)
}

// Validator checks workflow definitions for structural problems before they
// are registered.
type Validator struct{}

// NewValidator creates a new definition Validator.
func NewValidator() *Validator {
	return &Validator{}
}

var knownOps = map[string]bool{
	model.OpLE: true,
	model.OpLT: true,
	model.OpEQ: true,
	model.OpGT: true,
	model.OpGE: true,
}

// Validate checks all definitions and returns every problem found. Duplicate
// workflow types across definitions are rejected.
func (v *Validator) Validate(defs []model.WorkflowDefinition) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(defs))

	for _, def := range defs {
		if def.Type == "" {
			errs = append(errs, ValidationError{
				WorkflowType: def.Type, Field: "type", Message: "workflow type is required",
			})
			continue
		}
		if seen[def.Type] {
			errs = append(errs, ValidationError{
				WorkflowType: def.Type, Field: "type", Message: "duplicate workflow type",
			})
		}
		seen[def.Type] = true

		if len(def.Steps) == 0 {
			errs = append(errs, ValidationError{
				WorkflowType: def.Type, Field: "steps", Message: "at least one routing step is required",
			})
		}

		for i, step := range def.Steps {
			field := fmt.Sprintf("steps[%d]", i)
			if !step.Level.IsValid() {
				errs = append(errs, ValidationError{
					WorkflowType: def.Type, Field: field,
					Message: fmt.Sprintf("unknown approval level %q", step.Level),
				})
			}
			errs = append(errs, v.validatePredicate(def.Type, field+".when", step.When)...)
		}

		if def.AutoApprove != nil {
			errs = append(errs, v.validatePredicate(def.Type, "auto_approve", *def.AutoApprove)...)
		}
	}

	return errs
}

// validatePredicate checks a single predicate's field, operator, and kind.
func (v *Validator) validatePredicate(workflowType, field string, p model.Predicate) []ValidationError {
	var errs []ValidationError

	if p.Field == "" {
		errs = append(errs, ValidationError{
			WorkflowType: workflowType, Field: field, Message: "predicate field is required",
		})
	}
	if !knownOps[p.Op] {
		errs = append(errs, ValidationError{
			WorkflowType: workflowType, Field: field,
			Message: fmt.Sprintf("unknown operator %q", p.Op),
		})
	}

	switch p.Kind {
	case model.PredicateNumeric:
		// Any operator is fine for numbers.
	case model.PredicateString:
		if p.Op != model.OpEQ {
			errs = append(errs, ValidationError{
				WorkflowType: workflowType, Field: field,
				Message: "string predicates support only ==",
			})
		}
	default:
		errs = append(errs, ValidationError{
			WorkflowType: workflowType, Field: field,
			Message: fmt.Sprintf("unknown predicate kind %q", p.Kind),
		})
	}

	return errs
}
