// Package rules evaluates routing predicates and maps request payloads to
// required approval levels. Predicates are structured data (field, operator,
// literal) interpreted by a closed evaluator; payload values are never
// assembled into expressions or executed.
package rules

import (
	"encoding/json"
	"fmt"

	"github.com/ringihq/ringi/model"
)

// Evaluate applies a single predicate to a payload. It returns a
// CONDITION_EVALUATION error when the payload is missing the predicate's
// field, the value has the wrong type, or the predicate itself is malformed.
func Evaluate(p model.Predicate, payload map[string]any) (bool, error) {
	raw, ok := payload[p.Field]
	if !ok {
		return false, model.NewConditionEvaluationError(
			fmt.Sprintf("payload is missing field %q", p.Field),
		)
	}

	switch p.Kind {
	case model.PredicateNumeric:
		operand, err := toFloat(raw)
		if err != nil {
			return false, model.NewConditionEvaluationError(
				fmt.Sprintf("field %q: %v", p.Field, err),
			)
		}
		return compareNumeric(operand, p.Op, p.Value)
	case model.PredicateString:
		s, ok := raw.(string)
		if !ok {
			return false, model.NewConditionEvaluationError(
				fmt.Sprintf("field %q: expected string, got %T", p.Field, raw),
			)
		}
		if p.Op != model.OpEQ {
			return false, model.NewConditionEvaluationError(
				fmt.Sprintf("string predicates support only %q, got %q", model.OpEQ, p.Op),
			)
		}
		return s == p.StringValue, nil
	default:
		return false, model.NewConditionEvaluationError(
			fmt.Sprintf("unknown predicate kind %q", p.Kind),
		)
	}
}

// Route evaluates a definition's ordered routing steps against the payload and
// returns the level of the first step whose predicate is satisfied. If no step
// matches, it returns the definition's maximum-authority level: unmatched
// requests require the highest approver, never the lowest. For a fixed
// definition and payload the result is always the same.
func Route(def model.WorkflowDefinition, payload map[string]any) (model.ApprovalLevel, error) {
	for _, step := range def.Steps {
		matched, err := Evaluate(step.When, payload)
		if err != nil {
			return "", err
		}
		if matched {
			return step.Level, nil
		}
	}
	return def.MaxLevel(), nil
}

// AutoApprove reports whether the definition's auto-approval predicate is
// satisfied by the payload. Definitions without an auto-approval predicate
// never auto-approve.
func AutoApprove(def model.WorkflowDefinition, payload map[string]any) (bool, error) {
	if def.AutoApprove == nil {
		return false, nil
	}
	return Evaluate(*def.AutoApprove, payload)
}

// compareNumeric applies a numeric comparison operator.
func compareNumeric(operand float64, op string, literal float64) (bool, error) {
	switch op {
	case model.OpLE:
		return operand <= literal, nil
	case model.OpLT:
		return operand < literal, nil
	case model.OpEQ:
		return operand == literal, nil
	case model.OpGT:
		return operand > literal, nil
	case model.OpGE:
		return operand >= literal, nil
	default:
		return false, model.NewConditionEvaluationError(
			fmt.Sprintf("unknown operator %q", op),
		)
	}
}

// toFloat coerces the numeric types a decoded JSON or YAML payload can carry.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", n.String())
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}
