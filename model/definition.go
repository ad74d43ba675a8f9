package model

// Predicate operators. Predicates are data interpreted by a closed evaluator,
// never expression strings executed as code.
const (
	OpLE = "<="
	OpLT = "<"
	OpEQ = "=="
	OpGT = ">"
	OpGE = ">="
)

// PredicateKind declares how a predicate's literal is compared.
const (
	PredicateNumeric = "numeric"
	PredicateString  = "string"
)

// Predicate names a payload field, a comparison operator, and a typed literal.
// Numeric predicates compare the payload field value against Value; string
// predicates use exact equality against StringValue and only support "==".
type Predicate struct {
	Field       string  `json:"field" yaml:"field"`
	Op          string  `json:"op" yaml:"op"`
	Kind        string  `json:"kind" yaml:"kind"`
	Value       float64 `json:"value,omitempty" yaml:"value,omitempty"`
	StringValue string  `json:"string_value,omitempty" yaml:"string_value,omitempty"`
}

// RoutingStep is one ordered entry in a workflow's routing table: if the
// predicate matches the payload, the step's level is the required approver.
type RoutingStep struct {
	When  Predicate     `json:"when" yaml:"when"`
	Level ApprovalLevel `json:"level" yaml:"level"`
}

// WorkflowDefinition is the configuration for one workflow type. It is not
// persisted per-instance; the registry owns the loaded set.
type WorkflowDefinition struct {
	Type        string        `json:"type" yaml:"type"`
	Name        string        `json:"name" yaml:"name"`
	Steps       []RoutingStep `json:"steps" yaml:"steps"`
	AutoApprove *Predicate    `json:"auto_approve,omitempty" yaml:"auto_approve,omitempty"`

	// Checksum and SourceFile are populated by the loader for file-based
	// definitions; built-in definitions leave them empty.
	Checksum   string `json:"-" yaml:"-"`
	SourceFile string `json:"-" yaml:"-"`
}

// MaxLevel returns the highest-authority level named by any routing step.
// Unmatched requests route here: fail-safe to the strictest approver.
func (d WorkflowDefinition) MaxLevel() ApprovalLevel {
	max := LevelEmployee
	for _, s := range d.Steps {
		max = MaxLevel(max, s.Level)
	}
	return max
}
