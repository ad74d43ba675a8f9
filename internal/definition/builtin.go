package definition

import "github.com/ringihq/ringi/model"

// Builtin returns the workflow definitions shipped with the engine. They are
// used as-is when no definition directory is configured, and serve as the base
// set that file-based definitions may override.
func Builtin() []model.WorkflowDefinition {
	return []model.WorkflowDefinition{
		{
			Type: "expense_approval",
			Name: "Expense Approval",
			Steps: []model.RoutingStep{
				{
					When:  model.Predicate{Field: "amount", Op: model.OpLE, Kind: model.PredicateNumeric, Value: 100000},
					Level: model.LevelManager,
				},
				{
					When:  model.Predicate{Field: "amount", Op: model.OpLE, Kind: model.PredicateNumeric, Value: 1000000},
					Level: model.LevelDirector,
				},
				{
					When:  model.Predicate{Field: "amount", Op: model.OpGT, Kind: model.PredicateNumeric, Value: 1000000},
					Level: model.LevelCEO,
				},
			},
			AutoApprove: &model.Predicate{
				Field: "amount", Op: model.OpLE, Kind: model.PredicateNumeric, Value: 50000,
			},
		},
		{
			Type: "contract_approval",
			Name: "Contract Approval",
			Steps: []model.RoutingStep{
				{
					When:  model.Predicate{Field: "amount", Op: model.OpLE, Kind: model.PredicateNumeric, Value: 10000000},
					Level: model.LevelDirector,
				},
				{
					When:  model.Predicate{Field: "amount", Op: model.OpGT, Kind: model.PredicateNumeric, Value: 10000000},
					Level: model.LevelCEO,
				},
			},
		},
		{
			Type: "hr_approval",
			Name: "HR Approval",
			Steps: []model.RoutingStep{
				{
					When:  model.Predicate{Field: "type", Op: model.OpEQ, Kind: model.PredicateString, StringValue: "leave"},
					Level: model.LevelManager,
				},
				{
					When:  model.Predicate{Field: "type", Op: model.OpEQ, Kind: model.PredicateString, StringValue: "promotion"},
					Level: model.LevelDirector,
				},
				{
					When:  model.Predicate{Field: "type", Op: model.OpEQ, Kind: model.PredicateString, StringValue: "hire"},
					Level: model.LevelCEO,
				},
			},
		},
	}
}
