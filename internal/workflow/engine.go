package workflow

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ringihq/ringi/internal/definition"
	"github.com/ringihq/ringi/internal/dispatch"
	"github.com/ringihq/ringi/internal/notify"
	"github.com/ringihq/ringi/internal/observability"
	"github.com/ringihq/ringi/internal/rules"
	"github.com/ringihq/ringi/model"
)

// SystemAutoApprover is the actor recorded on auto-approved processes.
const SystemAutoApprover = "system_auto"

// autoApproveComment is the fixed comment recorded on auto-approvals.
const autoApproveComment = "auto-approved by workflow rule"

// Engine orchestrates the process lifecycle: intake, routing, auto-approval,
// manual approval and rejection, and post-approval dispatch.
//
// Concurrency: the engine relies on the store's optimistic version check. Two
// racing approvals both read Initiated, but only the first write wins; the
// loser observes ALREADY_PROCESSED and never dispatches, which bounds the
// dispatch action to at most once per process.
type Engine struct {
	registry   *definition.Registry
	store      ProcessStore
	dispatcher *dispatch.Registry
	notifier   notify.Notifier
	logger     *zap.Logger
	metrics    *observability.Metrics
	seq        atomic.Uint64
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithNotifier sets the notifier used for decision notifications.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the metrics sink for process lifecycle instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a new workflow engine.
func NewEngine(registry *definition.Registry, store ProcessStore, dispatcher *dispatch.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:   registry,
		store:      store,
		dispatcher: dispatcher,
		notifier:   notify.Nop{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initiate creates a new process for the workflow type, routes it to its
// required approval level, and persists it as Initiated. If the definition's
// auto-approval predicate is satisfied by the payload, the process is
// immediately approved by the system actor.
func (e *Engine) Initiate(ctx context.Context, workflowType string, payload map[string]any, initiator string) (model.Process, error) {
	// 1. Look up the workflow definition.
	def, ok := e.registry.GetWorkflow(workflowType)
	if !ok {
		return model.Process{}, model.NewUnknownWorkflowTypeError(workflowType)
	}

	// 2. Route to the required approval level. Evaluation errors surface
	// before anything is persisted.
	level, err := rules.Route(def, payload)
	if err != nil {
		return model.Process{}, err
	}
	autoApprove, err := rules.AutoApprove(def, payload)
	if err != nil {
		return model.Process{}, err
	}

	// 3. Create and persist the Initiated process.
	now := time.Now().UTC()
	proc := model.Process{
		ID:            e.newProcessID(workflowType, now),
		WorkflowType:  workflowType,
		Initiator:     initiator,
		Status:        model.StatusInitiated,
		ApprovalLevel: level,
		Payload:       payload,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
	if err := e.store.Create(ctx, proc); err != nil {
		return model.Process{}, err
	}
	if err := e.appendEvent(ctx, proc.ID, "initiated", initiator, map[string]any{
		"approval_level": level.String(),
	}, ""); err != nil {
		return model.Process{}, err
	}

	e.logger.Info("process initiated",
		zap.String("process_id", proc.ID),
		zap.String("workflow_type", workflowType),
		zap.String("approval_level", level.String()),
		zap.Bool("auto_approve", autoApprove),
	)
	if e.metrics != nil {
		e.metrics.RecordProcessInitiation(workflowType, level.String())
	}

	// 4. Auto-approval re-enters the approve path with the system actor.
	if autoApprove {
		if e.metrics != nil {
			e.metrics.RecordAutoApproval(workflowType)
		}
		return e.Approve(ctx, proc.ID, SystemAutoApprover, autoApproveComment)
	}

	return proc, nil
}

// Approve transitions an Initiated process to Approved, stamps the approval
// metadata, and invokes the workflow's dispatch action. On dispatch success
// the process is marked Completed; on dispatch failure it stays Approved and
// a DISPATCH_FAILED error is returned so the caller can retry.
func (e *Engine) Approve(ctx context.Context, processID, approver, comment string) (model.Process, error) {
	// 1. Load and guard.
	proc, err := e.store.Get(ctx, processID)
	if err != nil {
		return model.Process{}, err
	}
	if err := guardDecision(proc); err != nil {
		return model.Process{}, err
	}

	// 2. Write the Approved record. The version check makes this the
	// at-most-once gate: a racing approver loses here and must not dispatch.
	now := time.Now().UTC()
	proc.Status = model.StatusApproved
	proc.ApprovalMeta = &model.ApprovalMeta{
		Approver:  approver,
		Comment:   comment,
		DecidedAt: now,
	}
	proc.UpdatedAt = now
	if err := e.store.Update(ctx, proc); err != nil {
		if model.CodeOf(err) == model.ErrConflict {
			return model.Process{}, e.alreadyProcessed(ctx, processID)
		}
		return model.Process{}, err
	}
	if err := e.appendEvent(ctx, proc.ID, "approved", approver, nil, comment); err != nil {
		return model.Process{}, err
	}

	e.logger.Info("process approved",
		zap.String("process_id", proc.ID),
		zap.String("approver", approver),
	)
	if e.metrics != nil {
		e.metrics.RecordProcessDecision(proc.WorkflowType, "approved")
	}

	// 3. Reload so the completion write carries the current version.
	proc, err = e.store.Get(ctx, processID)
	if err != nil {
		return model.Process{}, err
	}

	// 4. Dispatch and complete.
	return e.dispatchAndComplete(ctx, proc)
}

// Reject transitions an Initiated process to Rejected. No dispatch action
// fires for rejected processes.
func (e *Engine) Reject(ctx context.Context, processID, approver, reason string) (model.Process, error) {
	proc, err := e.store.Get(ctx, processID)
	if err != nil {
		return model.Process{}, err
	}
	if err := guardDecision(proc); err != nil {
		return model.Process{}, err
	}

	now := time.Now().UTC()
	proc.Status = model.StatusRejected
	proc.ApprovalMeta = &model.ApprovalMeta{
		Approver:  approver,
		Comment:   reason,
		DecidedAt: now,
	}
	proc.UpdatedAt = now
	if err := e.store.Update(ctx, proc); err != nil {
		if model.CodeOf(err) == model.ErrConflict {
			return model.Process{}, e.alreadyProcessed(ctx, processID)
		}
		return model.Process{}, err
	}
	if err := e.appendEvent(ctx, proc.ID, "rejected", approver, nil, reason); err != nil {
		return model.Process{}, err
	}

	e.logger.Info("process rejected",
		zap.String("process_id", proc.ID),
		zap.String("approver", approver),
	)
	if e.metrics != nil {
		e.metrics.RecordProcessDecision(proc.WorkflowType, "rejected")
	}
	e.notifyDecision(ctx, proc, "rejected", reason)

	return e.store.Get(ctx, processID)
}

// RetryDispatch re-drives the dispatch action for a process stuck in
// Approved after a dispatch failure.
func (e *Engine) RetryDispatch(ctx context.Context, processID string) (model.Process, error) {
	proc, err := e.store.Get(ctx, processID)
	if err != nil {
		return model.Process{}, err
	}
	if proc.Status != model.StatusApproved {
		return model.Process{}, model.NewInvalidTransitionError(
			fmt.Sprintf("process %q is %s, only approved processes have a pending dispatch", processID, proc.Status),
		)
	}
	return e.dispatchAndComplete(ctx, proc)
}

// Get returns a process record.
func (e *Engine) Get(ctx context.Context, processID string) (model.Process, error) {
	return e.store.Get(ctx, processID)
}

// Events returns a process's audit trail.
func (e *Engine) Events(ctx context.Context, processID string) ([]model.ProcessEvent, error) {
	return e.store.GetEvents(ctx, processID)
}

// List returns process summaries matching the filters, newest first.
func (e *Engine) List(ctx context.Context, filters ProcessFilters) ([]model.ProcessSummary, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	processes, err := e.store.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.ProcessSummary, 0, len(processes))
	for _, p := range processes {
		summaries = append(summaries, p.Summary())
	}
	return summaries, nil
}

// dispatchAndComplete invokes the dispatch action for an Approved process and
// records completion. The Approved write has already happened: a dispatch
// failure must not roll it back, only keep the process out of Completed.
func (e *Engine) dispatchAndComplete(ctx context.Context, proc model.Process) (model.Process, error) {
	start := time.Now()
	if err := e.dispatcher.Dispatch(ctx, proc.WorkflowType, proc.ID, proc.Payload); err != nil {
		if e.metrics != nil {
			e.metrics.RecordDispatch(proc.WorkflowType, "error", time.Since(start))
		}
		_ = e.appendEvent(ctx, proc.ID, "dispatch_failed", "system",
			map[string]any{"error": err.Error()}, "")
		return proc, model.NewDispatchFailedError(proc.ID, err)
	}
	if e.metrics != nil {
		e.metrics.RecordDispatch(proc.WorkflowType, "ok", time.Since(start))
	}
	if err := e.appendEvent(ctx, proc.ID, "dispatched", "system", nil, ""); err != nil {
		return proc, err
	}

	proc.Status = model.StatusCompleted
	proc.UpdatedAt = time.Now().UTC()
	if err := e.store.Update(ctx, proc); err != nil {
		return proc, err
	}
	if err := e.appendEvent(ctx, proc.ID, "completed", "system", nil, ""); err != nil {
		return proc, err
	}

	e.logger.Info("process completed", zap.String("process_id", proc.ID))

	final, err := e.store.Get(ctx, proc.ID)
	if err != nil {
		return proc, err
	}
	e.notifyDecision(ctx, final, "approved", "")
	return final, nil
}

// guardDecision rejects decisions on processes that already left Initiated.
func guardDecision(proc model.Process) error {
	switch proc.Status {
	case model.StatusInitiated:
		return nil
	case model.StatusApproved, model.StatusCompleted, model.StatusRejected:
		return model.NewAlreadyProcessedError(proc.ID, proc.Status)
	default:
		return model.NewInvalidTransitionError(
			fmt.Sprintf("process %q has unknown status %q", proc.ID, proc.Status),
		)
	}
}

// alreadyProcessed builds the error for a caller that lost the version race.
func (e *Engine) alreadyProcessed(ctx context.Context, processID string) error {
	current, err := e.store.Get(ctx, processID)
	if err != nil {
		return model.NewAlreadyProcessedError(processID, model.StatusApproved)
	}
	return model.NewAlreadyProcessedError(processID, current.Status)
}

// notifyDecision informs the initiator of the outcome. Best-effort.
func (e *Engine) notifyDecision(ctx context.Context, proc model.Process, outcome, reason string) {
	subject := fmt.Sprintf("process %s %s", proc.ID, outcome)
	body := fmt.Sprintf("Your %s request was %s.", proc.WorkflowType, outcome)
	if reason != "" {
		body = fmt.Sprintf("%s Reason: %s", body, reason)
	}
	if err := e.notifier.Notify(ctx, proc.Initiator, subject, body); err != nil {
		e.logger.Warn("notification failed",
			zap.String("process_id", proc.ID),
			zap.Error(err),
		)
	}
}

// appendEvent is a convenience helper for creating and persisting audit events.
func (e *Engine) appendEvent(ctx context.Context, processID, event, actorID string, data map[string]any, comment string) error {
	return e.store.AppendEvent(ctx, model.ProcessEvent{
		ID:        uuid.New().String(),
		ProcessID: processID,
		Event:     event,
		ActorID:   actorID,
		Data:      data,
		Comment:   comment,
		Timestamp: time.Now().UTC(),
	})
}

// newProcessID derives an ID from the workflow type, a millisecond timestamp,
// and a monotonic sequence so IDs never collide within an engine instance.
func (e *Engine) newProcessID(workflowType string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%06d", workflowType, now.UnixMilli(), e.seq.Add(1))
}
