package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest     = "BAD_REQUEST"
	ErrNotFound       = "NOT_FOUND"
	ErrConflict       = "CONFLICT"
	ErrInternalError  = "INTERNAL_ERROR"
	ErrPersistence    = "PERSISTENCE"
)

// Workflow-specific error codes.
const (
	ErrUnknownWorkflowType = "UNKNOWN_WORKFLOW_TYPE"
	ErrProcessNotFound     = "PROCESS_NOT_FOUND"
	ErrInvalidTransition   = "INVALID_TRANSITION"
	ErrAlreadyProcessed    = "ALREADY_PROCESSED"
	ErrConditionEvaluation = "CONDITION_EVALUATION"
	ErrDispatchFailed      = "DISPATCH_FAILED"
)

// ErrorEnvelope is the typed error returned by the engine and its
// collaborators. It identifies which invariant was violated via Code.
// It implements the error interface.
type ErrorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the envelope code of err, or INTERNAL_ERROR for any other
// error type. Nil errors return an empty string.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if ee, ok := err.(*ErrorEnvelope); ok {
		return ee.Code
	}
	return ErrInternalError
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error. The store returns this when an
// optimistic-concurrency write loses the version check.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewPersistenceError returns a PERSISTENCE error wrapping a storage failure.
func NewPersistenceError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrPersistence, Message: msg}
}

// NewUnknownWorkflowTypeError returns an UNKNOWN_WORKFLOW_TYPE error.
func NewUnknownWorkflowTypeError(workflowType string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrUnknownWorkflowType,
		Message: fmt.Sprintf("workflow type %q is not registered", workflowType),
	}
}

// NewProcessNotFoundError returns a PROCESS_NOT_FOUND error.
func NewProcessNotFoundError(processID string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrProcessNotFound,
		Message: fmt.Sprintf("process %q not found", processID),
	}
}

// NewInvalidTransitionError returns an INVALID_TRANSITION error.
func NewInvalidTransitionError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrInvalidTransition, Message: msg}
}

// NewAlreadyProcessedError returns an ALREADY_PROCESSED error.
func NewAlreadyProcessedError(processID string, status ProcessStatus) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrAlreadyProcessed,
		Message: fmt.Sprintf("process %q is already %s", processID, status),
	}
}

// NewConditionEvaluationError returns a CONDITION_EVALUATION error for a
// payload missing a field a predicate requires, or a type mismatch.
func NewConditionEvaluationError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConditionEvaluation, Message: msg}
}

// NewDispatchFailedError returns a DISPATCH_FAILED error. The approval itself
// remains valid; the process stays in a retryable, non-completed state.
func NewDispatchFailedError(processID string, cause error) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrDispatchFailed,
		Message: fmt.Sprintf("dispatch for process %q failed: %v", processID, cause),
	}
}
