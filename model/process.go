package model

import (
	"fmt"
	"time"
)

// ProcessStatus is the lifecycle state of an approval process. Stored as a
// stable lowercase token, never as a raw integer.
type ProcessStatus string

const (
	StatusInitiated ProcessStatus = "initiated"
	StatusApproved  ProcessStatus = "approved"
	StatusRejected  ProcessStatus = "rejected"
	StatusCompleted ProcessStatus = "completed"
)

var validStatuses = map[ProcessStatus]bool{
	StatusInitiated: true,
	StatusApproved:  true,
	StatusRejected:  true,
	StatusCompleted: true,
}

var terminalStatuses = map[ProcessStatus]bool{
	StatusRejected:  true,
	StatusCompleted: true,
}

// String returns the string representation of the status.
func (s ProcessStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a known lifecycle state.
func (s ProcessStatus) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal returns true if no further transitions are allowed from the status.
func (s ProcessStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// ApprovalLevel is the authority tier required to approve a process. Levels
// form a total order: employee < manager < director < ceo.
type ApprovalLevel string

const (
	LevelEmployee ApprovalLevel = "employee"
	LevelManager  ApprovalLevel = "manager"
	LevelDirector ApprovalLevel = "director"
	LevelCEO      ApprovalLevel = "ceo"
)

// levelRank defines the total order once. Unknown levels rank below employee
// so they can never satisfy a comparison by accident.
var levelRank = map[ApprovalLevel]int{
	LevelEmployee: 1,
	LevelManager:  2,
	LevelDirector: 3,
	LevelCEO:      4,
}

// String returns the string representation of the level.
func (l ApprovalLevel) String() string {
	return string(l)
}

// IsValid returns true if the level is a known authority tier.
func (l ApprovalLevel) IsValid() bool {
	return levelRank[l] != 0
}

// Rank returns the level's position in the authority order, 0 for unknown levels.
func (l ApprovalLevel) Rank() int {
	return levelRank[l]
}

// AtLeast returns true if l ranks at or above other.
func (l ApprovalLevel) AtLeast(other ApprovalLevel) bool {
	return levelRank[l] >= levelRank[other]
}

// MaxLevel returns the higher-ranked of two levels.
func MaxLevel(a, b ApprovalLevel) ApprovalLevel {
	if levelRank[a] >= levelRank[b] {
		return a
	}
	return b
}

// ApprovalMeta records the approval (or rejection) decision on a process.
type ApprovalMeta struct {
	Approver  string    `json:"approver"`
	Comment   string    `json:"comment,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// Process is one request moving through the approval workflow. The payload is
// opaque to the engine except for the fields referenced by routing predicates.
type Process struct {
	ID            string         `json:"id"`
	WorkflowType  string         `json:"workflow_type"`
	Initiator     string         `json:"initiator"`
	Status        ProcessStatus  `json:"status"`
	ApprovalLevel ApprovalLevel  `json:"approval_level"`
	Payload       map[string]any `json:"payload,omitempty"`
	ApprovalMeta  *ApprovalMeta  `json:"approval_meta,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Version       int            `json:"version"`
}

// ProcessEvent records one entry in a process's audit trail. Processes are
// never deleted; the event log is the durable record of every transition.
type ProcessEvent struct {
	ID        string         `json:"id"`
	ProcessID string         `json:"process_id"`
	Event     string         `json:"event"`
	ActorID   string         `json:"actor_id"`
	Data      map[string]any `json:"data,omitempty"`
	Comment   string         `json:"comment,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ProcessSummary is a lightweight representation of a process used in list views.
type ProcessSummary struct {
	ID            string        `json:"id"`
	WorkflowType  string        `json:"workflow_type"`
	Initiator     string        `json:"initiator"`
	Status        ProcessStatus `json:"status"`
	ApprovalLevel ApprovalLevel `json:"approval_level"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Summary converts a process to its list representation.
func (p Process) Summary() ProcessSummary {
	return ProcessSummary{
		ID:            p.ID,
		WorkflowType:  p.WorkflowType,
		Initiator:     p.Initiator,
		Status:        p.Status,
		ApprovalLevel: p.ApprovalLevel,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// Validate checks structural invariants on a process record.
func (p Process) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("process ID is required")
	}
	if p.WorkflowType == "" {
		return fmt.Errorf("workflow type is required")
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("unknown status %q", p.Status)
	}
	if !p.ApprovalLevel.IsValid() {
		return fmt.Errorf("unknown approval level %q", p.ApprovalLevel)
	}
	return nil
}
