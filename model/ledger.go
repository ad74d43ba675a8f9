package model

import "time"

// Ledger record statuses.
const (
	ContractStatusActive     = "active"
	ContractStatusTerminated = "terminated"
	InvoiceStatusPending     = "pending"
	InvoiceStatusPaid        = "paid"
)

// ExpenseRecord is a ledger entry created when an expense process completes.
type ExpenseRecord struct {
	ID          string    `json:"id"`
	ProcessID   string    `json:"process_id"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// ContractRecord is a ledger entry created when a contract process completes.
type ContractRecord struct {
	ID           string    `json:"id"`
	ProcessID    string    `json:"process_id"`
	Counterparty string    `json:"counterparty,omitempty"`
	Amount       float64   `json:"amount"`
	Status       string    `json:"status"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// InvoiceRecord is a billing entry issued against a contract.
type InvoiceRecord struct {
	ID         string    `json:"id"`
	ContractID string    `json:"contract_id"`
	Amount     float64   `json:"amount"`
	Status     string    `json:"status"`
	DueDate    time.Time `json:"due_date,omitempty"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Billing describes the invoice to issue against a contract.
type Billing struct {
	Amount  float64   `json:"amount"`
	DueDate time.Time `json:"due_date,omitempty"`
}

// AggregateBucket is one count/sum rollup in the dashboard.
type AggregateBucket struct {
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

// DashboardAggregate is the read-only rollup computed over ledger records
// filtered by status. It is not part of process state.
type DashboardAggregate struct {
	ActiveContracts AggregateBucket `json:"active_contracts"`
	PendingInvoices AggregateBucket `json:"pending_invoices"`
	PaidInvoices    AggregateBucket `json:"paid_invoices"`
}

// PeriodReport is the output of a monthly closing run. One report exists per
// billing period; re-running a closed period is a no-op.
type PeriodReport struct {
	Period    string             `json:"period"`
	Dashboard DashboardAggregate `json:"dashboard"`
	ClosedAt  time.Time          `json:"closed_at"`
}
