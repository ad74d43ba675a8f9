// Package ledger implements the financial backend the engine dispatches
// completed approvals into: expense and contract registration, invoicing,
// dashboard aggregation, and the monthly closing run.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ringihq/ringi/internal/idempotency"
	"github.com/ringihq/ringi/model"
)

// Gateway is the ledger surface exposed to the dispatcher and the HTTP layer.
type Gateway interface {
	// RegisterExpense records an approved expense. Idempotent per process ID:
	// a retried dispatch returns the existing record instead of duplicating it.
	RegisterExpense(ctx context.Context, processID string, payload map[string]any) (model.ExpenseRecord, error)

	// RegisterContract records an approved contract as active. Idempotent per
	// process ID. If the payload carries a billing block, an invoice is issued
	// against the new contract.
	RegisterContract(ctx context.Context, processID string, payload map[string]any) (model.ContractRecord, error)

	// CreateInvoice issues a pending invoice against an existing contract.
	CreateInvoice(ctx context.Context, contractID string, billing model.Billing) (model.InvoiceRecord, error)

	// MarkInvoicePaid moves a pending invoice to paid.
	MarkInvoicePaid(ctx context.Context, invoiceID string) (model.InvoiceRecord, error)

	// Dashboard computes count/sum rollups over the current ledger records.
	Dashboard(ctx context.Context) (model.DashboardAggregate, error)

	// CloseMonth runs the monthly closing for a billing period ("2026-08").
	// The run is idempotent per period: the first call snapshots the dashboard
	// into a period report, later calls return the stored report unchanged.
	CloseMonth(ctx context.Context, period string) (model.PeriodReport, error)

	// Report returns the stored closing report for a period.
	Report(ctx context.Context, period string) (model.PeriodReport, error)
}

// MemoryGateway is an in-memory Gateway for testing and single-instance
// deployments.
type MemoryGateway struct {
	mu        sync.RWMutex
	expenses  map[string]model.ExpenseRecord  // keyed by process ID
	contracts map[string]model.ContractRecord // keyed by process ID
	invoices  map[string]model.InvoiceRecord  // keyed by invoice ID
	reports   map[string]model.PeriodReport   // keyed by period

	guard  idempotency.Guard
	logger *zap.Logger
}

// NewMemoryGateway creates a new in-memory ledger. The guard serializes
// monthly closing runs; a nil guard falls back to an in-memory one.
func NewMemoryGateway(guard idempotency.Guard, logger *zap.Logger) *MemoryGateway {
	if guard == nil {
		guard = idempotency.NewMemoryGuard()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryGateway{
		expenses:  make(map[string]model.ExpenseRecord),
		contracts: make(map[string]model.ContractRecord),
		invoices:  make(map[string]model.InvoiceRecord),
		reports:   make(map[string]model.PeriodReport),
		guard:     guard,
		logger:    logger,
	}
}

// RegisterExpense records an approved expense.
func (g *MemoryGateway) RegisterExpense(_ context.Context, processID string, payload map[string]any) (model.ExpenseRecord, error) {
	amount, err := payloadAmount(payload)
	if err != nil {
		return model.ExpenseRecord{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, exists := g.expenses[processID]; exists {
		return existing, nil
	}

	rec := model.ExpenseRecord{
		ID:          uuid.New().String(),
		ProcessID:   processID,
		Amount:      amount,
		Category:    payloadString(payload, "category"),
		Description: payloadString(payload, "description"),
		RecordedAt:  time.Now().UTC(),
	}
	g.expenses[processID] = rec

	g.logger.Info("expense registered",
		zap.String("process_id", processID),
		zap.Float64("amount", amount),
	)
	return rec, nil
}

// RegisterContract records an approved contract and issues its first invoice
// when the payload carries billing terms.
func (g *MemoryGateway) RegisterContract(_ context.Context, processID string, payload map[string]any) (model.ContractRecord, error) {
	amount, err := payloadAmount(payload)
	if err != nil {
		return model.ContractRecord{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, exists := g.contracts[processID]; exists {
		return existing, nil
	}

	rec := model.ContractRecord{
		ID:           uuid.New().String(),
		ProcessID:    processID,
		Counterparty: payloadString(payload, "counterparty"),
		Amount:       amount,
		Status:       model.ContractStatusActive,
		RecordedAt:   time.Now().UTC(),
	}
	g.contracts[processID] = rec

	if billing, ok := payloadBilling(payload); ok {
		inv := g.issueInvoice(rec.ID, billing)
		g.logger.Info("invoice issued with contract",
			zap.String("contract_id", rec.ID),
			zap.String("invoice_id", inv.ID),
			zap.Float64("amount", inv.Amount),
		)
	}

	g.logger.Info("contract registered",
		zap.String("process_id", processID),
		zap.String("contract_id", rec.ID),
		zap.Float64("amount", amount),
	)
	return rec, nil
}

// CreateInvoice issues a pending invoice against an existing contract.
func (g *MemoryGateway) CreateInvoice(_ context.Context, contractID string, billing model.Billing) (model.InvoiceRecord, error) {
	if billing.Amount <= 0 {
		return model.InvoiceRecord{}, model.NewBadRequestError("invoice amount must be positive")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.contractExists(contractID) {
		return model.InvoiceRecord{}, model.NewNotFoundError(
			fmt.Sprintf("contract %q not found", contractID),
		)
	}

	inv := g.issueInvoice(contractID, billing)
	g.logger.Info("invoice issued",
		zap.String("contract_id", contractID),
		zap.String("invoice_id", inv.ID),
	)
	return inv, nil
}

// MarkInvoicePaid moves a pending invoice to paid.
func (g *MemoryGateway) MarkInvoicePaid(_ context.Context, invoiceID string) (model.InvoiceRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	inv, exists := g.invoices[invoiceID]
	if !exists {
		return model.InvoiceRecord{}, model.NewNotFoundError(
			fmt.Sprintf("invoice %q not found", invoiceID),
		)
	}
	if inv.Status == model.InvoiceStatusPaid {
		return inv, nil
	}

	inv.Status = model.InvoiceStatusPaid
	g.invoices[invoiceID] = inv
	return inv, nil
}

// Dashboard computes count/sum rollups over the current records.
func (g *MemoryGateway) Dashboard(_ context.Context) (model.DashboardAggregate, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.aggregate(), nil
}

// CloseMonth runs the monthly closing for a billing period.
func (g *MemoryGateway) CloseMonth(ctx context.Context, period string) (model.PeriodReport, error) {
	if err := validatePeriod(period); err != nil {
		return model.PeriodReport{}, err
	}

	acquired, err := g.guard.Acquire(ctx, idempotency.FormatClosingKey(period), 0)
	if err != nil {
		return model.PeriodReport{}, model.NewPersistenceError(
			fmt.Sprintf("closing guard for %q: %v", period, err),
		)
	}
	if !acquired {
		// Already closed; hand back the stored report.
		return g.Report(ctx, period)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	report := model.PeriodReport{
		Period:    period,
		Dashboard: g.aggregate(),
		ClosedAt:  time.Now().UTC(),
	}
	g.reports[period] = report

	g.logger.Info("billing period closed",
		zap.String("period", period),
		zap.Int("active_contracts", report.Dashboard.ActiveContracts.Count),
		zap.Int("pending_invoices", report.Dashboard.PendingInvoices.Count),
	)
	return report, nil
}

// Report returns the stored closing report for a period.
func (g *MemoryGateway) Report(_ context.Context, period string) (model.PeriodReport, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	report, exists := g.reports[period]
	if !exists {
		return model.PeriodReport{}, model.NewNotFoundError(
			fmt.Sprintf("no closing report for period %q", period),
		)
	}
	return report, nil
}

// Expenses returns all registered expenses, oldest first. For testing.
func (g *MemoryGateway) Expenses() []model.ExpenseRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]model.ExpenseRecord, 0, len(g.expenses))
	for _, e := range g.expenses {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RecordedAt.Before(result[j].RecordedAt)
	})
	return result
}

// Contracts returns all registered contracts, oldest first. For testing.
func (g *MemoryGateway) Contracts() []model.ContractRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]model.ContractRecord, 0, len(g.contracts))
	for _, c := range g.contracts {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RecordedAt.Before(result[j].RecordedAt)
	})
	return result
}

// Invoices returns all invoices for a contract, oldest first. For testing
// and the dashboard handler.
func (g *MemoryGateway) Invoices(contractID string) []model.InvoiceRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var result []model.InvoiceRecord
	for _, inv := range g.invoices {
		if inv.ContractID == contractID {
			result = append(result, inv)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].IssuedAt.Before(result[j].IssuedAt)
	})
	return result
}

// aggregate builds the dashboard rollup. Caller holds at least a read lock.
func (g *MemoryGateway) aggregate() model.DashboardAggregate {
	var agg model.DashboardAggregate
	for _, c := range g.contracts {
		if c.Status == model.ContractStatusActive {
			agg.ActiveContracts.Count++
			agg.ActiveContracts.Total += c.Amount
		}
	}
	for _, inv := range g.invoices {
		switch inv.Status {
		case model.InvoiceStatusPending:
			agg.PendingInvoices.Count++
			agg.PendingInvoices.Total += inv.Amount
		case model.InvoiceStatusPaid:
			agg.PaidInvoices.Count++
			agg.PaidInvoices.Total += inv.Amount
		}
	}
	return agg
}

// issueInvoice creates and stores a pending invoice. Caller holds the lock.
func (g *MemoryGateway) issueInvoice(contractID string, billing model.Billing) model.InvoiceRecord {
	inv := model.InvoiceRecord{
		ID:         uuid.New().String(),
		ContractID: contractID,
		Amount:     billing.Amount,
		Status:     model.InvoiceStatusPending,
		DueDate:    billing.DueDate,
		IssuedAt:   time.Now().UTC(),
	}
	g.invoices[inv.ID] = inv
	return inv
}

// contractExists checks contract IDs. Caller holds the lock.
func (g *MemoryGateway) contractExists(contractID string) bool {
	for _, c := range g.contracts {
		if c.ID == contractID {
			return true
		}
	}
	return false
}

// validatePeriod checks the "YYYY-MM" period format.
func validatePeriod(period string) error {
	if _, err := time.Parse("2006-01", period); err != nil {
		return model.NewBadRequestError(
			fmt.Sprintf("period %q is not in YYYY-MM format", period),
		)
	}
	return nil
}

// payloadAmount extracts the required numeric amount field.
func payloadAmount(payload map[string]any) (float64, error) {
	raw, exists := payload["amount"]
	if !exists {
		return 0, model.NewBadRequestError("payload has no amount field")
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, model.NewBadRequestError(
			fmt.Sprintf("payload amount has type %T, want a number", raw),
		)
	}
}

// payloadString extracts an optional string field.
func payloadString(payload map[string]any, field string) string {
	if v, ok := payload[field].(string); ok {
		return v
	}
	return ""
}

// payloadBilling extracts an optional billing block from a contract payload.
func payloadBilling(payload map[string]any) (model.Billing, bool) {
	raw, ok := payload["billing"].(map[string]any)
	if !ok {
		return model.Billing{}, false
	}

	var billing model.Billing
	switch v := raw["amount"].(type) {
	case float64:
		billing.Amount = v
	case int:
		billing.Amount = float64(v)
	}
	if billing.Amount <= 0 {
		return model.Billing{}, false
	}
	if due, ok := raw["due_date"].(string); ok {
		if t, err := time.Parse(time.RFC3339, due); err == nil {
			billing.DueDate = t
		}
	}
	return billing, true
}
