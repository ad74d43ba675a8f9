package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/ringihq/ringi/model"
)

func newTestGateway() *MemoryGateway {
	return NewMemoryGateway(nil, nil)
}

func TestMemoryGateway_RegisterExpense(t *testing.T) {
	gw := newTestGateway()
	ctx := context.Background()

	rec, err := gw.RegisterExpense(ctx, "expense_approval-1-000001", map[string]any{
		"amount":      45000.0,
		"category":    "travel",
		"description": "client visit",
	})
	if err != nil {
		t.Fatalf("RegisterExpense error: %v", err)
	}
	if rec.Amount != 45000 {
		t.Errorf("Amount = %v, want 45000", rec.Amount)
	}
	if rec.Category != "travel" {
		t.Errorf("Category = %q", rec.Category)
	}
	if rec.ProcessID != "expense_approval-1-000001" {
		t.Errorf("ProcessID = %q", rec.ProcessID)
	}
	if rec.ID == "" || rec.RecordedAt.IsZero() {
		t.Error("record not fully stamped")
	}
}

func TestMemoryGateway_RegisterExpense_idempotentPerProcess(t *testing.T) {
	gw := newTestGateway()
	ctx := context.Background()
	payload := map[string]any{"amount": 45000.0}

	first, err := gw.RegisterExpense(ctx, "p-1", payload)
	if err != nil {
		t.Fatalf("RegisterExpense error: %v", err)
	}
	second, err := gw.RegisterExpense(ctx, "p-1", payload)
	if err != nil {
		t.Fatalf("retried RegisterExpense error: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("retry created a new record: %q vs %q", second.ID, first.ID)
	}
}

func TestMemoryGateway_RegisterExpense_missingAmount(t *testing.T) {
	gw := newTestGateway()

	_, err := gw.RegisterExpense(context.Background(), "p-1", map[string]any{"description": "oops"})
	if model.CodeOf(err) != model.ErrBadRequest {
		t.Errorf("code = %s, want BAD_REQUEST", model.CodeOf(err))
	}
}

func TestMemoryGateway_RegisterContract(t *testing.T) {
	gw := newTestGateway()
	ctx := context.Background()

	rec, err := gw.RegisterContract(ctx, "contract_approval-1-000001", map[string]any{
		"amount":       5000000.0,
		"counterparty": "Acme KK",
	})
	if err != nil {
		t.Fatalf("RegisterContract error: %v", err)
	}
	if rec.Status != model.ContractStatusActive {
		t.Errorf("Status = %q, want active", rec.Status)
	}
	if rec.Counterparty != "Acme KK" {
		t.Errorf("Counterparty = %q", rec.Counterparty)
	}

	// Without billing terms no invoice is issued.
	if got := gw.Invoices(rec.ID); len(got) != 0 {
		t.Errorf("invoices = %d, want 0", len(got))
	}
}

func TestMemoryGateway_RegisterContract_withBillingIssuesInvoice(t *testing.T) {
	gw := newTestGateway()
	ctx := context.Background()

	rec, err := gw.RegisterContract(ctx, "p-1", map[string]any{
		"amount":       12000000.0,
		"counterparty": "Globex",
		"billing": map[string]any{
			"amount":   1000000.0,
			"due_date": "2026-10-01T00:00:00Z",
		},
	})
	if err != nil {
		t.Fatalf("RegisterContract error: %v", err)
	}

	invoices := gw.Invoices(rec.ID)
	if len(invoices) != 1 {
		t.Fatalf("invoices = %d, want 1", len(invoices))
	}
	inv := invoices[0]
	if inv.Amount != 1000000 {
		t.Errorf("invoice Amount = %v, want 1000000", inv.Amount)
	}
	if inv.Status != model.InvoiceStatusPending {
		t.Errorf("invoice Status = %q, want pending", inv.Status)
	}
	if inv.DueDate.Format("2006-01-02") != "2026-10-01" {
		t.Errorf("invoice DueDate = %v", inv.DueDate)
	}
}

func TestMemoryGateway_CreateInvoice(t *testing.T) {
	gw := newTestGateway()
	ctx := context.Background()

	rec, _ := gw.RegisterContract(ctx, "p-1", map[string]any{"amount": 100000.0})

	inv, err := gw.CreateInvoice(ctx, rec.ID, model.Billing{Amount: 25000})
	if err != nil {
		t.Fatalf("CreateInvoice error: %v", err)
	}
	if inv.ContractID != rec.ID {
		t.Errorf("ContractID = %q, want %q", inv.ContractID, rec.ID)
	}
	if inv.Status != model.InvoiceStatusPending {
		t.Errorf("Status = %q, want pending", inv.Status)
	}
}

func TestMemoryGateway_CreateInvoice_unknownContract(t *testing.T) {
	gw := newTestGateway()

	_, err := gw.CreateInvoice(context.Background(), "no-such-contract", model.Billing{Amount: 100})
	if model.CodeOf(err) != model.ErrNotFound {
		t.Errorf("code = %s, want NOT_FOUND", model.CodeOf(err))
	}
}

func TestMemoryGateway_CreateInvoice_nonPositiveAmount(t *testing.T) {
	gw := newTestGateway()

	_, err := gw.CreateInvoice(context.Background(), "any", model.Billing{Amount: 0})
	if model.CodeOf(err) != model.ErrBadRequest {
		t.Errorf("code = %s, want BAD_REQUEST", model.CodeOf(err))
	}
}

func TestMemoryGateway_MarkInvoicePaid(t *testing.T) {
	gw := newTestGateway()
	ctx := context.Background()

	rec, _ := gw.RegisterContract(ctx, "p-1", map[string]any{"amount": 100000.0})
	inv, _ := gw.CreateInvoice(ctx, rec.ID, model.Billing{Amount: 25000})

	paid, err := gw.MarkInvoicePaid(ctx, inv.ID)
	if err != nil {
		t.Fatalf("MarkInvoicePaid error: %v", err)
	}
	if paid.Status != model.InvoiceStatusPaid {
		t.Errorf("Status = %q, want paid", paid.Status)
	}

	// Paying twice is a no-op.
	again, err := gw.MarkInvoicePaid(ctx, inv.ID)
	if err != nil {
		t.Fatalf("second MarkInvoicePaid error: %v", err)
	}
	if again.Status != model.InvoiceStatusPaid {
		t.Errorf("Status = %q after second pay", again.Status)
	}

	if _, err := gw.MarkInvoicePaid(ctx, "missing"); model.CodeOf(err) != model.ErrNotFound {
		t.Errorf("code = %s, want NOT_FOUND", model.CodeOf(err))
	}
}

func TestMemoryGateway_Dashboard(t *testing.T) {
	gw := newTestGateway()
	ctx := context.Background()

	// Two active contracts, three invoices (two pending, one paid).
	c1, _ := gw.RegisterContract(ctx, "p-1", map[string]any{"amount": 1000000.0})
	c2, _ := gw.RegisterContract(ctx, "p-2", map[string]any{"amount": 3000000.0})
	_, _ = gw.CreateInvoice(ctx, c1.ID, model.Billing{Amount: 100000})
	_, _ = gw.CreateInvoice(ctx, c2.ID, model.Billing{Amount: 200000})
	inv, _ := gw.CreateInvoice(ctx, c2.ID, model.Billing{Amount: 300000})
	_, _ = gw.MarkInvoicePaid(ctx, inv.ID)

	agg, err := gw.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard error: %v", err)
	}
	if agg.ActiveContracts.Count != 2 || agg.ActiveContracts.Total != 4000000 {
		t.Errorf("ActiveContracts = %+v, want count 2 total 4000000", agg.ActiveContracts)
	}
	if agg.PendingInvoices.Count != 2 || agg.PendingInvoices.Total != 300000 {
		t.Errorf("PendingInvoices = %+v, want count 2 total 300000", agg.PendingInvoices)
	}
	if agg.PaidInvoices.Count != 1 || agg.PaidInvoices.Total != 300000 {
		t.Errorf("PaidInvoices = %+v, want count 1 total 300000", agg.PaidInvoices)
	}
}

func TestMemoryGateway_Dashboard_empty(t *testing.T) {
	gw := newTestGateway()

	agg, err := gw.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard error: %v", err)
	}
	if agg.ActiveContracts.Count != 0 || agg.PendingInvoices.Count != 0 || agg.PaidInvoices.Count != 0 {
		t.Errorf("empty ledger aggregate = %+v, want all zero", agg)
	}
}

func TestMemoryGateway_CloseMonth_idempotent(t *testing.T) {
	gw := newTestGateway()
	ctx := context.Background()

	c, _ := gw.RegisterContract(ctx, "p-1", map[string]any{"amount": 1000000.0})
	_, _ = gw.CreateInvoice(ctx, c.ID, model.Billing{Amount: 100000})

	first, err := gw.CloseMonth(ctx, "2026-08")
	if err != nil {
		t.Fatalf("CloseMonth error: %v", err)
	}
	if first.Period != "2026-08" {
		t.Errorf("Period = %q", first.Period)
	}
	if first.Dashboard.PendingInvoices.Count != 1 {
		t.Errorf("snapshot PendingInvoices.Count = %d, want 1", first.Dashboard.PendingInvoices.Count)
	}

	// More activity after the close must not leak into a rerun.
	_, _ = gw.CreateInvoice(ctx, c.ID, model.Billing{Amount: 999999})

	second, err := gw.CloseMonth(ctx, "2026-08")
	if err != nil {
		t.Fatalf("second CloseMonth error: %v", err)
	}
	if second.Dashboard.PendingInvoices.Count != 1 {
		t.Errorf("rerun PendingInvoices.Count = %d, want the original snapshot", second.Dashboard.PendingInvoices.Count)
	}
	if !second.ClosedAt.Equal(first.ClosedAt) {
		t.Errorf("ClosedAt changed on rerun: %v vs %v", second.ClosedAt, first.ClosedAt)
	}

	// A different period closes independently.
	next, err := gw.CloseMonth(ctx, "2026-09")
	if err != nil {
		t.Fatalf("CloseMonth error: %v", err)
	}
	if next.Dashboard.PendingInvoices.Count != 2 {
		t.Errorf("next period PendingInvoices.Count = %d, want 2", next.Dashboard.PendingInvoices.Count)
	}
}

func TestMemoryGateway_CloseMonth_badPeriod(t *testing.T) {
	gw := newTestGateway()

	for _, period := range []string{"", "2026", "2026/08", "Aug-2026", "2026-13"} {
		_, err := gw.CloseMonth(context.Background(), period)
		if model.CodeOf(err) != model.ErrBadRequest {
			t.Errorf("period %q: code = %s, want BAD_REQUEST", period, model.CodeOf(err))
		}
	}
}

func TestMemoryGateway_Report(t *testing.T) {
	gw := newTestGateway()
	ctx := context.Background()

	if _, err := gw.Report(ctx, "2026-08"); model.CodeOf(err) != model.ErrNotFound {
		t.Errorf("code = %s, want NOT_FOUND before close", model.CodeOf(err))
	}

	closed, _ := gw.CloseMonth(ctx, "2026-08")
	report, err := gw.Report(ctx, "2026-08")
	if err != nil {
		t.Fatalf("Report error: %v", err)
	}
	if !report.ClosedAt.Equal(closed.ClosedAt) {
		t.Errorf("Report ClosedAt = %v, want %v", report.ClosedAt, closed.ClosedAt)
	}
}

func TestMemoryGateway_integerAmountsAccepted(t *testing.T) {
	gw := newTestGateway()
	ctx := context.Background()

	rec, err := gw.RegisterExpense(ctx, "p-1", map[string]any{"amount": 45000})
	if err != nil {
		t.Fatalf("RegisterExpense error: %v", err)
	}
	if rec.Amount != 45000 {
		t.Errorf("Amount = %v, want 45000", rec.Amount)
	}

	_, err = gw.RegisterExpense(ctx, "p-2", map[string]any{"amount": "45000"})
	if model.CodeOf(err) != model.ErrBadRequest {
		t.Errorf("string amount code = %s, want BAD_REQUEST", model.CodeOf(err))
	}
}

func TestMemoryGateway_ClosedAtIsUTC(t *testing.T) {
	gw := newTestGateway()

	report, err := gw.CloseMonth(context.Background(), "2026-08")
	if err != nil {
		t.Fatalf("CloseMonth error: %v", err)
	}
	if report.ClosedAt.Location() != time.UTC {
		t.Errorf("ClosedAt location = %v, want UTC", report.ClosedAt.Location())
	}
}
