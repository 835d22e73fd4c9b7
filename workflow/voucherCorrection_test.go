package workflow_test

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models/reports"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/workflow"
)

func TestCorrectVoucher_PostsReversalAndLinks(t *testing.T) {
	setupTestDB(t)
	ctx := asUser(2, utils.RoleBookkeeper)
	original := createVoucher(t, ctx, "2024-03-05", "Försäljning", line(1930, "1000", ""), line(3001, "", "1000"))

	correction, err := workflow.CorrectVoucher(ctx, original.VoucherId, workflow.CorrectVoucherInput{})
	if err != nil {
		t.Fatalf("CorrectVoucher: %v", err)
	}
	if correction.CorrectsVoucherId == nil || *correction.CorrectsVoucherId != original.VoucherId {
		t.Fatalf("correction must point at the original")
	}
	if correction.CorrectionKind != models.CorrectionKindReversal || correction.VoucherNumber != 2 {
		t.Fatalf("unexpected correction %+v", correction)
	}
	if correction.Description != "Rättelse av verifikat #1: Försäljning" {
		t.Fatalf("unexpected description %q", correction.Description)
	}
	if !correction.TotalAmount.Equal(amount("1000")) {
		t.Fatalf("expected total 1000, got %s", correction.TotalAmount)
	}

	stored, err := models.GetVoucher(ctx, original.VoucherId)
	if err != nil {
		t.Fatalf("GetVoucher: %v", err)
	}
	if stored.CorrectedByVoucherId == nil || *stored.CorrectedByVoucherId != correction.VoucherId {
		t.Fatalf("original must be linked to its correction")
	}
	if stored.CorrectionState() != models.CorrectionStateCorrected {
		t.Fatalf("expected Corrected, got %s", stored.CorrectionState())
	}

	ledger, err := models.GetLedger(ctx, 1930, "")
	if err != nil {
		t.Fatalf("GetLedger: %v", err)
	}
	if len(ledger.Entries) != 2 || !ledger.ClosingBalance.IsZero() {
		t.Fatalf("reversal must net the account to zero, got %d entries closing %s", len(ledger.Entries), ledger.ClosingBalance)
	}
	statement, err := reports.GetIncomeStatement(ctx, "2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatalf("GetIncomeStatement: %v", err)
	}
	if len(statement.Income) != 0 || !statement.NetResult.IsZero() {
		t.Fatalf("reversed sale must not show in the income statement")
	}
}

func TestCorrectVoucher_Rejections(t *testing.T) {
	setupTestDB(t)
	ctx := asUser(2, utils.RoleBookkeeper)
	original := createVoucher(t, ctx, "2024-03-05", "Försäljning", line(1930, "100", ""), line(3001, "", "100"))

	if _, err := workflow.CorrectVoucher(ctx, original.VoucherId, workflow.CorrectVoucherInput{UserId: 3}); !errors.Is(err, utils.ErrorForbidden) {
		t.Fatalf("expected ErrorForbidden for a foreign user_id, got %v", err)
	}
	other := asUser(3, utils.RoleBookkeeper)
	if _, err := workflow.CorrectVoucher(other, original.VoucherId, workflow.CorrectVoucherInput{}); !errors.Is(err, utils.ErrorForbidden) {
		t.Fatalf("expected ErrorForbidden for another user's voucher, got %v", err)
	}
	if _, err := workflow.CorrectVoucher(ctx, 999, workflow.CorrectVoucherInput{}); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	admin := asUser(1, utils.RoleAdmin)
	correction, err := workflow.CorrectVoucher(admin, original.VoucherId, workflow.CorrectVoucherInput{UserId: 2})
	if err != nil {
		t.Fatalf("admin CorrectVoucher: %v", err)
	}
	if correction.CreatedBy != 1 {
		t.Fatalf("correction belongs to the acting user, got %d", correction.CreatedBy)
	}

	_, err = workflow.CorrectVoucher(ctx, original.VoucherId, workflow.CorrectVoucherInput{})
	if !errors.Is(err, models.ErrVoucherAlreadyCorrected) || !workflow.IsCorrectionRejected(err) {
		t.Fatalf("expected ErrVoucherAlreadyCorrected, got %v", err)
	}
	_, err = workflow.CorrectVoucher(admin, correction.VoucherId, workflow.CorrectVoucherInput{})
	if !errors.Is(err, models.ErrCannotCorrectCorrection) || !workflow.IsCorrectionRejected(err) {
		t.Fatalf("expected ErrCannotCorrectCorrection, got %v", err)
	}

	var corrections int64
	if err := config.GetDB().Model(&models.VoucherOutbox{}).Where("event_type = ?", models.VoucherEventCorrected).Count(&corrections).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if corrections != 1 {
		t.Fatalf("expected exactly one correction event, got %d", corrections)
	}
}

func TestCorrectVoucherWithChanges_ReplacesOriginalInReports(t *testing.T) {
	setupTestDB(t)
	ctx := asUser(2, utils.RoleBookkeeper)
	original := createVoucher(t, ctx, "2024-03-05", "Försäljning", line(1930, "1000", ""), line(3001, "", "1000"))
	createVoucher(t, ctx, "2024-03-20", "Hyra", line(5010, "300", ""), line(1930, "", "300"))

	d, _ := models.ParseDate("2024-03-06")
	replacement, err := workflow.CorrectVoucherWithChanges(ctx, original.VoucherId, workflow.CorrectWithChangesInput{
		NewVoucher: workflow.CorrectionHeader{
			Date:        models.FlexibleDate(d),
			Description: "Försäljning, rätt belopp",
		},
		NewLineItems: []models.NewLineItem{line(1930, "800", ""), line(3001, "", "800")},
	})
	if err != nil {
		t.Fatalf("CorrectVoucherWithChanges: %v", err)
	}
	if replacement.CorrectionKind != models.CorrectionKindReplacement || replacement.Period != "2024-03" {
		t.Fatalf("unexpected replacement %+v", replacement)
	}
	if replacement.Description != "Försäljning, rätt belopp" || !replacement.TotalAmount.Equal(amount("800")) {
		t.Fatalf("replacement must carry the supplied values")
	}

	ledger, err := models.GetLedger(ctx, 1930, "2024-03")
	if err != nil {
		t.Fatalf("GetLedger: %v", err)
	}
	if len(ledger.Entries) != 2 || !ledger.ClosingBalance.Equal(amount("500")) {
		t.Fatalf("replaced original must be left out, got %d entries closing %s", len(ledger.Entries), ledger.ClosingBalance)
	}

	statement, err := reports.GetIncomeStatement(ctx, "2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatalf("GetIncomeStatement: %v", err)
	}
	if !statement.TotalIncome.Equal(amount("-800")) || !statement.TotalExpenses.Equal(amount("300")) {
		t.Fatalf("unexpected totals %s/%s", statement.TotalIncome, statement.TotalExpenses)
	}
	if !statement.NetResult.Equal(amount("-500")) {
		t.Fatalf("expected net result -500, got %s", statement.NetResult)
	}
}

func TestCorrectVoucherWithChanges_InvalidReplacementKeepsOriginalOpen(t *testing.T) {
	setupTestDB(t)
	ctx := asUser(2, utils.RoleBookkeeper)
	original := createVoucher(t, ctx, "2024-03-05", "Försäljning", line(1930, "1000", ""), line(3001, "", "1000"))

	d, _ := models.ParseDate("2024-03-06")
	_, err := workflow.CorrectVoucherWithChanges(ctx, original.VoucherId, workflow.CorrectWithChangesInput{
		NewVoucher:   workflow.CorrectionHeader{Date: models.FlexibleDate(d), Description: "Fel"},
		NewLineItems: []models.NewLineItem{line(1930, "800", ""), line(3001, "", "700")},
	})
	if !errors.Is(err, models.ErrVoucherNotBalanced) {
		t.Fatalf("expected ErrVoucherNotBalanced, got %v", err)
	}

	stored, err := models.GetVoucher(ctx, original.VoucherId)
	if err != nil {
		t.Fatalf("GetVoucher: %v", err)
	}
	if stored.CorrectionState() != models.CorrectionStateOpen {
		t.Fatalf("original must stay open, got %s", stored.CorrectionState())
	}
}
