package models_test

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
	"gorm.io/gorm"
)

func TestLineItemMutations_RecomputeVoucherTotal(t *testing.T) {
	setupTestDB(t)
	ctx := bookkeeperCtx()
	v := createSale(t, ctx, "2024-03-05", "100")

	extra := debit(1910, "50")
	extra.VoucherId = v.VoucherId
	line, err := models.CreateLineItem(ctx, &extra)
	if err != nil {
		t.Fatalf("CreateLineItem: %v", err)
	}
	stored, err := models.GetVoucher(ctx, v.VoucherId)
	if err != nil {
		t.Fatalf("GetVoucher: %v", err)
	}
	if !stored.TotalAmount.Equal(amount("150")) {
		t.Fatalf("expected total 150 after adding a line, got %s", stored.TotalAmount)
	}

	update := debit(1910, "75")
	if _, err := models.UpdateLineItem(ctx, line.LineId, &update); err != nil {
		t.Fatalf("UpdateLineItem: %v", err)
	}
	stored, _ = models.GetVoucher(ctx, v.VoucherId)
	if !stored.TotalAmount.Equal(amount("175")) {
		t.Fatalf("expected total 175 after update, got %s", stored.TotalAmount)
	}

	if _, err := models.DeleteLineItem(ctx, line.LineId); err != nil {
		t.Fatalf("DeleteLineItem: %v", err)
	}
	stored, _ = models.GetVoucher(ctx, v.VoucherId)
	if !stored.TotalAmount.Equal(amount("100")) || len(stored.Lines) != 2 {
		t.Fatalf("expected original two lines and total 100, got %d lines total %s", len(stored.Lines), stored.TotalAmount)
	}
	if _, err := models.GetLineItem(ctx, line.LineId); !errors.Is(err, models.ErrLineItemNotFound) {
		t.Fatalf("expected ErrLineItemNotFound, got %v", err)
	}
}

func TestLineItemMutations_Validation(t *testing.T) {
	setupTestDB(t)
	ctx := bookkeeperCtx()
	v := createSale(t, ctx, "2024-03-05", "100")

	noVoucher := debit(1930, "1")
	if _, err := models.CreateLineItem(ctx, &noVoucher); !errors.Is(err, models.ErrLineVoucherRequired) {
		t.Fatalf("expected ErrLineVoucherRequired, got %v", err)
	}
	bothSides := models.NewLineItem{VoucherId: v.VoucherId, AccountNo: 1930, DebitAmount: amount("1"), CreditAmount: amount("1")}
	if _, err := models.CreateLineItem(ctx, &bothSides); !errors.Is(err, models.ErrLineBothSides) {
		t.Fatalf("expected ErrLineBothSides, got %v", err)
	}
	unknown := debit(9999, "1")
	unknown.VoucherId = v.VoucherId
	if _, err := models.CreateLineItem(ctx, &unknown); !errors.Is(err, models.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	move := debit(1930, "100")
	move.VoucherId = v.VoucherId + 1
	if _, err := models.UpdateLineItem(ctx, v.Lines[0].LineId, &move); !errors.Is(err, models.ErrLineVoucherChange) {
		t.Fatalf("expected ErrLineVoucherChange, got %v", err)
	}
}

func TestLineItemAccess_OwnerOrAdmin(t *testing.T) {
	setupTestDB(t)
	v := createSale(t, bookkeeperCtx(), "2024-03-05", "100")
	createSale(t, asUser(otherUserId, utils.RoleBookkeeper), "2024-03-06", "40")
	other := asUser(otherUserId, utils.RoleBookkeeper)

	if _, err := models.GetLineItem(other, v.Lines[0].LineId); !errors.Is(err, utils.ErrorForbidden) {
		t.Fatalf("expected ErrorForbidden, got %v", err)
	}
	if _, err := models.GetLineItemsByVoucher(other, v.VoucherId); !errors.Is(err, utils.ErrorForbidden) {
		t.Fatalf("expected ErrorForbidden, got %v", err)
	}
	if _, err := models.DeleteLineItem(other, v.Lines[0].LineId); !errors.Is(err, utils.ErrorForbidden) {
		t.Fatalf("expected ErrorForbidden, got %v", err)
	}

	lines, err := models.GetLineItemsByVoucher(adminCtx(), v.VoucherId)
	if err != nil || len(lines) != 2 {
		t.Fatalf("admin GetLineItemsByVoucher: %d %v", len(lines), err)
	}

	mine, err := models.GetLineItemsByAccount(bookkeeperCtx(), 1930)
	if err != nil {
		t.Fatalf("GetLineItemsByAccount: %v", err)
	}
	if len(mine) != 1 || !mine[0].DebitAmount.Equal(amount("100")) {
		t.Fatalf("bookkeeper should only see own 1930 line, got %d", len(mine))
	}
	all, err := models.GetLineItemsByAccount(adminCtx(), 1930)
	if err != nil || len(all) != 2 {
		t.Fatalf("admin should see both 1930 lines, got %d %v", len(all), err)
	}
}

// correctAfterNextVoucherLoad links voucherId to correctionId right after the
// next query on vouchers, as a correction committing in between would.
func correctAfterNextVoucherLoad(t *testing.T, voucherId int, correctionId int) {
	t.Helper()
	db := config.GetDB()
	fired := false
	name := "test:correct_after_voucher_load"
	err := db.Callback().Query().After("gorm:query").Register(name, func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "vouchers" {
			return
		}
		fired = true
		err := db.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE vouchers SET corrected_by_voucher_id = ? WHERE voucher_id = ?", correctionId, voucherId).Error
		if err != nil {
			t.Errorf("mark corrected: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	t.Cleanup(func() { _ = db.Callback().Query().Remove(name) })
}

func TestLineItemMutations_CorrectionInBetweenLocksVoucher(t *testing.T) {
	setupTestDB(t)
	ctx := bookkeeperCtx()
	v := createSale(t, ctx, "2024-03-05", "100")
	other := createSale(t, ctx, "2024-03-06", "40")

	correctAfterNextVoucherLoad(t, v.VoucherId, other.VoucherId)
	extra := debit(1910, "5")
	extra.VoucherId = v.VoucherId
	if _, err := models.CreateLineItem(ctx, &extra); !errors.Is(err, models.ErrVoucherLocked) {
		t.Fatalf("expected ErrVoucherLocked, got %v", err)
	}

	stored, err := models.GetVoucher(ctx, v.VoucherId)
	if err != nil {
		t.Fatalf("GetVoucher: %v", err)
	}
	if stored.CorrectionState() != models.CorrectionStateCorrected {
		t.Fatalf("expected the voucher to be Corrected, got %s", stored.CorrectionState())
	}
	if len(stored.Lines) != 2 || !stored.TotalAmount.Equal(amount("100")) {
		t.Fatalf("corrected voucher changed: %d lines total %s", len(stored.Lines), stored.TotalAmount)
	}
}
