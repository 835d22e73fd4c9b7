package models_test

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
)

func countRows[T any](t *testing.T, where string, args ...interface{}) int64 {
	t.Helper()
	n, err := utils.ResourceCountWhere[T](context.Background(), where, args...)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestCreateVoucher_StoresHeaderAndLinesAtomically(t *testing.T) {
	setupTestDB(t)
	ctx := bookkeeperCtx()

	v, err := models.CreateVoucher(ctx, newVoucherInput(t, "2024-03-05", "Kontantförsäljning",
		debit(1910, "1250"), credit(3001, "1000"), credit(2610, "250")))
	if err != nil {
		t.Fatalf("CreateVoucher: %v", err)
	}
	if v.VoucherNumber != 1 {
		t.Fatalf("expected voucher number 1, got %d", v.VoucherNumber)
	}
	if v.Period != "2024-03" {
		t.Fatalf("expected period derived from date, got %q", v.Period)
	}
	if v.CreatedBy != bookkeeperId {
		t.Fatalf("expected created_by %d, got %d", bookkeeperId, v.CreatedBy)
	}
	if !v.TotalAmount.Equal(amount("1250")) {
		t.Fatalf("expected total 1250, got %s", v.TotalAmount)
	}
	if n := countRows[models.LineItem](t, "voucher_id = ?", v.VoucherId); n != 3 {
		t.Fatalf("expected 3 stored lines, got %d", n)
	}
	if n := countRows[models.VoucherOutbox](t, "voucher_id = ? AND event_type = ?", v.VoucherId, models.VoucherEventCreated); n != 1 {
		t.Fatalf("expected one voucher.created event, got %d", n)
	}

	second := createSale(t, ctx, "2024-03-06", "100")
	if second.VoucherNumber != 2 {
		t.Fatalf("expected voucher number 2, got %d", second.VoucherNumber)
	}
}

func TestCreateVoucher_DropsBlankRows(t *testing.T) {
	setupTestDB(t)
	ctx := bookkeeperCtx()

	v, err := models.CreateVoucher(ctx, newVoucherInput(t, "2024-03-05", "Med tomma rader",
		debit(1930, "500"), models.NewLineItem{}, credit(3001, "500"), models.NewLineItem{AccountNo: 1910}))
	if err != nil {
		t.Fatalf("CreateVoucher: %v", err)
	}
	if len(v.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(v.Lines))
	}
}

func TestCreateVoucher_RejectsInvalidSubmissions(t *testing.T) {
	setupTestDB(t)
	ctx := bookkeeperCtx()

	cases := []struct {
		name  string
		input *models.NewVoucher
		want  error
	}{
		{"unbalanced", newVoucherInput(t, "2024-03-05", "x", debit(1930, "100"), credit(3001, "90")), models.ErrVoucherNotBalanced},
		{"single line", newVoucherInput(t, "2024-03-05", "x", debit(1930, "100")), models.ErrVoucherTooFewLines},
		{"zero debit", newVoucherInput(t, "2024-03-05", "x", credit(1930, "100"), credit(3001, "100")), models.ErrVoucherZeroTotal},
		{"both sides", newVoucherInput(t, "2024-03-05", "x",
			models.NewLineItem{AccountNo: 1930, DebitAmount: amount("1"), CreditAmount: amount("1")}, credit(3001, "1")), models.ErrLineBothSides},
		{"unknown account", newVoucherInput(t, "2024-03-05", "x", debit(9999, "100"), credit(3001, "100")), models.ErrAccountNotFound},
		{"bad tax code", newVoucherInput(t, "2024-03-05", "x",
			models.NewLineItem{AccountNo: 1930, DebitAmount: amount("100"), TaxCode: 7}, credit(3001, "100")), models.ErrLineInvalidTaxCode},
		{"no date", &models.NewVoucher{Description: "x", Lines: []models.NewLineItem{debit(1930, "1"), credit(3001, "1")}}, models.ErrVoucherDateRequired},
	}
	for _, tc := range cases {
		_, err := models.CreateVoucher(ctx, tc.input)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	mismatch := newVoucherInput(t, "2024-03-05", "x", debit(1930, "1"), credit(3001, "1"))
	mismatch.Period = "2024-04"
	if _, err := models.CreateVoucher(ctx, mismatch); !errors.Is(err, models.ErrPeriodMismatch) {
		t.Fatalf("expected ErrPeriodMismatch, got %v", err)
	}

	if n := countRows[models.Voucher](t, "1 = 1"); n != 0 {
		t.Fatalf("rejected submissions must not store vouchers, found %d", n)
	}
	if n := countRows[models.LineItem](t, "1 = 1"); n != 0 {
		t.Fatalf("rejected submissions must not store lines, found %d", n)
	}
}

func TestCreateVoucher_RequiresIdentity(t *testing.T) {
	setupTestDB(t)
	_, err := models.CreateVoucher(context.Background(), newVoucherInput(t, "2024-03-05", "x", debit(1930, "1"), credit(3001, "1")))
	if !errors.Is(err, utils.ErrorUnauthorized) {
		t.Fatalf("expected ErrorUnauthorized, got %v", err)
	}
}

func TestVoucherVisibility_OwnerOrAdmin(t *testing.T) {
	setupTestDB(t)
	mine := createSale(t, bookkeeperCtx(), "2024-03-05", "100")
	theirs := createSale(t, asUser(otherUserId, utils.RoleBookkeeper), "2024-04-01", "200")

	if _, err := models.GetVoucher(bookkeeperCtx(), theirs.VoucherId); !errors.Is(err, utils.ErrorForbidden) {
		t.Fatalf("expected ErrorForbidden for another user's voucher, got %v", err)
	}
	if _, err := models.GetVoucher(adminCtx(), theirs.VoucherId); err != nil {
		t.Fatalf("admin GetVoucher: %v", err)
	}
	if _, err := models.GetVoucher(bookkeeperCtx(), 9999); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	list, err := models.GetVouchers(bookkeeperCtx())
	if err != nil {
		t.Fatalf("GetVouchers: %v", err)
	}
	if len(list) != 1 || list[0].VoucherId != mine.VoucherId {
		t.Fatalf("bookkeeper should only see own voucher, got %d vouchers", len(list))
	}
	if len(list[0].Lines) != 2 {
		t.Fatalf("expected lines preloaded, got %d", len(list[0].Lines))
	}

	all, err := models.GetVouchers(adminCtx())
	if err != nil {
		t.Fatalf("GetVouchers admin: %v", err)
	}
	if len(all) != 2 || all[0].VoucherNumber != 2 {
		t.Fatalf("admin should see both vouchers newest first, got %d", len(all))
	}

	if _, err := models.GetVouchersByUser(bookkeeperCtx(), otherUserId); !errors.Is(err, utils.ErrorForbidden) {
		t.Fatalf("expected ErrorForbidden, got %v", err)
	}
	byUser, err := models.GetVouchersByUser(adminCtx(), otherUserId)
	if err != nil || len(byUser) != 1 {
		t.Fatalf("GetVouchersByUser admin: %d %v", len(byUser), err)
	}
}

func TestGetVouchersByPeriodAndPeriods(t *testing.T) {
	setupTestDB(t)
	ctx := adminCtx()
	createSale(t, ctx, "2024-02-10", "100")
	createSale(t, ctx, "2024-03-05", "100")
	createSale(t, ctx, "2024-03-20", "100")

	march, err := models.GetVouchersByPeriod(ctx, "2024-03")
	if err != nil {
		t.Fatalf("GetVouchersByPeriod: %v", err)
	}
	if len(march) != 2 {
		t.Fatalf("expected 2 vouchers in 2024-03, got %d", len(march))
	}
	if _, err := models.GetVouchersByPeriod(ctx, "2024-3"); !errors.Is(err, models.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}

	periods, err := models.GetPeriods(ctx)
	if err != nil {
		t.Fatalf("GetPeriods: %v", err)
	}
	if len(periods) != 2 || periods[0] != "2024-03" || periods[1] != "2024-02" {
		t.Fatalf("unexpected periods %v", periods)
	}
}

func TestUpdateVoucher_AdminOnlyAndReplacesLines(t *testing.T) {
	setupTestDB(t)
	v := createSale(t, bookkeeperCtx(), "2024-03-05", "100")

	input := newVoucherInput(t, "2024-03-07", "Rättad text", debit(1930, "300"), credit(3001, "240"), credit(2610, "60"))
	if _, err := models.UpdateVoucher(bookkeeperCtx(), v.VoucherId, input); !errors.Is(err, utils.ErrorForbidden) {
		t.Fatalf("expected forbidden for bookkeeper, got %v", err)
	}

	updated, err := models.UpdateVoucher(adminCtx(), v.VoucherId, input)
	if err != nil {
		t.Fatalf("UpdateVoucher: %v", err)
	}
	if updated.Description != "Rättad text" || !updated.TotalAmount.Equal(amount("300")) {
		t.Fatalf("unexpected updated voucher %+v", updated)
	}
	if updated.VoucherNumber != v.VoucherNumber {
		t.Fatalf("voucher number must not change")
	}
	if n := countRows[models.LineItem](t, "voucher_id = ?", v.VoucherId); n != 3 {
		t.Fatalf("expected 3 lines after update, got %d", n)
	}
}

func TestDeleteVoucher_RemovesLines(t *testing.T) {
	setupTestDB(t)
	v := createSale(t, bookkeeperCtx(), "2024-03-05", "100")

	if _, err := models.DeleteVoucher(bookkeeperCtx(), v.VoucherId); !errors.Is(err, models.ErrAdminOnly) {
		t.Fatalf("expected ErrAdminOnly, got %v", err)
	}
	if _, err := models.DeleteVoucher(adminCtx(), v.VoucherId); err != nil {
		t.Fatalf("DeleteVoucher: %v", err)
	}
	if n := countRows[models.LineItem](t, "voucher_id = ?", v.VoucherId); n != 0 {
		t.Fatalf("expected lines deleted, got %d", n)
	}
	if n := countRows[models.VoucherOutbox](t, "voucher_id = ? AND event_type = ?", v.VoucherId, models.VoucherEventDeleted); n != 1 {
		t.Fatalf("expected voucher.deleted event, got %d", n)
	}
}

func TestValidateVoucher_ReportsStoredBalance(t *testing.T) {
	setupTestDB(t)
	ctx := bookkeeperCtx()
	v := createSale(t, ctx, "2024-03-05", "100")

	res, err := models.ValidateVoucher(ctx, v.VoucherId)
	if err != nil {
		t.Fatalf("ValidateVoucher: %v", err)
	}
	if !res.IsBalanced || res.Message != "voucher is balanced" {
		t.Fatalf("expected balanced voucher, got %+v", res)
	}

	// unbalance the stored lines behind the model's back
	db := config.GetDB()
	if err := db.Model(&models.LineItem{}).Where("voucher_id = ? AND account_no = ?", v.VoucherId, 3001).
		Update("credit_amount", amount("80")).Error; err != nil {
		t.Fatalf("update: %v", err)
	}
	res, err = models.ValidateVoucher(ctx, v.VoucherId)
	if err != nil {
		t.Fatalf("ValidateVoucher: %v", err)
	}
	if res.IsBalanced || !res.Difference.Equal(amount("20")) {
		t.Fatalf("expected difference 20, got %+v", res)
	}
}
