package models_test

import (
	"context"
	"fmt"
	"testing"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
	"github.com/shopspring/decimal"
)

const (
	adminId      = 1
	bookkeeperId = 2
	otherUserId  = 3
)

// setupTestDB installs a private in-memory database with the default chart
// of accounts.
func setupTestDB(t *testing.T) {
	t.Helper()
	t.Setenv("REDIS_DISABLED", "true")
	db, err := config.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		config.SetDB(nil, "")
	})
	if _, err := models.SeedAccounts(context.Background()); err != nil {
		t.Fatalf("SeedAccounts: %v", err)
	}
}

func asUser(userId int, role string) context.Context {
	return utils.SetIdentityInContext(context.Background(), utils.Identity{
		UserId: userId,
		Email:  fmt.Sprintf("user%d@test.local", userId),
		Role:   role,
	})
}

func adminCtx() context.Context {
	return asUser(adminId, utils.RoleAdmin)
}

func bookkeeperCtx() context.Context {
	return asUser(bookkeeperId, utils.RoleBookkeeper)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func debit(accountNo int, s string) models.NewLineItem {
	return models.NewLineItem{AccountNo: accountNo, DebitAmount: amount(s)}
}

func credit(accountNo int, s string) models.NewLineItem {
	return models.NewLineItem{AccountNo: accountNo, CreditAmount: amount(s)}
}

func date(t *testing.T, s string) models.FlexibleDate {
	t.Helper()
	d, err := models.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return models.FlexibleDate(d)
}

func newVoucherInput(t *testing.T, day string, description string, lines ...models.NewLineItem) *models.NewVoucher {
	t.Helper()
	return &models.NewVoucher{
		Date:        date(t, day),
		Description: description,
		Lines:       lines,
	}
}

// createSale books a cash sale: debit 1930, credit 3001.
func createSale(t *testing.T, ctx context.Context, day string, value string) *models.Voucher {
	t.Helper()
	v, err := models.CreateVoucher(ctx, newVoucherInput(t, day, "Försäljning", debit(1930, value), credit(3001, value)))
	if err != nil {
		t.Fatalf("CreateVoucher: %v", err)
	}
	return v
}
