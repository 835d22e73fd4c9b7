package workflow_test

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func asUser(userId int, role string) context.Context {
	return utils.SetIdentityInContext(context.Background(), utils.Identity{UserId: userId, Role: role})
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createVoucher(t *testing.T, ctx context.Context, day string, description string, lines ...models.NewLineItem) *models.Voucher {
	t.Helper()
	d, err := models.ParseDate(day)
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	v, err := models.CreateVoucher(ctx, &models.NewVoucher{
		Date:        models.FlexibleDate(d),
		Description: description,
		Lines:       lines,
	})
	if err != nil {
		t.Fatalf("CreateVoucher: %v", err)
	}
	return v
}

func line(accountNo int, debit string, credit string) models.NewLineItem {
	l := models.NewLineItem{AccountNo: accountNo}
	if debit != "" {
		l.DebitAmount = amount(debit)
	}
	if credit != "" {
		l.CreditAmount = amount(credit)
	}
	return l
}
