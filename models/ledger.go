package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LedgerEntry struct {
	LineId        int             `json:"line_id"`
	Date          time.Time       `json:"date"`
	VoucherId     int             `json:"voucher_id"`
	VoucherNumber int             `json:"voucher_number"`
	Description   string          `json:"description"`
	Reference     string          `json:"reference"`
	DebitAmount   decimal.Decimal `json:"debit_amount"`
	CreditAmount  decimal.Decimal `json:"credit_amount"`
	Balance       decimal.Decimal `json:"balance"`
}

type Ledger struct {
	Account        *Account        `json:"account"`
	Period         string          `json:"period,omitempty"`
	Entries        []*LedgerEntry  `json:"entries"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

// EffectiveVouchers drops originals that were replaced by a Replacement
// correction. Reversed originals stay; their reversal nets them out.
func EffectiveVouchers(db *gorm.DB) *gorm.DB {
	return db.Where(`NOT EXISTS (SELECT 1 FROM vouchers AS replacements
		WHERE replacements.corrects_voucher_id = vouchers.voucher_id AND replacements.correction_kind = ?)`,
		CorrectionKindReplacement)
}

// LedgerOpeningBalance recovers the balance before the first entry.
func LedgerOpeningBalance(entries []*LedgerEntry) decimal.Decimal {
	if len(entries) == 0 {
		return decimal.Zero
	}
	first := entries[0]
	return first.Balance.Sub(first.DebitAmount).Add(first.CreditAmount)
}

func LedgerClosingBalance(entries []*LedgerEntry) decimal.Decimal {
	if len(entries) == 0 {
		return decimal.Zero
	}
	return entries[len(entries)-1].Balance
}

// RunningBalances fills Balance on entries in order, starting at opening.
func RunningBalances(opening decimal.Decimal, entries []*LedgerEntry) {
	balance := opening
	for _, e := range entries {
		balance = balance.Add(e.DebitAmount).Sub(e.CreditAmount)
		e.Balance = balance
	}
}

func ledgerLines(db *gorm.DB, accountNo int) *gorm.DB {
	return db.Table("line_items").
		Joins("JOIN vouchers ON vouchers.voucher_id = line_items.voucher_id").
		Where("line_items.account_no = ?", accountNo).
		Scopes(EffectiveVouchers)
}

// GetLedger lists the postings of one account in date order with a running
// balance. With a period the balance carried in from earlier periods is the
// starting point, otherwise it starts at zero.
func GetLedger(ctx context.Context, accountNo int, period string) (*Ledger, error) {
	account, err := GetAccount(ctx, accountNo)
	if err != nil {
		return nil, err
	}

	db := config.GetDB().WithContext(ctx)
	q := ledgerLines(db, accountNo)
	opening := decimal.Zero
	if period != "" {
		from, to, err := PeriodRange(period)
		if err != nil {
			return nil, err
		}
		opening, err = balanceBefore(db, accountNo, from)
		if err != nil {
			return nil, err
		}
		q = q.Where("vouchers.date >= ? AND vouchers.date < ?", from, to)
	}

	var entries []*LedgerEntry
	err = q.Select(`line_items.line_id, vouchers.date, vouchers.voucher_id, vouchers.voucher_number,
		vouchers.description, vouchers.reference, line_items.debit_amount, line_items.credit_amount`).
		Order("vouchers.date, vouchers.voucher_number, line_items.line_id").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	RunningBalances(opening, entries)

	ledger := Ledger{
		Account:        account,
		Period:         period,
		Entries:        entries,
		OpeningBalance: opening,
		ClosingBalance: opening,
	}
	if len(entries) > 0 {
		ledger.OpeningBalance = LedgerOpeningBalance(entries)
		ledger.ClosingBalance = LedgerClosingBalance(entries)
	}
	if ledger.Entries == nil {
		ledger.Entries = make([]*LedgerEntry, 0)
	}
	return &ledger, nil
}

func balanceBefore(db *gorm.DB, accountNo int, before time.Time) (decimal.Decimal, error) {
	var rows []struct {
		DebitAmount  decimal.Decimal
		CreditAmount decimal.Decimal
	}
	err := ledgerLines(db, accountNo).
		Where("vouchers.date < ?", before).
		Select("line_items.debit_amount, line_items.credit_amount").
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for _, r := range rows {
		balance = balance.Add(r.DebitAmount).Sub(r.CreditAmount)
	}
	return balance, nil
}
