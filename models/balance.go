package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BalanceTolerance is one cent; smaller differences count as balanced.
var BalanceTolerance = decimal.New(1, -2)

const minimumLinesPerVoucher = 2

var (
	ErrVoucherNotBalanced = errors.New("voucher is not balanced")
	ErrVoucherZeroTotal   = errors.New("voucher total cannot be zero")
	ErrVoucherTooFewLines = errors.New("a voucher needs at least two lines with an amount")
	ErrLineBothSides      = errors.New("a line item cannot have both debit and credit amounts")
	ErrLineNoAmount       = errors.New("a line item must have either debit or credit amount")
	ErrLineNegativeAmount = errors.New("line item amounts cannot be negative")
	ErrLineInvalidTaxCode = errors.New("tax code must be one of 0, 6, 12, 25")
)

// LineDraft is the part of a line item the balance rules look at.
type LineDraft struct {
	AccountNo    int
	DebitAmount  decimal.Decimal
	CreditAmount decimal.Decimal
}

func (l LineDraft) HasAmount() bool {
	return !l.DebitAmount.IsZero() || !l.CreditAmount.IsZero()
}

type BalanceResult struct {
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Difference  decimal.Decimal `json:"difference"`
	IsBalanced  bool            `json:"balanced"`
}

// CalculateBalance sums both sides. An empty set is balanced with zero totals.
func CalculateBalance(lines []LineDraft) BalanceResult {
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, l := range lines {
		totalDebit = totalDebit.Add(l.DebitAmount)
		totalCredit = totalCredit.Add(l.CreditAmount)
	}
	difference := totalDebit.Sub(totalCredit)
	return BalanceResult{
		TotalDebit:  totalDebit,
		TotalCredit: totalCredit,
		Difference:  difference,
		IsBalanced:  difference.Abs().LessThan(BalanceTolerance),
	}
}

func CountLinesWithAmount(lines []LineDraft) int {
	n := 0
	for _, l := range lines {
		if l.HasAmount() {
			n++
		}
	}
	return n
}

// ValidateSubmission applies the rules a voucher must pass before it is
// stored: a non-zero debit total, two lines with an amount, and balance.
func ValidateSubmission(lines []LineDraft) (BalanceResult, error) {
	result := CalculateBalance(lines)
	if result.TotalDebit.IsZero() {
		return result, ErrVoucherZeroTotal
	}
	if CountLinesWithAmount(lines) < minimumLinesPerVoucher {
		return result, ErrVoucherTooFewLines
	}
	if !result.IsBalanced {
		return result, fmt.Errorf("%w: difference %s", ErrVoucherNotBalanced, result.Difference.StringFixed(2))
	}
	return result, nil
}

// ValidateLineAmounts enforces exactly one strictly positive side.
func ValidateLineAmounts(debit decimal.Decimal, credit decimal.Decimal) error {
	if debit.IsNegative() || credit.IsNegative() {
		return ErrLineNegativeAmount
	}
	if debit.IsPositive() && credit.IsPositive() {
		return ErrLineBothSides
	}
	if debit.IsZero() && credit.IsZero() {
		return ErrLineNoAmount
	}
	return nil
}

func ValidateTaxCode(code int) error {
	switch code {
	case 0, 6, 12, 25:
		return nil
	}
	return ErrLineInvalidTaxCode
}

// ParseAmount reads a form amount; blank or unparseable input counts as zero.
func ParseAmount(s string) decimal.Decimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return decimal.Zero
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
