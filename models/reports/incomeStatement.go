package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrReportDatesRequired = errors.New("from_date and to_date are required")
	ErrReportDateOrder     = errors.New("from_date must be before or equal to to_date")
)

const (
	incomeAccountFrom  = 3000
	expenseAccountFrom = 4000
	expenseAccountTo   = 9000
)

type IncomeStatementEntry struct {
	AccountNo   int             `json:"account_no"`
	AccountName string          `json:"account_name"`
	Balance     decimal.Decimal `json:"balance"`
}

type ReportPeriod struct {
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
}

// IncomeStatement balances are debit minus credit, so income is negative and
// a negative net result is a profit.
type IncomeStatement struct {
	Period        ReportPeriod            `json:"period"`
	Income        []*IncomeStatementEntry `json:"income"`
	Expenses      []*IncomeStatementEntry `json:"expenses"`
	TotalIncome   decimal.Decimal         `json:"total_income"`
	TotalExpenses decimal.Decimal         `json:"total_expenses"`
	NetResult     decimal.Decimal         `json:"net_result"`
}

// ParseReportRange validates a YYYY-MM-DD pair with from <= to.
func ParseReportRange(fromDate string, toDate string) (time.Time, time.Time, error) {
	if fromDate == "" || toDate == "" {
		return time.Time{}, time.Time{}, ErrReportDatesRequired
	}
	from, err := time.Parse("2006-01-02", fromDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("from_date: %w", models.ErrInvalidDate)
	}
	to, err := time.Parse("2006-01-02", toDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("to_date: %w", models.ErrInvalidDate)
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, ErrReportDateOrder
	}
	return from, to, nil
}

type accountPosting struct {
	AccountNo    int
	AccountName  string
	DebitAmount  decimal.Decimal
	CreditAmount decimal.Decimal
}

func GetIncomeStatement(ctx context.Context, fromDate string, toDate string) (*IncomeStatement, error) {
	from, to, err := ParseReportRange(fromDate, toDate)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("bookkeeping/reports").Start(ctx, "GetIncomeStatement")
	defer span.End()
	span.SetAttributes(attribute.String("from_date", fromDate), attribute.String("to_date", toDate))

	cacheKey := "report:income-statement:" + fromDate + ":" + toDate
	var cached IncomeStatement
	if ok, err := cacheGet(ctx, cacheKey, &cached); err == nil && ok {
		return &cached, nil
	}
	started := time.Now()
	defer logSlowReport(ctx, "income_statement", started, map[string]any{"from": fromDate, "to": toDate})

	var postings []*accountPosting
	db := config.GetDB()
	err = db.WithContext(ctx).Table("line_items").
		Select("accounts.account_no, accounts.account_name, line_items.debit_amount, line_items.credit_amount").
		Joins("JOIN vouchers ON vouchers.voucher_id = line_items.voucher_id").
		Joins("JOIN accounts ON accounts.account_no = line_items.account_no").
		Where("accounts.type = ?", models.AccountTypeProfitAndLoss).
		Where("vouchers.date >= ? AND vouchers.date < ?", from, to.AddDate(0, 0, 1)).
		Scopes(models.EffectiveVouchers).
		Order("accounts.account_no").
		Scan(&postings).Error
	if err != nil {
		return nil, err
	}

	statement := buildIncomeStatement(postings)
	statement.Period = ReportPeriod{FromDate: fromDate, ToDate: toDate}

	_ = cacheSet(ctx, cacheKey, statement)
	return statement, nil
}

// buildIncomeStatement sums postings per account. Postings must be ordered
// by account number; accounts that net to zero are left out.
func buildIncomeStatement(postings []*accountPosting) *IncomeStatement {
	statement := IncomeStatement{
		Income:        make([]*IncomeStatementEntry, 0),
		Expenses:      make([]*IncomeStatementEntry, 0),
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
	}

	var entries []*IncomeStatementEntry
	for _, p := range postings {
		n := len(entries)
		if n == 0 || entries[n-1].AccountNo != p.AccountNo {
			entries = append(entries, &IncomeStatementEntry{AccountNo: p.AccountNo, AccountName: p.AccountName})
			n++
		}
		entries[n-1].Balance = entries[n-1].Balance.Add(p.DebitAmount).Sub(p.CreditAmount)
	}

	for _, e := range entries {
		if e.Balance.IsZero() {
			continue
		}
		switch {
		case e.AccountNo >= incomeAccountFrom && e.AccountNo < expenseAccountFrom:
			statement.Income = append(statement.Income, e)
			statement.TotalIncome = statement.TotalIncome.Add(e.Balance)
		case e.AccountNo >= expenseAccountFrom && e.AccountNo < expenseAccountTo:
			statement.Expenses = append(statement.Expenses, e)
			statement.TotalExpenses = statement.TotalExpenses.Add(e.Balance)
		}
	}
	statement.NetResult = statement.TotalIncome.Add(statement.TotalExpenses)
	return &statement
}
