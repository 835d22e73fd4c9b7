package models

import (
	"context"
	_ "embed"
	"fmt"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm/clause"
)

//go:embed chartOfAccounts.yaml
var chartOfAccountsYAML []byte

type chartAccount struct {
	No   int          `yaml:"no"`
	Name string       `yaml:"name"`
	Side StandardSide `yaml:"side"`
	Tax  TaxStandard  `yaml:"tax"`
}

// DefaultChartOfAccounts parses the embedded BAS chart. Group and type are
// derived from the account number.
func DefaultChartOfAccounts() ([]NewAccount, error) {
	var chart struct {
		Accounts []chartAccount `yaml:"accounts"`
	}
	if err := yaml.Unmarshal(chartOfAccountsYAML, &chart); err != nil {
		return nil, err
	}
	accounts := make([]NewAccount, 0, len(chart.Accounts))
	for _, a := range chart.Accounts {
		group := AccountGroupOf(a.No)
		accountType, err := ExpectedAccountType(group)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", a.No, err)
		}
		input := NewAccount{
			AccountNo:    a.No,
			AccountName:  a.Name,
			AccountGroup: group,
			TaxStandard:  a.Tax,
			Type:         accountType,
			StandardSide: a.Side,
		}
		if err := validate.Struct(&input); err != nil {
			return nil, fmt.Errorf("account %d: %w", a.No, err)
		}
		accounts = append(accounts, input)
	}
	return accounts, nil
}

// SeedAccounts inserts the default chart; existing account numbers are left
// untouched. Returns how many accounts were added.
func SeedAccounts(ctx context.Context) (int64, error) {
	chart, err := DefaultChartOfAccounts()
	if err != nil {
		return 0, err
	}
	accounts := make([]Account, 0, len(chart))
	for _, input := range chart {
		accounts = append(accounts, Account{
			AccountNo:    input.AccountNo,
			AccountName:  input.AccountName,
			AccountGroup: input.AccountGroup,
			TaxStandard:  input.TaxStandard,
			Type:         input.Type,
			StandardSide: input.StandardSide,
		})
	}
	db := config.GetDB()
	res := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&accounts)
	return res.RowsAffected, res.Error
}

// AccountTypeMismatch is an account whose type breaks the group convention.
type AccountTypeMismatch struct {
	Account  *Account
	Expected AccountType
}

// CheckAccountTypes lists accounts whose type or group disagree with the
// chart-of-accounts convention.
func CheckAccountTypes(ctx context.Context) ([]AccountTypeMismatch, error) {
	accounts, err := GetAccounts(ctx)
	if err != nil {
		return nil, err
	}
	var mismatches []AccountTypeMismatch
	for _, a := range accounts {
		expected, err := ExpectedAccountType(a.AccountGroup)
		if err != nil || expected != a.Type || AccountGroupOf(a.AccountNo) != a.AccountGroup {
			mismatches = append(mismatches, AccountTypeMismatch{Account: a, Expected: expected})
		}
	}
	return mismatches, nil
}
