package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
)

var (
	ErrAccountNotFound     = fmt.Errorf("account %w", utils.ErrorRecordNotFound)
	ErrAccountExists       = errors.New("account already exists")
	ErrAccountInUse        = errors.New("account is in use by line items")
	ErrInvalidAccountGroup = errors.New("account group must be between 1 and 8")
)

type Account struct {
	AccountNo    int          `gorm:"primaryKey;autoIncrement:false" json:"account_no"`
	AccountName  string       `gorm:"size:100;not null" json:"account_name"`
	AccountGroup int          `gorm:"index;not null" json:"account_group"`
	TaxStandard  TaxStandard  `gorm:"size:4;not null;default:'25%'" json:"tax_standard"`
	Type         AccountType  `gorm:"size:3;not null" json:"type"`
	StandardSide StandardSide `gorm:"size:6;not null" json:"standard_side"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	AccountNo    int          `json:"account_no" binding:"required,gt=0"`
	AccountName  string       `json:"account_name" binding:"required,max=100"`
	AccountGroup int          `json:"account_group" binding:"required,min=1,max=8"`
	TaxStandard  TaxStandard  `json:"tax_standard" binding:"omitempty,oneof=0% 6% 12% 25%"`
	Type         AccountType  `json:"type" binding:"required,oneof=BS P&L"`
	StandardSide StandardSide `json:"standard_side" binding:"required,oneof=Debit Credit"`
}

// AccountUpdate carries every editable field; account_no is the identity and never changes.
type AccountUpdate struct {
	AccountName  string       `json:"account_name" binding:"required,max=100"`
	AccountGroup int          `json:"account_group" binding:"required,min=1,max=8"`
	TaxStandard  TaxStandard  `json:"tax_standard" binding:"omitempty,oneof=0% 6% 12% 25%"`
	Type         AccountType  `json:"type" binding:"required,oneof=BS P&L"`
	StandardSide StandardSide `json:"standard_side" binding:"required,oneof=Debit Credit"`
}

// ExpectedAccountType is the chart-of-accounts convention: groups 1-2 are
// balance sheet accounts, 3-8 are profit and loss accounts.
func ExpectedAccountType(group int) (AccountType, error) {
	switch {
	case group >= 1 && group <= 2:
		return AccountTypeBalanceSheet, nil
	case group >= 3 && group <= 8:
		return AccountTypeProfitAndLoss, nil
	}
	return "", ErrInvalidAccountGroup
}

// AccountGroupOf derives the group from the leading digit of a 4-digit account number.
func AccountGroupOf(accountNo int) int {
	for accountNo >= 10 {
		accountNo /= 10
	}
	return accountNo
}

func (input *NewAccount) validate(ctx context.Context) error {
	if err := validate.Struct(input); err != nil {
		return err
	}
	if err := utils.ValidateUnique[Account](ctx, "account_no", input.AccountNo, "", nil); err != nil {
		return ErrAccountExists
	}
	return nil
}

func CreateAccount(ctx context.Context, input *NewAccount) (*Account, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	account := Account{
		AccountNo:    input.AccountNo,
		AccountName:  input.AccountName,
		AccountGroup: input.AccountGroup,
		TaxStandard:  input.TaxStandard,
		Type:         input.Type,
		StandardSide: input.StandardSide,
	}
	if account.TaxStandard == "" {
		account.TaxStandard = TaxStandard25
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, ErrAccountExists
		}
		return nil, err
	}
	return &account, nil
}

func GetAccount(ctx context.Context, accountNo int) (*Account, error) {
	account, err := utils.FetchModel[Account](ctx, "account_no", accountNo)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	return account, err
}

func GetAccounts(ctx context.Context) ([]*Account, error) {
	db := config.GetDB()
	var results []*Account
	if err := db.WithContext(ctx).Order("account_no").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetAccountsByGroup(ctx context.Context, group int) ([]*Account, error) {
	if group < 1 || group > 8 {
		return nil, ErrInvalidAccountGroup
	}
	db := config.GetDB()
	var results []*Account
	if err := db.WithContext(ctx).Where("account_group = ?", group).Order("account_no").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetAccountsByNumbers returns the accounts keyed by number; missing numbers are absent.
func GetAccountsByNumbers(ctx context.Context, accountNos []int) (map[int]*Account, error) {
	result := make(map[int]*Account, len(accountNos))
	if len(accountNos) == 0 {
		return result, nil
	}
	var accounts []*Account
	if err := config.GetDB().WithContext(ctx).Where("account_no IN ?", utils.UniqueSlice(accountNos)).Find(&accounts).Error; err != nil {
		return nil, err
	}
	for _, a := range accounts {
		result[a.AccountNo] = a
	}
	return result, nil
}

func UpdateAccount(ctx context.Context, accountNo int, input *AccountUpdate) (*Account, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	account, err := GetAccount(ctx, accountNo)
	if err != nil {
		return nil, err
	}

	if input.TaxStandard != "" {
		account.TaxStandard = input.TaxStandard
	}
	account.AccountName = input.AccountName
	account.AccountGroup = input.AccountGroup
	account.Type = input.Type
	account.StandardSide = input.StandardSide

	db := config.GetDB()
	err = db.WithContext(ctx).Model(account).
		Select("account_name", "account_group", "tax_standard", "type", "standard_side").
		Updates(account).Error
	if err != nil {
		return nil, err
	}
	return account, nil
}

func DeleteAccount(ctx context.Context, accountNo int) (*Account, error) {
	account, err := GetAccount(ctx, accountNo)
	if err != nil {
		return nil, err
	}
	inUse, err := utils.ResourceCountWhere[LineItem](ctx, "account_no = ?", accountNo)
	if err != nil {
		return nil, err
	}
	if inUse > 0 {
		return nil, ErrAccountInUse
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}
