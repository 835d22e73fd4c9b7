package models

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrLineItemNotFound    = fmt.Errorf("line item %w", utils.ErrorRecordNotFound)
	ErrLineVoucherRequired = errors.New("voucher_id is required")
	ErrLineVoucherChange   = errors.New("a line item cannot be moved to another voucher")
)

type LineItem struct {
	LineId       int             `gorm:"column:line_id;primaryKey" json:"line_id"`
	VoucherId    int             `gorm:"index;not null" json:"voucher_id"`
	AccountNo    int             `gorm:"index;not null" json:"account_no"`
	DebitAmount  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"debit_amount"`
	CreditAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"credit_amount"`
	TaxCode      int             `gorm:"not null;default:0" json:"tax_code"`
	ProjectId    *int            `json:"project_id"`
	CostCenterId *int            `json:"cost_center_id"`
	Account      *Account        `gorm:"-" json:"account,omitempty"`
}

type NewLineItem struct {
	VoucherId    int             `json:"voucher_id"`
	AccountNo    int             `json:"account_no" binding:"required,gt=0"`
	DebitAmount  decimal.Decimal `json:"debit_amount"`
	CreditAmount decimal.Decimal `json:"credit_amount"`
	TaxCode      int             `json:"tax_code"`
	ProjectId    *int            `json:"project_id"`
	CostCenterId *int            `json:"cost_center_id"`
}

func (l LineItem) draft() LineDraft {
	return LineDraft{AccountNo: l.AccountNo, DebitAmount: l.DebitAmount, CreditAmount: l.CreditAmount}
}

func (input NewLineItem) draft() LineDraft {
	return LineDraft{AccountNo: input.AccountNo, DebitAmount: input.DebitAmount, CreditAmount: input.CreditAmount}
}

func lineDrafts(lines []LineItem) []LineDraft {
	drafts := make([]LineDraft, 0, len(lines))
	for _, l := range lines {
		drafts = append(drafts, l.draft())
	}
	return drafts
}

func (input *NewLineItem) validateLine() error {
	if err := validate.Struct(input); err != nil {
		return err
	}
	if err := ValidateLineAmounts(input.DebitAmount, input.CreditAmount); err != nil {
		return err
	}
	return ValidateTaxCode(input.TaxCode)
}

// receiveLineItems turns submitted rows into line items. Blank rows are
// dropped, every other row must be a well-formed single-sided posting on an
// existing account.
func receiveLineItems(ctx context.Context, inputs []NewLineItem, voucherId int) ([]LineItem, error) {
	lines := make([]LineItem, 0, len(inputs))
	accountNos := make([]int, 0, len(inputs))
	for i := range inputs {
		input := inputs[i]
		if !input.draft().HasAmount() {
			continue
		}
		if err := input.validateLine(); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		accountNos = append(accountNos, input.AccountNo)
		lines = append(lines, LineItem{
			VoucherId:    voucherId,
			AccountNo:    input.AccountNo,
			DebitAmount:  input.DebitAmount,
			CreditAmount: input.CreditAmount,
			TaxCode:      input.TaxCode,
			ProjectId:    input.ProjectId,
			CostCenterId: input.CostCenterId,
		})
	}
	if err := utils.ValidateResourcesExist[Account](ctx, "account_no", accountNos); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return lines, nil
}

func GetLineItem(ctx context.Context, lineId int) (*LineItem, error) {
	line, err := utils.FetchModel[LineItem](ctx, "line_id", lineId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrLineItemNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := getVisibleVoucher(ctx, line.VoucherId); err != nil {
		return nil, err
	}
	return line, nil
}

func GetLineItemsByVoucher(ctx context.Context, voucherId int) ([]*LineItem, error) {
	if _, err := getVisibleVoucher(ctx, voucherId); err != nil {
		return nil, err
	}
	db := config.GetDB()
	var results []*LineItem
	if err := db.WithContext(ctx).Where("voucher_id = ?", voucherId).Order("line_id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetLineItemsByAccount honours voucher visibility: non-admins only see lines
// of their own vouchers.
func GetLineItemsByAccount(ctx context.Context, accountNo int) ([]*LineItem, error) {
	identity, ok := utils.GetIdentityFromContext(ctx)
	if !ok {
		return nil, utils.ErrorUnauthorized
	}
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&LineItem{}).Where("line_items.account_no = ?", accountNo)
	if !identity.IsAdmin() {
		dbCtx = dbCtx.Joins("JOIN vouchers ON vouchers.voucher_id = line_items.voucher_id").
			Where("vouchers.created_by = ?", identity.UserId)
	}
	var results []*LineItem
	if err := dbCtx.Order("line_items.line_id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func CreateLineItem(ctx context.Context, input *NewLineItem) (*LineItem, error) {
	if input.VoucherId <= 0 {
		return nil, ErrLineVoucherRequired
	}
	if err := input.validateLine(); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceExists[Account](ctx, "account_no", input.AccountNo); err != nil {
		return nil, ErrAccountNotFound
	}

	line := LineItem{
		VoucherId:    input.VoucherId,
		AccountNo:    input.AccountNo,
		DebitAmount:  input.DebitAmount,
		CreditAmount: input.CreditAmount,
		TaxCode:      input.TaxCode,
		ProjectId:    input.ProjectId,
		CostCenterId: input.CostCenterId,
	}

	err := mutateVoucherLines(ctx, input.VoucherId, func(tx *gorm.DB) error {
		return tx.Create(&line).Error
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func UpdateLineItem(ctx context.Context, lineId int, input *NewLineItem) (*LineItem, error) {
	if err := input.validateLine(); err != nil {
		return nil, err
	}
	line, err := GetLineItem(ctx, lineId)
	if err != nil {
		return nil, err
	}
	if input.VoucherId != 0 && input.VoucherId != line.VoucherId {
		return nil, ErrLineVoucherChange
	}
	if err := utils.ValidateResourceExists[Account](ctx, "account_no", input.AccountNo); err != nil {
		return nil, ErrAccountNotFound
	}

	line.AccountNo = input.AccountNo
	line.DebitAmount = input.DebitAmount
	line.CreditAmount = input.CreditAmount
	line.TaxCode = input.TaxCode
	line.ProjectId = input.ProjectId
	line.CostCenterId = input.CostCenterId

	err = mutateVoucherLines(ctx, line.VoucherId, func(tx *gorm.DB) error {
		return tx.Model(line).
			Select("account_no", "debit_amount", "credit_amount", "tax_code", "project_id", "cost_center_id").
			Updates(line).Error
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

func DeleteLineItem(ctx context.Context, lineId int) (*LineItem, error) {
	line, err := GetLineItem(ctx, lineId)
	if err != nil {
		return nil, err
	}
	err = mutateVoucherLines(ctx, line.VoucherId, func(tx *gorm.DB) error {
		return tx.Delete(line).Error
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// mutateVoucherLines runs change and recomputes the voucher total in one
// transaction. Lines of a voucher in a correction relationship are frozen.
func mutateVoucherLines(ctx context.Context, voucherId int, change func(tx *gorm.DB) error) error {
	voucher, err := getVisibleVoucher(ctx, voucherId)
	if err != nil {
		return err
	}
	if err := authorizeVoucherWrite(ctx, voucher); err != nil {
		return err
	}
	if voucher.IsLocked() {
		return ErrVoucherLocked
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	// a correction may have committed since the voucher was read
	var current Voucher
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("voucher_id = ?", voucherId).
		Take(&current).Error
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVoucherNotFound
		}
		return err
	}
	if current.IsLocked() {
		tx.Rollback()
		return ErrVoucherLocked
	}
	if err := change(tx); err != nil {
		tx.Rollback()
		return err
	}
	var lines []LineItem
	if err := tx.Where("voucher_id = ?", voucherId).Find(&lines).Error; err != nil {
		tx.Rollback()
		return err
	}
	total := CalculateBalance(lineDrafts(lines)).TotalDebit
	err = tx.Model(&Voucher{}).
		Where("voucher_id = ? AND corrected_by_voucher_id IS NULL AND corrects_voucher_id IS NULL", voucherId).
		Update("total_amount", total).Error
	if err != nil {
		tx.Rollback()
		return err
	}
	voucher.TotalAmount = total
	if err := recordVoucherEvent(ctx, tx, VoucherEventUpdated, voucher); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
