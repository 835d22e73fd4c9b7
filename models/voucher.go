package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const voucherSequenceLockKey = "voucher-sequence"

var (
	ErrVoucherNotFound     = fmt.Errorf("voucher %w", utils.ErrorRecordNotFound)
	ErrVoucherLocked       = errors.New("voucher is locked by a correction")
	ErrVoucherDateRequired = errors.New("voucher date is required")
	ErrPeriodMismatch      = errors.New("period does not match voucher date")
	ErrAdminOnly           = fmt.Errorf("only an admin can change a posted voucher: %w", utils.ErrorForbidden)
)

type Voucher struct {
	VoucherId            int             `gorm:"column:voucher_id;primaryKey" json:"voucher_id"`
	VoucherNumber        int             `gorm:"uniqueIndex;not null" json:"voucher_number"`
	Date                 time.Time       `gorm:"type:date;index;not null" json:"date"`
	Description          string          `gorm:"size:255;not null" json:"description"`
	Reference            string          `gorm:"size:100" json:"reference"`
	Period               string          `gorm:"size:7;index;not null" json:"period"`
	TotalAmount          decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	CreatedBy            int             `gorm:"index;not null" json:"created_by"`
	CreatedByName        string          `gorm:"-" json:"created_by_name,omitempty"`
	CorrectsVoucherId    *int            `gorm:"uniqueIndex" json:"corrects_voucher_id"`
	CorrectedByVoucherId *int            `gorm:"index" json:"corrected_by_voucher_id"`
	CorrectionKind       CorrectionKind  `gorm:"size:16" json:"correction_kind,omitempty"`
	Lines                []LineItem      `gorm:"foreignKey:VoucherId;references:VoucherId" json:"lines"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewVoucher struct {
	Date        FlexibleDate  `json:"date"`
	Description string        `json:"description" binding:"required,max=255"`
	Reference   string        `json:"reference" binding:"max=100"`
	Period      string        `json:"period"`
	Lines       []NewLineItem `json:"lines"`
}

// VoucherValidation is the answer of GET /vouchers/:id/validate.
type VoucherValidation struct {
	VoucherId int `json:"voucher_id"`
	BalanceResult
	Message string `json:"message"`
}

func (v *Voucher) Drafts() []LineDraft {
	return lineDrafts(v.Lines)
}

func (input *NewVoucher) validate() error {
	if err := validate.Struct(input); err != nil {
		return err
	}
	if input.Date.IsZero() {
		return ErrVoucherDateRequired
	}
	period := PeriodFromDate(input.Date.Time())
	if input.Period != "" && strings.TrimSpace(input.Period) != period {
		return ErrPeriodMismatch
	}
	input.Period = period
	return nil
}

// Prepare validates the header and lines and returns an unsaved voucher.
func (input *NewVoucher) Prepare(ctx context.Context) (*Voucher, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	lines, err := receiveLineItems(ctx, input.Lines, 0)
	if err != nil {
		return nil, err
	}
	balance, err := ValidateSubmission(lineDrafts(lines))
	if err != nil {
		return nil, err
	}
	return &Voucher{
		Date:        input.Date.Time(),
		Description: strings.TrimSpace(input.Description),
		Reference:   strings.TrimSpace(input.Reference),
		Period:      input.Period,
		TotalAmount: balance.TotalDebit,
		Lines:       lines,
	}, nil
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("line_items.line_id")
}

// visibleVouchers limits a query to what the caller may read.
func visibleVouchers(ctx context.Context) (func(*gorm.DB) *gorm.DB, error) {
	identity, ok := utils.GetIdentityFromContext(ctx)
	if !ok {
		return nil, utils.ErrorUnauthorized
	}
	return func(db *gorm.DB) *gorm.DB {
		if identity.IsAdmin() {
			return db
		}
		return db.Where("vouchers.created_by = ?", identity.UserId)
	}, nil
}

func getVisibleVoucher(ctx context.Context, voucherId int) (*Voucher, error) {
	identity, ok := utils.GetIdentityFromContext(ctx)
	if !ok {
		return nil, utils.ErrorUnauthorized
	}
	voucher, err := fetchVoucher(config.GetDB().WithContext(ctx), voucherId)
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() && voucher.CreatedBy != identity.UserId {
		return nil, utils.ErrorForbidden
	}
	return voucher, nil
}

func fetchVoucher(db *gorm.DB, voucherId int) (*Voucher, error) {
	var voucher Voucher
	err := db.Preload("Lines", orderedLines).Where("voucher_id = ?", voucherId).First(&voucher).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}
	return &voucher, nil
}

// FetchVoucherTx loads a voucher with its lines inside tx, without any
// visibility checks.
func FetchVoucherTx(tx *gorm.DB, voucherId int) (*Voucher, error) {
	return fetchVoucher(tx, voucherId)
}

// authorizeVoucherWrite lets the owner or an admin touch a voucher's lines.
func authorizeVoucherWrite(ctx context.Context, voucher *Voucher) error {
	identity, ok := utils.GetIdentityFromContext(ctx)
	if !ok {
		return utils.ErrorUnauthorized
	}
	if identity.IsAdmin() || voucher.CreatedBy == identity.UserId {
		return nil
	}
	return utils.ErrorForbidden
}

func requireAdmin(ctx context.Context) error {
	identity, ok := utils.GetIdentityFromContext(ctx)
	if !ok {
		return utils.ErrorUnauthorized
	}
	if !identity.IsAdmin() {
		return ErrAdminOnly
	}
	return nil
}

// LockVoucherSequence serializes voucher number allocation across instances.
// The release func must be called after the transaction is finished.
func LockVoucherSequence(ctx context.Context) (func(), error) {
	return utils.ObtainLock(ctx, voucherSequenceLockKey, 10*time.Second, "VoucherModel", "LockVoucherSequence")
}

func nextVoucherNumber(tx *gorm.DB) (int, error) {
	var current int
	if err := tx.Model(&Voucher{}).Select("COALESCE(MAX(voucher_number), 0)").Row().Scan(&current); err != nil {
		return 0, err
	}
	return current + 1, nil
}

// InsertVoucherTx numbers and stores voucher with its lines and queues the
// event, all inside tx. CreatedBy must already be set.
func InsertVoucherTx(ctx context.Context, tx *gorm.DB, voucher *Voucher, eventType VoucherEventType) error {
	number, err := nextVoucherNumber(tx)
	if err != nil {
		return err
	}
	voucher.VoucherNumber = number
	if err := tx.Create(voucher).Error; err != nil {
		return err
	}
	return recordVoucherEvent(ctx, tx, eventType, voucher)
}

// CreateVoucher stores the header and every line in a single transaction.
func CreateVoucher(ctx context.Context, input *NewVoucher) (*Voucher, error) {
	identity, ok := utils.GetIdentityFromContext(ctx)
	if !ok {
		return nil, utils.ErrorUnauthorized
	}
	voucher, err := input.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	voucher.CreatedBy = identity.UserId

	release, err := LockVoucherSequence(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := InsertVoucherTx(ctx, tx, voucher, VoucherEventCreated); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return voucher, nil
}

func GetVoucher(ctx context.Context, voucherId int) (*Voucher, error) {
	return getVisibleVoucher(ctx, voucherId)
}

func listVouchers(ctx context.Context, conds func(*gorm.DB) *gorm.DB) ([]*Voucher, error) {
	visible, err := visibleVouchers(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	var results []*Voucher
	err = db.WithContext(ctx).Scopes(visible, conds).
		Preload("Lines", orderedLines).
		Order("voucher_number DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func GetVouchers(ctx context.Context) ([]*Voucher, error) {
	return listVouchers(ctx, func(db *gorm.DB) *gorm.DB { return db })
}

func GetVouchersByPeriod(ctx context.Context, period string) ([]*Voucher, error) {
	if _, err := ParsePeriod(period); err != nil {
		return nil, err
	}
	return listVouchers(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("period = ?", period)
	})
}

func GetVouchersByUser(ctx context.Context, userId int) ([]*Voucher, error) {
	identity, ok := utils.GetIdentityFromContext(ctx)
	if !ok {
		return nil, utils.ErrorUnauthorized
	}
	if !identity.IsAdmin() && identity.UserId != userId {
		return nil, utils.ErrorForbidden
	}
	return listVouchers(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("created_by = ?", userId)
	})
}

// GetPeriods lists the distinct periods that have vouchers, newest first.
func GetPeriods(ctx context.Context) ([]string, error) {
	visible, err := visibleVouchers(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	var periods []string
	err = db.WithContext(ctx).Model(&Voucher{}).Scopes(visible).
		Distinct("period").
		Order("period DESC").
		Pluck("period", &periods).Error
	if err != nil {
		return nil, err
	}
	return periods, nil
}

// UpdateVoucher replaces header and the full line set. Admin only, and never
// for a voucher that takes part in a correction.
func UpdateVoucher(ctx context.Context, voucherId int, input *NewVoucher) (*Voucher, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	prepared, err := input.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	voucher, err := getVisibleVoucher(ctx, voucherId)
	if err != nil {
		return nil, err
	}
	if voucher.IsLocked() {
		return nil, ErrVoucherLocked
	}

	voucher.Date = prepared.Date
	voucher.Description = prepared.Description
	voucher.Reference = prepared.Reference
	voucher.Period = prepared.Period
	voucher.TotalAmount = prepared.TotalAmount
	for i := range prepared.Lines {
		prepared.Lines[i].VoucherId = voucherId
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	// a concurrent correction wins over this edit
	res := tx.Model(voucher).
		Where("corrected_by_voucher_id IS NULL AND corrects_voucher_id IS NULL").
		Select("date", "description", "reference", "period", "total_amount").
		Updates(voucher)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, ErrVoucherLocked
	}
	if err := tx.Where("voucher_id = ?", voucherId).Delete(&LineItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Create(&prepared.Lines).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	voucher.Lines = prepared.Lines
	if err := recordVoucherEvent(ctx, tx, VoucherEventUpdated, voucher); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return voucher, nil
}

func DeleteVoucher(ctx context.Context, voucherId int) (*Voucher, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	voucher, err := getVisibleVoucher(ctx, voucherId)
	if err != nil {
		return nil, err
	}
	if voucher.IsLocked() {
		return nil, ErrVoucherLocked
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	// delete associated lines first
	if err := tx.Where("voucher_id = ?", voucherId).Delete(&LineItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	res := tx.Where("corrected_by_voucher_id IS NULL AND corrects_voucher_id IS NULL").Delete(voucher)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, ErrVoucherLocked
	}
	if err := recordVoucherEvent(ctx, tx, VoucherEventDeleted, voucher); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return voucher, nil
}

// ValidateVoucher re-checks the stored lines of a voucher.
func ValidateVoucher(ctx context.Context, voucherId int) (*VoucherValidation, error) {
	voucher, err := getVisibleVoucher(ctx, voucherId)
	if err != nil {
		return nil, err
	}
	result := VoucherValidation{VoucherId: voucherId}
	balance, err := ValidateSubmission(voucher.Drafts())
	result.BalanceResult = balance
	switch {
	case err != nil:
		result.Message = err.Error()
	default:
		result.Message = "voucher is balanced"
	}
	return &result, nil
}
