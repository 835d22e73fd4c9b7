package models

import (
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
	"gorm.io/gorm"
)

var (
	ErrVoucherAlreadyCorrected = errors.New("voucher has already been corrected")
	ErrCannotCorrectCorrection = errors.New("a correction voucher cannot be corrected")
)

// CorrectionState places a voucher in the correction lifecycle. A voucher
// that corrects another one is reported as Correction even if something
// later points at it.
func (v *Voucher) CorrectionState() CorrectionState {
	switch {
	case v.CorrectsVoucherId != nil:
		return CorrectionStateCorrection
	case v.CorrectedByVoucherId != nil:
		return CorrectionStateCorrected
	}
	return CorrectionStateOpen
}

func (v *Voucher) CanBeCorrected() bool {
	return v.CorrectionState() == CorrectionStateOpen
}

// IsLocked is true for vouchers that may no longer be edited or deleted.
func (v *Voucher) IsLocked() bool {
	return v.CorrectionState() != CorrectionStateOpen
}

// CorrectionError explains why a voucher cannot be corrected, nil when it can.
func (v *Voucher) CorrectionError() error {
	switch v.CorrectionState() {
	case CorrectionStateCorrected:
		return ErrVoucherAlreadyCorrected
	case CorrectionStateCorrection:
		return ErrCannotCorrectCorrection
	}
	return nil
}

func CorrectionDescription(original *Voucher) string {
	return fmt.Sprintf("Rättelse av verifikat #%d: %s", original.VoucherNumber, original.Description)
}

// ReversalOf builds the straight reversal of original: same header values and
// the lines with debit and credit swapped.
func ReversalOf(original *Voucher) *Voucher {
	lines := make([]LineItem, 0, len(original.Lines))
	for _, l := range original.Lines {
		lines = append(lines, LineItem{
			AccountNo:    l.AccountNo,
			DebitAmount:  l.CreditAmount,
			CreditAmount: l.DebitAmount,
			TaxCode:      l.TaxCode,
			ProjectId:    l.ProjectId,
			CostCenterId: l.CostCenterId,
		})
	}
	originalId := original.VoucherId
	return &Voucher{
		Date:              original.Date,
		Description:       CorrectionDescription(original),
		Reference:         original.Reference,
		Period:            original.Period,
		TotalAmount:       CalculateBalance(lineDrafts(lines)).TotalDebit,
		CorrectsVoucherId: &originalId,
		CorrectionKind:    CorrectionKindReversal,
		Lines:             lines,
	}
}

// MarkVoucherCorrectedTx links original to its correction. The update only
// succeeds while the original is still open, so of two racing corrections
// exactly one gets the row.
func MarkVoucherCorrectedTx(tx *gorm.DB, originalId int, correctionId int) error {
	res := tx.Model(&Voucher{}).
		Where("voucher_id = ? AND corrected_by_voucher_id IS NULL AND corrects_voucher_id IS NULL", originalId).
		Update("corrected_by_voucher_id", correctionId)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVoucherAlreadyCorrected
	}
	return nil
}

// IsCorrectionConflict reports whether err from storing a correction means
// another correction of the same original got there first.
func IsCorrectionConflict(err error) bool {
	return errors.Is(err, ErrVoucherAlreadyCorrected) || utils.IsDuplicateKeyError(err)
}
