package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("bookkeeping/workflow")

// CorrectVoucherInput is the body of POST /vouchers/:id/correct. UserId must
// match the session user unless the caller is an admin.
type CorrectVoucherInput struct {
	UserId int `json:"user_id"`
}

type CorrectionHeader struct {
	Date        models.FlexibleDate `json:"date"`
	Description string              `json:"description" binding:"required,max=255"`
	Reference   string              `json:"reference" binding:"max=100"`
	Period      string              `json:"period"`
}

// CorrectWithChangesInput is the body of POST /vouchers/:id/correct-with-changes.
type CorrectWithChangesInput struct {
	UserId       int                  `json:"user_id"`
	NewVoucher   CorrectionHeader     `json:"new_voucher"`
	NewLineItems []models.NewLineItem `json:"new_line_items"`
}

func (input CorrectWithChangesInput) toNewVoucher() *models.NewVoucher {
	return &models.NewVoucher{
		Date:        input.NewVoucher.Date,
		Description: input.NewVoucher.Description,
		Reference:   input.NewVoucher.Reference,
		Period:      input.NewVoucher.Period,
		Lines:       input.NewLineItems,
	}
}

func actingIdentity(ctx context.Context, bodyUserId int) (utils.Identity, error) {
	identity, ok := utils.GetIdentityFromContext(ctx)
	if !ok {
		return utils.Identity{}, utils.ErrorUnauthorized
	}
	if bodyUserId != 0 && bodyUserId != identity.UserId && !identity.IsAdmin() {
		return utils.Identity{}, fmt.Errorf("user_id does not match the session user: %w", utils.ErrorForbidden)
	}
	return identity, nil
}

// CorrectVoucher posts the straight reversal of an open voucher and links the
// two.
func CorrectVoucher(ctx context.Context, originalId int, input CorrectVoucherInput) (*models.Voucher, error) {
	identity, err := actingIdentity(ctx, input.UserId)
	if err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "CorrectVoucher")
	defer span.End()
	span.SetAttributes(attribute.Int("voucher_id", originalId), attribute.String("correction_kind", string(models.CorrectionKindReversal)))

	correction, err := runCorrection(ctx, identity, originalId, func(original *models.Voucher) (*models.Voucher, error) {
		return models.ReversalOf(original), nil
	})
	recordSpanError(span, err)
	return correction, err
}

// CorrectVoucherWithChanges replaces an open voucher with user supplied
// values. The replacement must pass the same rules as a new voucher.
func CorrectVoucherWithChanges(ctx context.Context, originalId int, input CorrectWithChangesInput) (*models.Voucher, error) {
	identity, err := actingIdentity(ctx, input.UserId)
	if err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "CorrectVoucherWithChanges")
	defer span.End()
	span.SetAttributes(attribute.Int("voucher_id", originalId), attribute.String("correction_kind", string(models.CorrectionKindReplacement)))

	replacement, err := input.toNewVoucher().Prepare(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	correction, err := runCorrection(ctx, identity, originalId, func(original *models.Voucher) (*models.Voucher, error) {
		id := original.VoucherId
		replacement.CorrectsVoucherId = &id
		replacement.CorrectionKind = models.CorrectionKindReplacement
		return replacement, nil
	})
	recordSpanError(span, err)
	return correction, err
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// runCorrection holds the locks, re-reads the original inside the
// transaction and stores the correction built from it.
func runCorrection(ctx context.Context, identity utils.Identity, originalId int, build func(original *models.Voucher) (*models.Voucher, error)) (*models.Voucher, error) {
	release, err := utils.ObtainLock(ctx, fmt.Sprintf("voucher-correction:%d", originalId), 30*time.Second, "VoucherCorrection", "runCorrection")
	if err != nil {
		return nil, err
	}
	defer release()
	releaseSeq, err := models.LockVoucherSequence(ctx)
	if err != nil {
		return nil, err
	}
	defer releaseSeq()

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := AcquireVoucherLock(tx, originalId); err != nil {
		tx.Rollback()
		return nil, err
	}
	correction, err := correctInTx(ctx, tx, identity, originalId, build)
	ReleaseVoucherLock(tx, originalId)
	if err != nil {
		tx.Rollback()
		if models.IsCorrectionConflict(err) {
			return nil, models.ErrVoucherAlreadyCorrected
		}
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		if models.IsCorrectionConflict(err) {
			return nil, models.ErrVoucherAlreadyCorrected
		}
		return nil, err
	}
	return correction, nil
}

func correctInTx(ctx context.Context, tx *gorm.DB, identity utils.Identity, originalId int, build func(original *models.Voucher) (*models.Voucher, error)) (*models.Voucher, error) {
	original, err := models.FetchVoucherTx(tx, originalId)
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() && original.CreatedBy != identity.UserId {
		return nil, utils.ErrorForbidden
	}
	if err := original.CorrectionError(); err != nil {
		return nil, err
	}

	correction, err := build(original)
	if err != nil {
		return nil, err
	}
	correction.CreatedBy = identity.UserId
	if err := models.InsertVoucherTx(ctx, tx, correction, models.VoucherEventCorrected); err != nil {
		return nil, err
	}
	if err := models.MarkVoucherCorrectedTx(tx, original.VoucherId, correction.VoucherId); err != nil {
		return nil, err
	}
	logger := config.GetLogger()
	logger.WithFields(logrus.Fields{
		"field":           "VoucherCorrection",
		"original_id":     original.VoucherId,
		"correction_id":   correction.VoucherId,
		"correction_kind": correction.CorrectionKind,
		"user_id":         identity.UserId,
	}).Info("voucher corrected")
	return correction, nil
}

// IsCorrectionRejected reports errors that mean the original cannot be corrected.
func IsCorrectionRejected(err error) bool {
	return errors.Is(err, models.ErrVoucherAlreadyCorrected) || errors.Is(err, models.ErrCannotCorrectCorrection)
}
