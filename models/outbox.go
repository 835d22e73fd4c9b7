package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VoucherOutbox is written in the same transaction as the voucher change and
// published after commit by the outbox dispatcher.
type VoucherOutbox struct {
	ID               int              `gorm:"primaryKey;index:idx_outbox_dispatch,priority:3" json:"id"`
	EventType        VoucherEventType `gorm:"size:32;not null;index" json:"event_type"`
	VoucherId        int              `gorm:"index;not null" json:"voucher_id"`
	VoucherNumber    int              `json:"voucher_number"`
	Period           string           `gorm:"size:7" json:"period"`
	ActorUserId      int              `json:"actor_user_id"`
	Payload          []byte           `json:"payload"`
	PublishStatus    string           `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time       `json:"published_at"`
	PubSubMessageId  *string          `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int              `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time       `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time       `json:"locked_at"`
	LockedBy         *string          `gorm:"size:100" json:"locked_by"`
	LastPublishError *string          `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string           `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToPubSubMessage(record VoucherOutbox) config.PubSubMessage {
	return config.PubSubMessage{
		ID:            record.ID,
		EventType:     string(record.EventType),
		VoucherId:     record.VoucherId,
		VoucherNumber: record.VoucherNumber,
		Period:        record.Period,
		ActorUserId:   record.ActorUserId,
		OccurredAt:    record.CreatedAt,
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}

// recordVoucherEvent must be called with the transaction that changes the voucher.
func recordVoucherEvent(ctx context.Context, tx *gorm.DB, eventType VoucherEventType, voucher *Voucher) error {
	payload, err := utils.MarshalToJSON(voucher)
	if err != nil {
		return err
	}
	actor, _ := utils.GetUserIdFromContext(ctx)
	record := VoucherOutbox{
		EventType:     eventType,
		VoucherId:     voucher.VoucherId,
		VoucherNumber: voucher.VoucherNumber,
		Period:        voucher.Period,
		ActorUserId:   actor,
		Payload:       payload,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// GetPendingOutboxCount is used by the admin CLI.
func GetPendingOutboxCount(ctx context.Context) (int64, error) {
	return utils.ResourceCountWhere[VoucherOutbox](ctx, "publish_status IN ?",
		[]string{OutboxPublishStatusPending, OutboxPublishStatusFailed, OutboxPublishStatusProcessing})
}

// RequeueDeadOutbox moves DEAD events back to PENDING and resets their attempts.
func RequeueDeadOutbox(ctx context.Context) (int64, error) {
	db := config.GetDB()
	res := db.WithContext(ctx).Model(&VoucherOutbox{}).
		Where("publish_status = ?", OutboxPublishStatusDead).
		Updates(map[string]interface{}{
			"publish_status":     OutboxPublishStatusPending,
			"publish_attempts":   0,
			"next_attempt_at":    nil,
			"last_publish_error": nil,
		})
	return res.RowsAffected, res.Error
}

var ErrOutboxRecordNotFound = fmt.Errorf("outbox record %w", utils.ErrorRecordNotFound)

// OutboxStatusCount is one row of the per-status outbox summary.
type OutboxStatusCount struct {
	PublishStatus string `json:"publish_status"`
	Count         int64  `json:"count"`
}

func GetOutboxStatusCounts(ctx context.Context) ([]*OutboxStatusCount, error) {
	var counts []*OutboxStatusCount
	err := config.GetDB().WithContext(ctx).Model(&VoucherOutbox{}).
		Select("publish_status, COUNT(*) AS count").
		Group("publish_status").
		Order("publish_status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// ReplayOutboxRecord makes a single event due for dispatch again, whatever its state.
func ReplayOutboxRecord(ctx context.Context, recordId int) (*VoucherOutbox, error) {
	db := config.GetDB()
	now := time.Now().UTC()
	res := db.WithContext(ctx).Model(&VoucherOutbox{}).
		Where("id = ?", recordId).
		Updates(map[string]interface{}{
			"publish_status":     OutboxPublishStatusFailed,
			"publish_attempts":   0,
			"next_attempt_at":    &now,
			"locked_at":          nil,
			"locked_by":          nil,
			"last_publish_error": nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrOutboxRecordNotFound
	}
	var record VoucherOutbox
	if err := db.WithContext(ctx).Where("id = ?", recordId).Take(&record).Error; err != nil {
		return nil, utils.NormalizeNotFound(err)
	}
	return &record, nil
}
