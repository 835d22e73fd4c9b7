package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxOutboxBackoff = 10 * time.Minute

// EventPublisher delivers one voucher event and returns the broker message id.
type EventPublisher interface {
	Publish(ctx context.Context, msg config.PubSubMessage) (string, error)
}

// OutboxDispatcher publishes voucher events written by the voucher
// transactions. Several dispatchers may run at once; rows are claimed with
// SKIP LOCKED and a claim older than LockTimeout is taken over.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Publisher    EventPublisher
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger, publisher EventPublisher) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		Publisher:      publisher,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

// Run polls until ctx is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()
	for {
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce claims one batch of due events and publishes it. It returns
// how many events were published.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) int {
	if d.DB == nil || d.Publisher == nil {
		return 0
	}
	now := time.Now().UTC()
	claimed, err := d.claimBatch(ctx, now)
	if err != nil {
		d.logEntry(logrus.Fields{}).Error("outbox claim failed: " + err.Error())
		return 0
	}

	sent := 0
	for _, record := range claimed {
		msgId, err := d.Publisher.Publish(ctx, models.ConvertToPubSubMessage(record))
		if err != nil {
			d.markFailed(ctx, record, err)
			continue
		}
		d.markSent(ctx, record.ID, msgId, now)
		sent++
	}
	return sent
}

// claimBatch locks the due rows for this dispatcher. Rows that already used
// up their attempts go straight to DEAD and are not returned.
func (d *OutboxDispatcher) claimBatch(ctx context.Context, now time.Time) ([]models.VoucherOutbox, error) {
	var claimed []models.VoucherOutbox
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []models.VoucherOutbox
		err := tx.Scopes(dueOutboxRecords(now, now.Add(-d.LockTimeout))).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Find(&due).Error
		if err != nil {
			return err
		}
		for _, record := range due {
			if d.exhausted(record.PublishAttempts) {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				if err := updateOutbox(tx, record.ID, deadFields(msg)); err != nil {
					return err
				}
				continue
			}
			record.PublishStatus = models.OutboxPublishStatusProcessing
			record.PublishAttempts++
			err := updateOutbox(tx, record.ID, map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusProcessing,
				"locked_at":          &now,
				"locked_by":          &d.DispatcherID,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			})
			if err != nil {
				return err
			}
			claimed = append(claimed, record)
		}
		return nil
	})
	return claimed, err
}

// dueOutboxRecords matches PENDING or FAILED rows whose retry time has come,
// and PROCESSING rows whose claim went stale.
func dueOutboxRecords(now time.Time, staleBefore time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"(publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)) OR (publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?)",
			[]string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now,
			models.OutboxPublishStatusProcessing, staleBefore,
		)
	}
}

func (d *OutboxDispatcher) exhausted(attempts int) bool {
	return d.MaxAttempts > 0 && attempts >= d.MaxAttempts
}

// backoff doubles InitialBackoff per earlier attempt, capped at maxOutboxBackoff.
func (d *OutboxDispatcher) backoff(attempt int) time.Duration {
	wait := d.InitialBackoff
	for i := 1; i < attempt && wait < maxOutboxBackoff; i++ {
		wait *= 2
	}
	if wait > maxOutboxBackoff {
		wait = maxOutboxBackoff
	}
	return wait
}

func deadFields(msg string) map[string]interface{} {
	return map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusDead,
		"last_publish_error": &msg,
		"next_attempt_at":    nil,
		"locked_at":          nil,
		"locked_by":          nil,
	}
}

func updateOutbox(db *gorm.DB, recordId int, fields map[string]interface{}) error {
	return db.Model(&models.VoucherOutbox{}).Where("id = ?", recordId).Updates(fields).Error
}

func (d *OutboxDispatcher) markSent(ctx context.Context, recordId int, msgId string, now time.Time) {
	err := updateOutbox(d.DB.WithContext(ctx), recordId, map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusSent,
		"published_at":       &now,
		"pub_sub_message_id": &msgId,
		"locked_at":          nil,
		"locked_by":          nil,
		"next_attempt_at":    nil,
	})
	if err != nil {
		d.logEntry(logrus.Fields{"record_id": recordId}).Error("outbox mark sent failed: " + err.Error())
	}
}

// markFailed schedules a retry, or moves the record to DEAD once it has
// used its last attempt.
func (d *OutboxDispatcher) markFailed(ctx context.Context, record models.VoucherOutbox, publishErr error) {
	db := d.DB.WithContext(ctx)
	msg := publishErr.Error()
	fields := logrus.Fields{
		"voucher_id": record.VoucherId,
		"record_id":  record.ID,
		"attempt":    record.PublishAttempts,
	}

	if d.exhausted(record.PublishAttempts) {
		_ = updateOutbox(db, record.ID, deadFields(msg))
		d.logEntry(fields).Error("outbox publish moved to DEAD after max attempts: " + msg)
		return
	}

	next := time.Now().UTC().Add(d.backoff(record.PublishAttempts))
	_ = updateOutbox(db, record.ID, map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusFailed,
		"last_publish_error": &msg,
		"next_attempt_at":    &next,
		"locked_at":          nil,
		"locked_by":          nil,
	})
	fields["next_attempt_at"] = next.Format(time.RFC3339Nano)
	d.logEntry(fields).Error("outbox publish failed: " + msg)
}

func (d *OutboxDispatcher) logEntry(fields logrus.Fields) *logrus.Entry {
	logger := d.Logger
	if logger == nil {
		logger = config.GetLogger()
	}
	fields["field"] = "OutboxDispatcher"
	return logger.WithFields(fields)
}
