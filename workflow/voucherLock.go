package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"gorm.io/gorm"
)

// AcquireVoucherLock serializes work on one voucher across instances using
// database advisory locks. It must run inside the transaction that does the
// work. On MySQL GET_LOCK is connection-scoped, so ReleaseVoucherLock has to
// run on the same tx before commit; Postgres releases at transaction end.
// SQLite has a single writer and needs nothing.
func AcquireVoucherLock(tx *gorm.DB, voucherId int) error {
	lockName := voucherLockName(voucherId)
	switch config.GetDBDriver() {
	case config.DriverMySQL:
		var ok int
		if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
			return err
		}
		if ok != 1 {
			return fmt.Errorf("could not acquire lock for voucher_id=%d", voucherId)
		}
	case config.DriverPostgres:
		return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", lockName).Error
	}
	return nil
}

func ReleaseVoucherLock(tx *gorm.DB, voucherId int) {
	if config.GetDBDriver() != config.DriverMySQL {
		return
	}
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", voucherLockName(voucherId)).Scan(&_ok).Error
}

func voucherLockName(voucherId int) string {
	return fmt.Sprintf("voucher:%d", voucherId)
}
