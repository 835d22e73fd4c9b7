package models

import (
	"log"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"gorm.io/gorm"
)

func MigrateTable() {
	if err := Migrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Account{},
		&Voucher{}, &LineItem{},
		&User{},
		&VoucherOutbox{},
	)
}
