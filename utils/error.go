package utils

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrorRecordNotFound = errors.New("record not found")
	ErrorForbidden      = errors.New("forbidden")
	ErrorUnauthorized   = errors.New("unauthorized")
)

const mysqlDuplicateEntry = 1062

// IsDuplicateKeyError reports unique constraint violations from any of the
// supported dialects. gorm translates them when TranslateError is on; the
// raw driver error is still checked for connections opened without it.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return true
	}
	return false
}

// NormalizeNotFound maps gorm's not-found error to ErrorRecordNotFound.
func NormalizeNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorRecordNotFound
	}
	return err
}
