package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"gorm.io/gorm"
)

// FetchModel loads T by primary key column with optional preloads.
func FetchModel[T any](ctx context.Context, keyColumn string, id int, associations ...string) (*T, error) {
	return FetchModelTx[T](config.GetDB().WithContext(ctx), keyColumn, id, associations...)
}

// FetchModelTx is FetchModel inside an existing transaction.
func FetchModelTx[T any](tx *gorm.DB, keyColumn string, id int, associations ...string) (*T, error) {
	var result T
	q := tx
	for _, a := range associations {
		q = q.Preload(a)
	}
	if err := q.Where(keyColumn+" = ?", id).First(&result).Error; err != nil {
		return nil, NormalizeNotFound(err)
	}
	return &result, nil
}
