package utils

import (
	"context"
	"errors"
	"reflect"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
)

// ValidateResourceExists returns ErrorRecordNotFound when no T has column = value.
func ValidateResourceExists[T any](ctx context.Context, column string, value interface{}) error {
	count, err := ResourceCountWhere[T](ctx, column+" = ?", value)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// ValidateResourcesExist checks that every value exists in column.
func ValidateResourcesExist[T any, ID comparable](ctx context.Context, column string, values []ID) error {
	unq := UniqueSlice(values)
	if len(unq) == 0 {
		return nil
	}
	count, err := ResourceCountWhere[T](ctx, column+" IN ?", unq)
	if err != nil {
		return err
	}
	if count != int64(len(unq)) {
		return ErrorRecordNotFound
	}
	return nil
}

// ValidateUnique fails when another row (other than exceptValue in keyColumn)
// already has column = value.
func ValidateUnique[T any](ctx context.Context, column string, value interface{}, keyColumn string, exceptValue interface{}) error {
	var count int64
	var err error
	if exceptValue == nil || reflect.ValueOf(exceptValue).IsZero() {
		count, err = ResourceCountWhere[T](ctx, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, column+" = ? AND NOT "+keyColumn+" = ?", value, exceptValue)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate " + column)
	}
	return nil
}

func ResourceCountWhere[T any](ctx context.Context, condition string, value ...interface{}) (int64, error) {
	var model T
	var count int64
	err := config.GetDB().WithContext(ctx).Model(&model).
		Where(condition, value...).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
