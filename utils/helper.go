package utils

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var ErrLockNotObtained = errors.New("resource is busy, try again")

// ProcessValidationErrors flattens validator errors into field -> rule.
// Returns nil when err is not a validation error.
func ProcessValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}

	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		rule := ve.Tag()
		if ve.Param() != "" {
			rule += "=" + ve.Param()
		}
		errorResponse[ve.Field()] = rule
	}
	return errorResponse
}

// ValidationMessage renders ProcessValidationErrors as one sorted line.
func ValidationMessage(err error) string {
	fields := ProcessValidationErrors(err)
	if len(fields) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(fields))
	for field, rule := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, rule))
	}
	sort.Strings(parts)
	return "validation failed (" + strings.Join(parts, ", ") + ")"
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]struct{}, len(slice))
	out := make([]T, 0, len(slice))
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}
	// accept the Swedish decimal comma
	value = strings.ReplaceAll(value, " ", "")
	if strings.Count(value, ",") == 1 && !strings.Contains(value, ".") {
		value = strings.Replace(value, ",", ".", 1)
	}
	return decimal.NewFromString(value)
}

// ObtainLock takes a redis lock on key and returns its release func.
// Without redis the lock is skipped and callers rely on database constraints.
func ObtainLock(ctx context.Context, key string, ttl time.Duration, moduleName string, functionName string) (func(), error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}, nil
	}
	logger := config.GetLogger()
	lock, err := locker.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 30),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "could not obtain lock", key, err)
		return nil, ErrLockNotObtained
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "error obtaining lock", key, err)
		return nil, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
