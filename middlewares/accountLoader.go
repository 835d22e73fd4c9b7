package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type accountReader struct {
	db *gorm.DB
}

func (r *accountReader) getAccounts(ctx context.Context, accountNos []int) []*dataloader.Result[*models.Account] {
	var results []models.Account

	err := r.db.WithContext(ctx).Where("account_no IN ?", accountNos).Find(&results).Error
	if err != nil {
		return handleError[*models.Account](len(accountNos), err)
	}
	return generateLoaderResults(results, accountNos, func(a models.Account) int { return a.AccountNo })
}

// GetAccount returns single account by number efficiently
func GetAccount(ctx context.Context, accountNo int) (*models.Account, error) {
	loaders := For(ctx)
	return loaders.AccountLoader.Load(ctx, accountNo)()
}

// GetAccounts returns many accounts by number efficiently
func GetAccounts(ctx context.Context, accountNos []int) ([]*models.Account, []error) {
	loaders := For(ctx)
	return loaders.AccountLoader.LoadMany(ctx, accountNos)()
}

// AccountMap loads the accounts of every line and keys them by number.
func AccountMap(ctx context.Context, lines []models.LineItem) (map[int]*models.Account, error) {
	accountNos := make([]int, 0, len(lines))
	for _, l := range lines {
		accountNos = append(accountNos, l.AccountNo)
	}
	accounts, errs := GetAccounts(ctx, accountNos)
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	result := make(map[int]*models.Account, len(accounts))
	for _, a := range accounts {
		if a != nil {
			result[a.AccountNo] = a
		}
	}
	return result, nil
}
