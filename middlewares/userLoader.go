package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type userReader struct {
	db *gorm.DB
}

func (r *userReader) getUsers(ctx context.Context, ids []int) []*dataloader.Result[*models.User] {
	var results []models.User
	err := r.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.User](len(ids), err)
	}
	return generateLoaderResults(results, ids, func(u models.User) int { return u.UserId })
}

func GetUser(ctx context.Context, id int) (*models.User, error) {
	loaders := For(ctx)
	return loaders.UserLoader.Load(ctx, id)()
}

func GetUsers(ctx context.Context, ids []int) ([]*models.User, []error) {
	loaders := For(ctx)
	return loaders.UserLoader.LoadMany(ctx, ids)()
}
