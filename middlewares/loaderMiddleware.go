package middlewares

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders wrap your data loaders to inject via middleware
type Loaders struct {
	AccountLoader *dataloader.Loader[int, *models.Account]
	UserLoader    *dataloader.Loader[int, *models.User]
}

// NewLoaders instantiates data loaders for the middleware
func NewLoaders(conn *gorm.DB) *Loaders {
	accountReader := &accountReader{db: conn}
	userReader := &userReader{db: conn}

	return &Loaders{
		AccountLoader: dataloader.NewBatchedLoader(accountReader.getAccounts, dataloader.WithWait[int, *models.Account](time.Millisecond)),
		UserLoader:    dataloader.NewBatchedLoader(userReader.getUsers, dataloader.WithWait[int, *models.User](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// For returns the request loaders, or fresh ones when the middleware did not run.
func For(ctx context.Context) *Loaders {
	if loaders, ok := ctx.Value(loadersKey).(*Loaders); ok {
		return loaders
	}
	return NewLoaders(config.GetDB())
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// generateLoaderResults orders db results by the requested keys. Keys
// without a row get a nil result.
func generateLoaderResults[T any](results []T, keys []int, keyOf func(T) int) []*dataloader.Result[*T] {
	resultMap := make(map[int]*T, len(results))
	for i := range results {
		resultMap[keyOf(results[i])] = &results[i]
	}

	loaderResults := make([]*dataloader.Result[*T], 0, len(keys))
	for _, key := range keys {
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: resultMap[key]})
	}
	return loaderResults
}
