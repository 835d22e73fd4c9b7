// bookkeeping-admin runs one-off maintenance jobs against the bookkeeping
// database: migrations, chart-of-accounts seeding, admin bootstrap and outbox
// housekeeping.
//
// Usage (from backend directory):
//
//	DB_DRIVER=... DB_USER=... DB_PASSWORD=... DB_HOST=... DB_NAME=... go run ./cmd/bookkeeping-admin migrate
package main

import (
	"errors"
	"os"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bookkeeping-admin",
		Short: "Maintenance tasks for the bookkeeping backend",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newMigrateCmd(),
		newSeedAccountsCmd(),
		newCreateAdminCmd(),
		newHashPasswordCmd(),
		newAccountsCmd(),
		newOutboxCmd(),
		newSessionsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connectDB blocks until the database answers.
func connectDB() (*gorm.DB, error) {
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("database not initialized; set DB_* env vars")
	}
	return db, nil
}
