package main

import (
	"errors"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update every table",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connectDB()
			if err != nil {
				return err
			}
			if err := models.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSeedAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-accounts",
		Short: "Insert the default chart of accounts; existing accounts are kept",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := connectDB(); err != nil {
				return err
			}
			added, err := models.SeedAccounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("seed accounts: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d accounts added\n", added)
			return nil
		},
	}
}

func newCreateAdminCmd() *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an Admin user; the password is read from ADMIN_PASSWORD",
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("ADMIN_PASSWORD")
			if password == "" {
				return errors.New("ADMIN_PASSWORD is not set")
			}
			if _, err := connectDB(); err != nil {
				return err
			}
			user, err := models.CreateAdminUser(cmd.Context(), name, email, password)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin created: user_id=%d email=%s\n", user.UserId, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hashed, err := utils.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hashed)
			return nil
		},
	}
}

func newAccountsCmd() *cobra.Command {
	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "Chart of accounts checks",
	}
	accountsCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "List accounts whose type or group breaks the chart convention",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := connectDB(); err != nil {
				return err
			}
			mismatches, err := models.CheckAccountTypes(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range mismatches {
				fmt.Fprintf(out, "%d %s: group=%d type=%s expected=%s\n",
					m.Account.AccountNo, m.Account.AccountName, m.Account.AccountGroup, m.Account.Type, m.Expected)
			}
			if len(mismatches) > 0 {
				return fmt.Errorf("%d accounts break the chart convention", len(mismatches))
			}
			fmt.Fprintln(out, "all accounts ok")
			return nil
		},
	})
	return accountsCmd
}

func newOutboxCmd() *cobra.Command {
	outboxCmd := &cobra.Command{
		Use:   "outbox",
		Short: "Voucher event outbox housekeeping",
	}
	outboxCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Count outbox events per publish status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := connectDB(); err != nil {
				return err
			}
			counts, err := models.GetOutboxStatusCounts(cmd.Context())
			if err != nil {
				return err
			}
			pending, err := models.GetPendingOutboxCount(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range counts {
				fmt.Fprintf(out, "%-10s %d\n", c.PublishStatus, c.Count)
			}
			fmt.Fprintf(out, "awaiting dispatch: %d\n", pending)
			return nil
		},
	})
	outboxCmd.AddCommand(&cobra.Command{
		Use:   "requeue",
		Short: "Move DEAD events back to PENDING",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := connectDB(); err != nil {
				return err
			}
			n, err := models.RequeueDeadOutbox(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d events requeued\n", n)
			return nil
		},
	})
	return outboxCmd
}

func newSessionsCmd() *cobra.Command {
	var userId int
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session management",
	}
	revokeCmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke every session of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !config.RedisEnabled() {
				return errors.New("sessions live in redis but REDIS_DISABLED is set")
			}
			if _, err := connectDB(); err != nil {
				return err
			}
			config.ConnectRedisWithRetry()
			user, err := models.GetUser(cmd.Context(), userId)
			if err != nil {
				return err
			}
			if err := user.DestroyAllSessions(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sessions of %s revoked\n", user.Email)
			return nil
		},
	}
	revokeCmd.Flags().IntVar(&userId, "user-id", 0, "user whose sessions are revoked")
	_ = revokeCmd.MarkFlagRequired("user-id")
	sessionsCmd.AddCommand(revokeCmd)
	return sessionsCmd
}
