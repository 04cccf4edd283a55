/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dekyc/apiserver/internal/db"
	"github.com/dekyc/apiserver/internal/roster"
	"github.com/dekyc/apiserver/internal/services"
	"github.com/dekyc/apiserver/internal/store"
)

var (
	seedAdminName     string
	seedAdminEmail    string
	seedAdminPassword string
)

// seedCmd inserts the sample roster into the database.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the sample KYC roster and optionally an administrator",
	Long: `Inserts the five sample roster records. Existing records are left
untouched, so the command can be run repeatedly. With --admin-email and
--admin-password an administrator account is created as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}

		conn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		users := store.NewUserRepository(conn)
		n, err := users.Seed(cmd.Context(), roster.Seed())
		if err != nil {
			return err
		}
		log.Info("roster seeded", "inserted", n, "skipped", len(roster.Seed())-n)

		if seedAdminEmail == "" {
			return nil
		}
		admin, created, err := services.NewUserService(users).EnsureAdmin(cmd.Context(), seedAdminName, seedAdminEmail, seedAdminPassword)
		if err != nil {
			return err
		}
		log.Info("admin account ready", "user_id", admin.ID, "created", created)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedAdminName, "admin-name", "Administrator", "display name of the administrator")
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "", "email of the administrator to create")
	seedCmd.Flags().StringVar(&seedAdminPassword, "admin-password", "", "password of the administrator to create")
}
