package main

import (
	"github.com/fatih/color"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations",
	Long:  "Creates or upgrades the phone pool, assignment ledger, contact, quality and transcript tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := dsn()
		if err != nil {
			return err
		}
		db, err := migrations.Open(d)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		rollback, _ := cmd.Flags().GetBool("rollback")
		if rollback {
			if err := migrations.RollbackLast(db); err != nil {
				return eris.Wrap(err, "rollback last migration")
			}
			log.Info("rolled back last migration")
			color.Yellow("Rolled back the most recent migration")
			return nil
		}

		if err := migrations.Migrate(db); err != nil {
			return eris.Wrap(err, "migrate")
		}
		log.Info("migrations applied", zap.Int("known", len(migrations.All())))
		color.Green("✓ Schema is up to date")
		return nil
	},
}

func init() {
	migrateCmd.Flags().Bool("rollback", false, "revert the most recent migration instead")
	rootCmd.AddCommand(migrateCmd)
}
