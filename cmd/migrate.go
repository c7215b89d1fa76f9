package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-club-dues/app/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Run: func(_ *cobra.Command, _ []string) {
		cfg := mustLoadConfig()
		cfg.Database.AutoMigrate = false
		db := mustOpenDatabase(cfg)
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := repository.Migrate(ctx, db, cfg.Database.Driver); err != nil {
			logrus.WithError(err).Fatal("Migration failed")
		}
		logrus.WithField("driver", cfg.Database.Driver).Info("Schema applied")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
