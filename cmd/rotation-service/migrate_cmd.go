package main

import (
	"github.com/spf13/cobra"

	"github.com/urpt/student-rotation-service/pkg"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := pkg.InitDatabase(cfg)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err == nil {
				defer sqlDB.Close()
			}

			if err := pkg.AutoMigrate(db); err != nil {
				return err
			}
			logger.Info("Database schema is up to date")
			return nil
		},
	}
}
