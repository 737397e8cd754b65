package main

import (
	"github.com/spf13/cobra"
	"github.com/vasiliy-maslov/laofi/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return db.ApplyMigrations(cfg.Postgres)
	},
}
