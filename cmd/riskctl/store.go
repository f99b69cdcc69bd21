package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/infrastructure/persistence/mysql"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/infrastructure/seed"
	"github.com/wyfcoding/paymentrisk/pkg/config"
	"github.com/wyfcoding/paymentrisk/pkg/db"
	"github.com/wyfcoding/paymentrisk/pkg/logger"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{Level: cfg.Logger.Level, Format: "text", Output: "stdout"}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*db.DB, error) {
	if cfg.Database.Driver == "memory" {
		return nil, errors.New("database.driver is memory, nothing to do")
	}
	return db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the alert, vendor, scheme and audit tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			database, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := mysql.AutoMigrate(database.DB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s database\n", cfg.Database.Driver)
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the default schemes and vendors when they are missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			database, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			res, err := seed.Apply(cmd.Context(), mysql.NewRepository(database.DB))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d schemes, %d vendors\n", res.Schemes, res.Vendors)
			return nil
		},
	}
}
