package main

import (
	"errors"

	"github.com/iamasit07/guess-master/backend/internal/config"
	"github.com/iamasit07/guess-master/backend/internal/repository/postgres"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(v)
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required to run migrations")
			}

			ctx := cmd.Context()
			db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
				MaxOpenConns:       cfg.DBMaxOpenConns,
				MaxIdleConns:       cfg.DBMaxIdleConns,
				ConnMaxLifetimeMin: cfg.DBConnMaxLifetimeMin,
			})
			if err != nil {
				return err
			}
			defer db.Close()

			log.Info().Str("component", "migrate").Msg("running database migrations")
			if err := postgres.RunMigrations(ctx, db); err != nil {
				return err
			}
			log.Info().Str("component", "migrate").Msg("database migration completed successfully")
			return nil
		},
	}
}
