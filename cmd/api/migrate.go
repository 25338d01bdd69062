package main

import (
	"errors"
	"log/slog"

	"github.com/punchamoorthee/cardexchange/internal/config"
	"github.com/punchamoorthee/cardexchange/internal/logger"
	"github.com/punchamoorthee/cardexchange/internal/store"
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log)
			if cfg.StoreBackend != config.BackendPostgres {
				return errors.New("migrate needs the postgres store backend")
			}

			s, err := store.NewStore(cmd.Context(), cfg.DBSource)
			if err != nil {
				log.Error("failed to connect to database", slog.Any("error", err))
				return err
			}
			defer s.Close()

			if err := s.Migrate(cmd.Context()); err != nil {
				log.Error("migration failed", slog.Any("error", err))
				return err
			}
			log.Info("schema applied")
			return nil
		},
	}
}
