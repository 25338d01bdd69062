package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/cardexchange/internal/api"
	"github.com/punchamoorthee/cardexchange/internal/auth"
	"github.com/punchamoorthee/cardexchange/internal/catalog"
	"github.com/punchamoorthee/cardexchange/internal/config"
	"github.com/punchamoorthee/cardexchange/internal/fixture"
	"github.com/punchamoorthee/cardexchange/internal/lock"
	"github.com/punchamoorthee/cardexchange/internal/logger"
	"github.com/punchamoorthee/cardexchange/internal/service"
	"github.com/punchamoorthee/cardexchange/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log)
			slog.SetDefault(log)

			if err := serve(cmd.Context(), cfg, log); err != nil {
				log.Error("server stopped", slog.Any("error", err))
				return err
			}
			return nil
		},
	}
}

// backend bundles the three store roles the engine needs.
type backend interface {
	service.Store
	service.Views
	catalog.Source
}

func openBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (backend, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		m := store.NewMemory()
		if cfg.FixturePath != "" {
			fx, err := fixture.Load(cfg.FixturePath)
			if err != nil {
				return nil, nil, err
			}
			m.Load(fx)
			log.Info("fixture loaded",
				slog.String("path", cfg.FixturePath),
				slog.Int("users", len(fx.Users)),
				slog.Int("cards", len(fx.Cards)),
				slog.Int("owned_cards", len(fx.OwnedCards)))
		}
		return m, func() {}, nil
	default:
		s, err := store.NewStore(ctx, cfg.DBSource)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		return s, s.Close, nil
	}
}

func openLocker(ctx context.Context, cfg config.LockConfig) (lock.Manager, func(), error) {
	switch cfg.Backend {
	case config.LockLocal:
		l := lock.NewLocal()
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "exchange_offer_locks_held",
			Help: "Offers currently locked by an accept or cancel in this process",
		}, func() float64 { return float64(l.Held()) })
		return l, func() {}, nil
	case config.LockRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		return lock.NewRedisLock(client, cfg.TTL.Duration, cfg.Retries, cfg.Backoff.Duration), func() { client.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, closeDB, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	cards, err := catalog.NewCached(db, cfg.CatalogCache)
	if err != nil {
		return err
	}

	var opts []service.Option
	locker, closeLocker, err := openLocker(ctx, cfg.Lock)
	if err != nil {
		return err
	}
	defer closeLocker()
	if locker != nil {
		opts = append(opts, service.WithLocker(locker))
	}

	svc := service.NewExchangeService(db, db, cards, log, opts...)
	router := api.NewRouter(api.NewHandler(svc, log), auth.NewJWTAuthenticator(cfg.JWTSecret))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.IsDevelopment() {
		log.Warn("running in development mode",
			slog.String("fixture", cfg.FixturePath),
			slog.String("log_level", cfg.Log.Level))
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("store", cfg.StoreBackend),
			slog.String("lock", cfg.Lock.Backend),
			slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", slog.Duration("timeout", cfg.ShutdownTimeout.Duration))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
