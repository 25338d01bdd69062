package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/cardexchange/internal/domain"
	"github.com/punchamoorthee/cardexchange/internal/service"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

//go:embed schema.sql
var schema string

// Store is the Postgres backend. Atomic units run on pgx; the read-only
// query surface is built with bun over its own connection pool.
type Store struct {
	pool *pgxpool.Pool
	db   *bun.DB
}

func NewStore(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connString)))
	return &Store{pool: pool, db: bun.NewDB(sqldb, pgdialect.New())}, nil
}

func (s *Store) Close() {
	s.pool.Close()
	s.db.Close()
}

// Pool exposes the pgx pool for bulk tooling such as the seeder.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Atomically runs fn in one READ COMMITTED transaction. Callers take the row
// locks they need through the Tx, so a racing writer re-reads committed state
// instead of failing with a serialization error.
func (s *Store) Atomically(ctx context.Context, fn func(tx service.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return translate(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", translate(err))
	}
	return nil
}

// GetCard reads catalog metadata on its own pool connection. Atomic units
// read through pgTx.GetCard instead.
func (s *Store) GetCard(ctx context.Context, cardID int64) (domain.Card, error) {
	return getCard(ctx, s.pool, cardID)
}

func (s *Store) GetOffer(ctx context.Context, id int64) (domain.Offer, error) {
	return getOffer(ctx, s.pool, id, service.LockNone)
}

// translate maps serialization failures and deadlocks onto domain.ErrConflict.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.Message)
		}
	}
	return err
}

var (
	_ service.Store = (*Store)(nil)
	_ service.Views = (*Store)(nil)
)
