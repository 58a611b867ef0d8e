package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

const uniqueViolationCode = "23505"

func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	return withTxOptions(ctx, pool, pgx.TxOptions{}, fn)
}

// WithReadTx runs fn in a read-only REPEATABLE READ transaction so every
// statement inside observes the same snapshot.
func WithReadTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	return withTxOptions(ctx, pool, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, fn)
}

func withTxOptions(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(context.Context, pgx.Tx) error) error {
	if pool == nil {
		return errors.New("postgres pool is nil")
	}

	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// PairTransactor serialises writers on the same user pair with a
// transaction-scoped advisory lock derived from the canonical pair key.
type PairTransactor struct {
	pool *pgxpool.Pool
}

func NewPairTransactor(pool *pgxpool.Pool) *PairTransactor {
	return &PairTransactor{pool: pool}
}

func (t *PairTransactor) InPair(ctx context.Context, key rules.PairKey, fn func(context.Context, pgx.Tx) error) error {
	if !key.Valid() {
		return fmt.Errorf("invalid pair key %s", key)
	}
	return WithTx(ctx, t.pool, func(txCtx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(txCtx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key.String()); err != nil {
			return fmt.Errorf("lock pair %s: %w", key, err)
		}
		return fn(txCtx, tx)
	})
}

func (t *PairTransactor) ReadPair(ctx context.Context, key rules.PairKey, fn func(context.Context, pgx.Tx) error) error {
	if !key.Valid() {
		return fmt.Errorf("invalid pair key %s", key)
	}
	return WithReadTx(ctx, t.pool, fn)
}

func (t *PairTransactor) Snapshot(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return WithReadTx(ctx, t.pool, fn)
}

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// conn prefers the caller's transaction and falls back to the pool.
func conn(pool *pgxpool.Pool, tx pgx.Tx) (querier, error) {
	if tx != nil {
		return tx, nil
	}
	if pool == nil {
		return nil, errors.New("postgres pool is nil")
	}
	return pool, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
