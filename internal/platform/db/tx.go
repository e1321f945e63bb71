package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type contextKey string

const (
	beginnerKey contextKey = "db_beginner"
	txKey       contextKey = "db_tx"
)

// Beginner starts transactions. *pgxpool.Pool and pgx.Tx both satisfy it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

var errNoConnection = errors.New("no database connection in context")

// ContextWithPool attaches the connection source used by WithTx.
func ContextWithPool(ctx context.Context, b Beginner) context.Context {
	return context.WithValue(ctx, beginnerKey, b)
}

// TxFromContext returns the transaction started by WithTx, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction and returns a context carrying it. Repositories
// that look up TxFromContext will run their statements inside it. When ctx
// already carries a transaction a savepoint is opened instead.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	var b Beginner
	if tx := TxFromContext(ctx); tx != nil {
		b = tx
	} else if pool, ok := ctx.Value(beginnerKey).(Beginner); ok && pool != nil {
		b = pool
	}
	if b == nil {
		return ctx, nil, errNoConnection
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, txKey, tx), tx, nil
}

// RunInTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx, tx, err := WithTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(txCtx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
