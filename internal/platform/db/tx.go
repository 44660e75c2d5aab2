package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medledger/medledger/internal/ledger"
)

type contextKey string

const txKey contextKey = "ledger_tx"

// TxFromContext returns the transaction carried by the context, or nil when
// the caller is outside a mutation.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// Runner executes a mutation as one indivisible unit of work: the entity
// write and its audit record commit together or not at all. Implementations
// must reject reentrant calls — a mutation may not start another mutation
// before completing.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PoolRunner is the production Runner. Mutations are serialized behind a
// mutex so no two interleave, and each runs in its own transaction placed on
// the context for repositories to join via conn(ctx).
type PoolRunner struct {
	pool *pgxpool.Pool
	mu   sync.Mutex
}

// RunnerFromPool wraps a connection pool in a serializing transaction runner.
func RunnerFromPool(pool *pgxpool.Pool) *PoolRunner {
	return &PoolRunner{pool: pool}
}

func (r *PoolRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return ledger.ErrReentrantMutation
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin mutation: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit mutation: %w", err)
	}
	return nil
}
