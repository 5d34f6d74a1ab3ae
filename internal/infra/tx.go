package infra

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Tx is the slice of pgx.Tx the orchestrator needs: statement execution plus
// commit/rollback.
type Tx interface {
	DBTX
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxStarter opens transactions. *DB satisfies it in production; tests provide
// in-memory fakes.
type TxStarter interface {
	Begin(ctx context.Context) (Tx, error)
}

// DB adapts a pgxpool.Pool to the TxStarter contract.
type DB struct {
	Pool *pgxpool.Pool
}

func (d *DB) Begin(ctx context.Context) (Tx, error) {
	return d.Pool.Begin(ctx)
}
