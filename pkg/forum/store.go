package forum

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
)

//go:embed sql/schema.sql
var schemaSQL string

// Store is the query surface the forum core runs against. WithTx binds
// the same surface to an open transaction.
type Store interface {
	Querier
	WithTx(tx pgx.Tx) Store
}

// TxBeginner opens transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// QueriesWrapper adapts the generated *Queries to Store.
type QueriesWrapper struct {
	*Queries
}

func NewStore(db DBTX) *QueriesWrapper {
	return &QueriesWrapper{Queries: New(db)}
}

func (qw *QueriesWrapper) WithTx(tx pgx.Tx) Store {
	return &QueriesWrapper{
		Queries: qw.Queries.WithTx(tx),
	}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// inTx runs fn against a transaction-bound Store and commits when fn
// returns nil. Any error, including a cancelled context, rolls back.
func inTx(ctx context.Context, db TxBeginner, store Store, fn func(Store) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(store.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
