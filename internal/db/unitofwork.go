package db

import (
	"context"
	"database/sql"
	"fmt"
)

// UnitOfWork runs a callback inside one transaction. The callback gets a
// DBTX backed by the transaction and builds tx-scoped repositories from it.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}

type afterCommitKey struct{}

type afterCommitHooks struct {
	fns []func(context.Context)
}

// AfterCommit registers fn to run once the enclosing WithinTx commits. Hooks
// are dropped on rollback. Outside a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	if hooks, ok := ctx.Value(afterCommitKey{}).(*afterCommitHooks); ok {
		hooks.fns = append(hooks.fns, fn)
		return
	}
	fn(ctx)
}

// WithAfterCommit returns a context collecting AfterCommit hooks and a
// function that runs them. UnitOfWork implementations call it around the
// callback.
func WithAfterCommit(ctx context.Context) (context.Context, func()) {
	hooks := &afterCommitHooks{}
	inner := context.WithValue(ctx, afterCommitKey{}, hooks)
	return inner, func() {
		for _, fn := range hooks.fns {
			fn(ctx)
		}
	}
}

// SQLiteUnitOfWork implements UnitOfWork using database/sql transactions.
type SQLiteUnitOfWork struct {
	db *sql.DB
}

func NewSQLiteUnitOfWork(db *sql.DB) *SQLiteUnitOfWork {
	return &SQLiteUnitOfWork{db: db}
}

func (u *SQLiteUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	txCtx, runHooks := WithAfterCommit(ctx)
	if err := fn(txCtx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	runHooks()
	return nil
}
