package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// MySQLStore implements Store on top of a MySQL connection pool.  Units of
// work run at READ COMMITTED: every statement sees the latest committed
// data, and the explicit row locks taken by LockPlan and LockTicket make
// the read-then-write sequences of the service layer serialisable per
// plan and per ticket.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore returns a MySQLStore bound to db.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// DB exposes the underlying pool (health checks, migrations).
func (s *MySQLStore) DB() *sql.DB { return s.db }

// Atomic runs fn inside a database transaction.
func (s *MySQLStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// sqlTx implements Tx over a *sql.Tx.  Its methods are split across the
// *_repository.go files by table.
type sqlTx struct {
	tx *sql.Tx
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// placeholders returns "?,?,...,?" with n markers and the ids as args.
func placeholders(ids []uint64) (string, []interface{}) {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}
