// Package repository provides data access layer implementations.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the repositories so a service can run them in one transaction.
type Store struct {
	pool         *pgxpool.Pool
	Users        *UserRepository
	Transactions *TransactionRepository
	Slaves       *SlaveRepository
}

// NewStore builds repositories over pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:         pool,
		Users:        NewUserRepository(pool),
		Transactions: NewTransactionRepository(pool),
		Slaves:       NewSlaveRepository(pool),
	}
}

// InTx runs fn with repositories bound to a single database transaction.
// It commits when fn returns nil. Calling InTx on a transactional Store reuses it.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{
			Users:        &UserRepository{db: tx},
			Transactions: &TransactionRepository{db: tx},
			Slaves:       &SlaveRepository{db: tx},
		})
	})
}
