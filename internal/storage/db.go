// Package storage persists alarms, drivers and anomaly classifications in
// the pre-existing fleet database.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by every lookup whose target row does not exist.
var ErrNotFound = errors.New("not found")

// pingTimeout bounds the connectivity check at startup; pool creation itself
// is lazy and would otherwise report a bad DSN only on first query.
const pingTimeout = 5 * time.Second

// Store owns the connection pool shared by all repositories.
type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}
