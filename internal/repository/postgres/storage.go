package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/239fd/wmsProjectBackend-sub001/internal/repository"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Conn and pgx.Tx, so repositories
// work the same over a pool or inside a transaction.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Storage struct {
	db DBTX
}

func NewStorage(db DBTX) *Storage {
	return &Storage{db: db}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{DB: s.db}
}

func (s *Storage) Refresh() repository.RefreshTokenRepo {
	return &RefreshTokenRepo{DB: s.db}
}
