package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/239fd/wmsProjectBackend-sub001/internal/apperrors"
	"github.com/239fd/wmsProjectBackend-sub001/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const saveToken = `-- name: SaveRefreshToken
INSERT INTO refresh_tokens (id, user_id, token, created_at, expires_at, used_at, revoked_at, client_ip, user_agent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id
`

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) error {
	rows, _ := r.DB.Query(ctx, saveToken,
		token.ID, token.UserID, token.Token,
		token.CreatedAt, token.ExpiresAt, token.UsedAt, token.RevokedAt,
		token.ClientIP, token.UserAgent,
	)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const getToken = `-- name: GetRefreshToken
SELECT id, user_id, created_at, expires_at, used_at, revoked_at, client_ip, user_agent
FROM refresh_tokens
WHERE token = $1
`

// Get token
// Returns the row even if it is expired, used or revoked; the caller decides
func (r *RefreshTokenRepo) Get(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getToken, tokenString)
	token, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.RefreshToken, error) {
		t := models.RefreshToken{Token: tokenString}
		err := row.Scan(&t.ID, &t.UserID, &t.CreatedAt, &t.ExpiresAt, &t.UsedAt, &t.RevokedAt, &t.ClientIP, &t.UserAgent)
		return t, err
	})

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const markTokenUsed = `-- name: MarkRefreshTokenUsed
UPDATE refresh_tokens
SET used_at = COALESCE(used_at, $2)
WHERE token = $1
RETURNING used_at
`

// MarkUsed spends the token on rotation. The conditional COALESCE update is
// the atomicity guarantee: of N concurrent rotations exactly one observes
// used_at == its own timestamp, the rest read back the winner's.
func (r *RefreshTokenRepo) MarkUsed(ctx context.Context, tokenString string) (time.Time, error) {
	// Truncate to microseconds so the value read back from timestamptz
	// compares equal to the value written
	now := time.Now().Truncate(time.Microsecond)
	rows, _ := r.DB.Query(ctx, markTokenUsed, tokenString, now)
	usedAt, err := pgx.CollectOneRow(rows, pgx.RowTo[time.Time])

	switch {
	case err == nil && usedAt.Equal(now):
		return usedAt, nil
	case err == nil: // someone else spent it first
		return usedAt, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenIsUsed)
	case errors.Is(err, pgx.ErrNoRows):
		return usedAt, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return usedAt, fmt.Errorf("db error: %w", err)
	}
}

const revokeToken = `-- name: RevokeRefreshToken
UPDATE refresh_tokens
SET revoked_at = COALESCE(revoked_at, $2)
WHERE token = $1
RETURNING revoked_at
`

// Revoke the token on logout
// Idempotent: an absent or already revoked token is not an error
func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenString string) error {
	rows, _ := r.DB.Query(ctx, revokeToken, tokenString, time.Now())
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[time.Time])

	switch {
	case err == nil, errors.Is(err, pgx.ErrNoRows):
		return nil
	default:
		return fmt.Errorf("db error: %w", err)
	}
}
