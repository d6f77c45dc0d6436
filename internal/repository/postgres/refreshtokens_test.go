package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/239fd/wmsProjectBackend-sub001/internal/apperrors"
	"github.com/239fd/wmsProjectBackend-sub001/internal/models"
	"github.com/239fd/wmsProjectBackend-sub001/internal/testutil"
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

// Token rows reference users, so every token needs an owner first
func createOwner(t *testing.T, repo *UserRepo, email string) models.User {
	t.Helper()

	params := userParams()
	if email != "" {
		params.Email = email
	}
	user, err := repo.CreateUser(t.Context(), params)
	require.NoError(t, err)
	return user
}

func tokenFor(userID uuid.UUID) models.RefreshToken {
	return models.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     "secret-token",
		CreatedAt: mustParseTime("2024-01-01 19:00:01Z"),
		ExpiresAt: mustParseTime("2200-01-01 03:00:02Z"),
		ClientIP:  "10.0.0.1",
		UserAgent: "test-agent",
	}
}

func Test_RefreshTokenRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("save and get token", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}
			owner := createOwner(t, &UserRepo{DB: tx}, "")
			token := tokenFor(owner.ID)

			require.NoError(t, repo.Save(t.Context(), token))

			got, err := repo.Get(t.Context(), token.Token)
			require.NoError(t, err)
			require.Equal(t, token.ID, got.ID)
			require.Equal(t, token.UserID, got.UserID)
			require.Equal(t, token.Token, got.Token)
			require.WithinDuration(t, token.CreatedAt, got.CreatedAt, 0)
			require.WithinDuration(t, token.ExpiresAt, got.ExpiresAt, 0)
			require.Equal(t, "10.0.0.1", got.ClientIP)
			require.Equal(t, "test-agent", got.UserAgent)
			require.Nil(t, got.UsedAt)
			require.Nil(t, got.RevokedAt)
		})
	})

	t.Run("get not existed token", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}

			_, err := repo.Get(t.Context(), "never-saved")
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
		})
	})

	t.Run("mark token used", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}
			owner := createOwner(t, &UserRepo{DB: tx}, "")
			token := tokenFor(owner.ID)
			require.NoError(t, repo.Save(t.Context(), token))

			usedAt, err := repo.MarkUsed(t.Context(), token.Token)

			require.NoError(t, err, "No error must happen when marking an unspent token")
			require.WithinDuration(t, time.Now(), usedAt, 50*time.Millisecond, "should be marked used close enough to now()")
		})
	})

	t.Run("mark used not existed token", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}

			_, err := repo.MarkUsed(t.Context(), "never-saved")
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
		})
	})

	t.Run("second mark used loses and reads back the winner's time", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}
			owner := createOwner(t, &UserRepo{DB: tx}, "")
			token := tokenFor(owner.ID)
			require.NoError(t, repo.Save(t.Context(), token))

			first, err := repo.MarkUsed(t.Context(), token.Token)
			require.NoError(t, err, "No error should happen on mark used")

			time.Sleep(100 * time.Millisecond)
			second, err := repo.MarkUsed(t.Context(), token.Token)
			require.Error(t, err, "Marking an already used token has to return error")
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenIsUsed)

			assert.WithinDuration(t, first, second, 0, "loser should read back the winner's timestamp")
		})
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}
			owner := createOwner(t, &UserRepo{DB: tx}, "")
			token := tokenFor(owner.ID)
			require.NoError(t, repo.Save(t.Context(), token))

			require.NoError(t, repo.Revoke(t.Context(), token.Token))

			got, err := repo.Get(t.Context(), token.Token)
			require.NoError(t, err)
			require.NotNil(t, got.RevokedAt)
			firstRevokedAt := *got.RevokedAt

			// Second revoke keeps the original timestamp
			require.NoError(t, repo.Revoke(t.Context(), token.Token))
			got, err = repo.Get(t.Context(), token.Token)
			require.NoError(t, err)
			require.NotNil(t, got.RevokedAt)
			require.WithinDuration(t, firstRevokedAt, *got.RevokedAt, 0)

			// Absent token is fine too
			require.NoError(t, repo.Revoke(t.Context(), "never-saved"))
		})
	})

	// Runs over the pool, not a tx: the race is only real across connections
	t.Run("concurrent mark used has exactly one winner", func(t *testing.T) {
		userRepo := UserRepo{DB: pg.Pool}
		repo := RefreshTokenRepo{DB: pg.Pool}

		owner := createOwner(t, &userRepo, "racer@example.com")
		t.Cleanup(func() {
			// Cascade removes the token rows. t.Context is already canceled
			// by the time cleanups run
			_, err := pg.Pool.Exec(context.Background(), "DELETE FROM users WHERE id = $1", owner.ID)
			require.NoError(t, err)
		})

		token := tokenFor(owner.ID)
		token.Token = "contended-token"
		require.NoError(t, repo.Save(t.Context(), token))

		const callers = 8
		errs := make(chan error, callers)
		var wg sync.WaitGroup
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.MarkUsed(t.Context(), token.Token)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		var wins, losses int
		for err := range errs {
			if err == nil {
				wins++
				continue
			}
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenIsUsed)
			losses++
		}
		require.Equal(t, 1, wins, "exactly one rotation should win")
		require.Equal(t, callers-1, losses)
	})
}
