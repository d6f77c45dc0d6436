// Package tokenmanager issues and parses the session token pairs.
//
// Access tokens are self-contained RS256 JWTs and are never persisted:
// verification is signature plus expiry only, so they cannot be revoked
// before they expire. Refresh tokens are opaque random strings tracked
// server side and are the only revocable artifact. This asymmetry is the
// accepted trade-off of the design, not an oversight.
package tokenmanager

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/239fd/wmsProjectBackend-sub001/internal/apperrors"
	"github.com/239fd/wmsProjectBackend-sub001/internal/keys"
	"github.com/239fd/wmsProjectBackend-sub001/internal/models"
	"github.com/239fd/wmsProjectBackend-sub001/internal/repository"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 30 * 24 * time.Hour

	refreshTokenBytes = 32
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Identity is the verified claim set of a parsed access token
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   models.Role
}

// SessionMeta is recorded on the refresh-token row
type SessionMeta struct {
	ClientIP  string
	UserAgent string
}

// Token manager config with sensible defaults
type Config struct {
	// Signing key manager. Required
	Keys *keys.Manager

	// Access and refresh token lifetimes
	// If not set the defaults are used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	keys *keys.Manager

	accessTTL  time.Duration
	refreshTTL time.Duration

	refreshRepo repository.RefreshTokenRepo
}

func New(cfg Config, refreshRepo repository.RefreshTokenRepo) (*TokenManager, error) {
	if cfg.Keys == nil {
		return nil, errors.New("key manager must not be nil")
	}
	if refreshRepo == nil {
		return nil, errors.New("refresh token repo must not be nil")
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		keys:        cfg.Keys,
		accessTTL:   cfg.AccessTTL,
		refreshTTL:  cfg.RefreshTTL,
		refreshRepo: refreshRepo,
	}, nil
}

func (m *TokenManager) AccessTTL() time.Duration {
	return m.accessTTL
}

func (m *TokenManager) GeneratePair(ctx context.Context, user models.User, meta SessionMeta) (models.TokenPair, error) {
	var pair models.TokenPair
	now := time.Now().Truncate(time.Second)
	accessExpiresAt := now.Add(m.accessTTL)
	refreshExpiresAt := now.Add(m.refreshTTL)

	accessToken := jwt.NewWithClaims(
		jwt.SigningMethodRS256,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   user.ID.String(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(accessExpiresAt),
			},
			Email: user.Email,
			Role:  user.Role.String(),
		},
	)
	accessToken.Header["kid"] = m.keys.KeyID()

	access, err := accessToken.SignedString(m.keys.Signer())
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	// Opaque random refresh token
	b := make([]byte, refreshTokenBytes)
	_, err = rand.Read(b)
	if err != nil {
		return pair, fmt.Errorf("error while generating refresh token. Err: %w", err)
	}
	refresh := hex.EncodeToString(b)

	err = m.refreshRepo.Save(ctx, models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     refresh,
		CreatedAt: now,
		ExpiresAt: refreshExpiresAt,
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
	})
	if err != nil {
		return pair, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return models.TokenPair{
		Access:  models.IssuedToken{Value: access, ExpiresAt: accessExpiresAt},
		Refresh: models.IssuedToken{Value: refresh, ExpiresAt: refreshExpiresAt},
	}, nil
}

// UseRefresh spends the refresh token: validates it and marks it used so it
// can never rotate again. Of concurrent calls with the same token exactly one
// succeeds, the repo's conditional update is the arbiter.
func (m *TokenManager) UseRefresh(ctx context.Context, refresh string) (models.RefreshToken, error) {
	token, err := m.refreshRepo.Get(ctx, refresh)
	if err != nil {
		return token, fmt.Errorf("error while loading refresh token. Err: %w", err)
	}

	if token.RevokedAt != nil {
		return token, fmt.Errorf("error while using refresh token. Err: %w", apperrors.ErrRefreshTokenRevoked)
	}
	if token.ExpiresAt.Before(time.Now()) {
		return token, fmt.Errorf("error while using refresh token. Err: %w", apperrors.ErrRefreshTokenExpired)
	}

	usedAt, err := m.refreshRepo.MarkUsed(ctx, refresh)
	if err != nil {
		return token, fmt.Errorf("error while marking token used. Err: %w", err)
	}
	token.UsedAt = &usedAt

	return token, nil
}

// Revoke the refresh token on logout. Idempotent
func (m *TokenManager) Revoke(ctx context.Context, refresh string) error {
	return m.refreshRepo.Revoke(ctx, refresh)
}

// ParseAccess parses and verifies an access token against the manager's own
// public key. Used by the issuer's /auth/me endpoint; the gateway carries its
// own verifier with key discovery.
func (m *TokenManager) ParseAccess(access string) (Identity, error) {
	claims := &AccessTokenClaims{}

	_, err := jwt.ParseWithClaims(
		access,
		claims,
		func(t *jwt.Token) (any, error) { return &m.keys.Signer().PublicKey, nil },
		jwt.WithValidMethods([]string{keys.SigningAlgorithm}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	}

	return IdentityFromClaims(claims)
}

// IdentityFromClaims converts a verified claim set into an Identity,
// rejecting malformed subjects and unknown roles. The gateway verifier uses
// it after checking the signature itself.
func IdentityFromClaims(claims *AccessTokenClaims) (Identity, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad subject: %w", apperrors.ErrTokenInvalid, err)
	}

	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	}

	return Identity{UserID: userID, Email: claims.Email, Role: role}, nil
}
