package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/239fd/wmsProjectBackend-sub001/internal/models"
)

type CreateUserParams struct {
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	MiddleName     string
	Role           models.Role
	OrganizationID *uuid.UUID
	WarehouseID    *uuid.UUID
}

// User repository interface
type UserRepo interface {
	// Create user
	// If a user with the same email exists has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	// Save token
	Save(ctx context.Context, token models.RefreshToken) error

	// Return the token whatever state it is in (expired, used, revoked)
	Get(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Spend the token on rotation. Must be atomic: the first caller wins,
	// every later caller must get apperrors.ErrRefreshTokenIsUsed.
	// Must not overwrite an existing used_at.
	// If the token does not exist must return apperrors.ErrRefreshTokenNotFound.
	MarkUsed(ctx context.Context, tokenString string) (usedAt time.Time, err error)

	// Revoke the token on logout. Idempotent: revoking an absent or already
	// revoked token is not an error.
	Revoke(ctx context.Context, tokenString string) error
}

type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
}
