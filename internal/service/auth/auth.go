package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/239fd/wmsProjectBackend-sub001/internal/apperrors"
	"github.com/239fd/wmsProjectBackend-sub001/internal/models"
	"github.com/239fd/wmsProjectBackend-sub001/internal/repository"
	"github.com/239fd/wmsProjectBackend-sub001/internal/service/auth/tokenmanager"
)

type Config struct {
	// Hasher used during registration and login
	// BcryptHasher is used if not set
	Hasher PasswordHasher
}

type RegisterParams struct {
	Email          string
	Password       string
	FirstName      string
	LastName       string
	MiddleName     string
	Role           models.Role
	OrganizationID *uuid.UUID
}

type AuthService struct {
	token    *tokenmanager.TokenManager
	hasher   PasswordHasher
	userRepo repository.UserRepo

	// Compared against when the email is unknown so a login attempt costs
	// the same time whether the account exists or not
	dummyHash string
}

func NewService(cfg Config, token *tokenmanager.TokenManager, userRepo repository.UserRepo) (*AuthService, error) {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	if token == nil || userRepo == nil {
		return nil, errors.New("token manager and user repo must not be nil")
	}

	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("error while preparing dummy hash. Err: %w", err)
	}

	return &AuthService{
		token:     token,
		hasher:    hasher,
		userRepo:  userRepo,
		dummyHash: dummyHash,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, params RegisterParams, meta tokenmanager.SessionMeta) (models.TokenPair, error) {
	var pair models.TokenPair

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return pair, fmt.Errorf("can't use this as password. Err: %w", err)
	}

	user, err := s.userRepo.CreateUser(ctx, repository.CreateUserParams{
		Email:          params.Email,
		PasswordHash:   hash,
		FirstName:      params.FirstName,
		LastName:       params.LastName,
		MiddleName:     params.MiddleName,
		Role:           params.Role,
		OrganizationID: params.OrganizationID,
	})
	if err != nil {
		return pair, err
	}

	pair, err = s.token.GeneratePair(ctx, user, meta)
	if err != nil {
		return pair, fmt.Errorf("token could not be generated. Err: %w", err)
	}

	return pair, nil
}

// Login checks credentials and issues a fresh pair.
// Required property: the error for an unknown email and the error for a wrong
// password are the same value, so callers cannot enumerate accounts.
func (s *AuthService) Login(ctx context.Context, email string, password string, meta tokenmanager.SessionMeta) (models.TokenPair, error) {
	var pair models.TokenPair

	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			// Burn the same bcrypt work as the found path
			_ = s.hasher.Compare(s.dummyHash, password)
			return pair, apperrors.ErrInvalidCredentials
		}
		return pair, err
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return pair, apperrors.ErrInvalidCredentials
	}

	pair, err = s.token.GeneratePair(ctx, user, meta)
	if err != nil {
		return pair, fmt.Errorf("token could not be generated. Err: %w", err)
	}

	return pair, nil
}

// Refresh rotates the pair: the presented refresh token is spent atomically
// and a new pair is issued. A replayed token loses the race and fails.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	token, err := s.token.UseRefresh(ctx, refresh)
	if err != nil {
		return pair, err
	}

	user, err := s.userRepo.GetUserByID(ctx, token.UserID)
	if err != nil {
		return pair, fmt.Errorf("error while loading token owner. Err: %w", err)
	}

	pair, err = s.token.GeneratePair(ctx, user, tokenmanager.SessionMeta{
		ClientIP:  token.ClientIP,
		UserAgent: token.UserAgent,
	})
	if err != nil {
		return pair, fmt.Errorf("token could not be generated. Err: %w", err)
	}

	return pair, nil
}

// Logout revokes the refresh token. Idempotent: logging out an absent or
// already revoked token succeeds.
func (s *AuthService) Logout(ctx context.Context, refresh string) error {
	return s.token.Revoke(ctx, refresh)
}

// GetUser is a read-only projection, no side effects
func (s *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.userRepo.GetUserByID(ctx, userID)
}

// ParseAccess verifies an access token against the issuer's own key
func (s *AuthService) ParseAccess(access string) (tokenmanager.Identity, error) {
	return s.token.ParseAccess(access)
}

// AccessTTL is surfaced so handlers can fill expiresIn
func (s *AuthService) AccessTTL() int64 {
	return int64(s.token.AccessTTL().Seconds())
}
