// Package oauth is the bridge between external identity providers and local
// sessions. A callback either logs an already known user straight in or
// parks the provider identity behind a single-use temporary token until the
// user picks a role and completes registration.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/239fd/wmsProjectBackend-sub001/internal/apperrors"
	"github.com/239fd/wmsProjectBackend-sub001/internal/models"
	"github.com/239fd/wmsProjectBackend-sub001/internal/repository"
	"github.com/239fd/wmsProjectBackend-sub001/internal/service/auth"
	"github.com/239fd/wmsProjectBackend-sub001/internal/service/auth/tokenmanager"
)

const (
	defaultStateTTL = 10 * time.Minute
	defaultTempTTL  = 10 * time.Minute
)

type Config struct {
	// TTLs for the state and the temporary registration token
	// Defaults are used if not set
	StateTTL time.Duration
	TempTTL  time.Duration

	// Hasher for the random password stub of oauth-created accounts
	Hasher auth.PasswordHasher
}

// CallbackResult is the fork after a provider callback: either a full
// session or a temporary token awaiting role selection. Exactly one of the
// two is set.
type CallbackResult struct {
	Pair      *models.TokenPair
	TempToken string
}

type CompleteRegistrationParams struct {
	TempToken      string
	Role           models.Role
	OrganizationID *uuid.UUID
	WarehouseID    *uuid.UUID
}

type Service struct {
	providers map[string]Provider
	states    StateStore
	regs      TempRegistrationStore
	userRepo  repository.UserRepo
	token     *tokenmanager.TokenManager
	hasher    auth.PasswordHasher

	stateTTL time.Duration
	tempTTL  time.Duration
}

func NewService(
	cfg Config,
	providers []Provider,
	states StateStore,
	regs TempRegistrationStore,
	token *tokenmanager.TokenManager,
	userRepo repository.UserRepo,
) (*Service, error) {
	if token == nil || userRepo == nil {
		return nil, errors.New("token manager and user repo must not be nil")
	}
	if states == nil || regs == nil {
		return nil, errors.New("state and registration stores must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = auth.DefaultHasher
	}
	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.StateTTL, defaultStateTTL)
	setDefaultDuration(&cfg.TempTTL, defaultTempTTL)

	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}

	return &Service{
		providers: byName,
		states:    states,
		regs:      regs,
		userRepo:  userRepo,
		token:     token,
		hasher:    hasher,
		stateTTL:  cfg.StateTTL,
		tempTTL:   cfg.TempTTL,
	}, nil
}

// AuthorizeURL starts the flow: returns the provider redirect target with a
// stored single-use state value.
func (s *Service) AuthorizeURL(provider string, mode string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", fmt.Errorf("%w: %q", apperrors.ErrProviderUnknown, provider)
	}
	if mode != models.OAuthModeLogin && mode != models.OAuthModeRegister {
		return "", fmt.Errorf("unknown oauth mode: %q", mode)
	}

	now := time.Now()
	state := models.OAuthState{
		State:     uuid.NewString(),
		Provider:  provider,
		Mode:      mode,
		CreatedAt: now,
		ExpiresAt: now.Add(s.stateTTL),
	}
	s.states.Save(state)

	return p.AuthCodeURL(state.State), nil
}

// HandleCallback exchanges the code, resolves the provider identity and
// forks: an account already linked to that identity gets a session, an
// unknown identity gets a temporary registration token.
func (s *Service) HandleCallback(ctx context.Context, provider string, code string, state string, meta tokenmanager.SessionMeta) (CallbackResult, error) {
	var result CallbackResult

	st, err := s.states.Consume(state)
	if err != nil {
		return result, err
	}
	if st.Provider != provider {
		return result, fmt.Errorf("%w: state was issued for %q", apperrors.ErrOAuthStateInvalid, st.Provider)
	}

	p, ok := s.providers[provider]
	if !ok {
		return result, fmt.Errorf("%w: %q", apperrors.ErrProviderUnknown, provider)
	}

	identity, err := p.Identity(ctx, code)
	if err != nil {
		return result, err
	}

	user, err := s.userRepo.GetUserByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		pair, err := s.token.GeneratePair(ctx, user, meta)
		if err != nil {
			return result, fmt.Errorf("token could not be generated. Err: %w", err)
		}
		result.Pair = &pair
		return result, nil

	case errors.Is(err, apperrors.ErrUserNotFound):
		now := time.Now()
		reg := models.TempRegistration{
			Token:     uuid.NewString(),
			Identity:  identity,
			CreatedAt: now,
			ExpiresAt: now.Add(s.tempTTL),
		}
		s.regs.Save(reg)
		result.TempToken = reg.Token
		return result, nil

	default:
		return result, err
	}
}

// CompleteRegistration consumes the temporary token exactly once, creates
// the account with the chosen role and issues a full session.
func (s *Service) CompleteRegistration(ctx context.Context, params CompleteRegistrationParams, meta tokenmanager.SessionMeta) (models.TokenPair, error) {
	var pair models.TokenPair

	reg, err := s.regs.Consume(params.TempToken)
	if err != nil {
		return pair, err
	}

	// OAuth accounts get a random password stub; they authenticate through
	// the provider, never with a password
	stub, err := s.hasher.Hash(uuid.NewString())
	if err != nil {
		return pair, fmt.Errorf("error while preparing password stub. Err: %w", err)
	}

	firstName, lastName := splitFullName(reg.Identity.FullName)

	user, err := s.userRepo.CreateUser(ctx, repository.CreateUserParams{
		Email:          reg.Identity.Email,
		PasswordHash:   stub,
		FirstName:      firstName,
		LastName:       lastName,
		Role:           params.Role,
		OrganizationID: params.OrganizationID,
		WarehouseID:    params.WarehouseID,
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

func splitFullName(full string) (first string, last string) {
	first = full
	for i := len(full) - 1; i >= 0; i-- {
		if full[i] == ' ' {
			return full[:i], full[i+1:]
		}
	}
	return first, ""
}
