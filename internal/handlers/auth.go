package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/239fd/wmsProjectBackend-sub001/internal/apperrors"
	"github.com/239fd/wmsProjectBackend-sub001/internal/handlers/render"
	"github.com/239fd/wmsProjectBackend-sub001/internal/keys"
	"github.com/239fd/wmsProjectBackend-sub001/internal/models"
	"github.com/239fd/wmsProjectBackend-sub001/internal/service/auth"
	"github.com/239fd/wmsProjectBackend-sub001/internal/service/auth/tokenmanager"
)

type authService interface {
	// Register user and issue the first pair
	// Has to return apperrors.ErrUserAlreadyExists on a duplicate email
	Register(ctx context.Context, params auth.RegisterParams, meta tokenmanager.SessionMeta) (models.TokenPair, error)

	// Login with credentials
	// Has to return apperrors.ErrInvalidCredentials on any mismatch,
	// the same error whether the email exists or not
	Login(ctx context.Context, email string, password string, meta tokenmanager.SessionMeta) (models.TokenPair, error)

	// Rotate the pair using a refresh token
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Revoke the refresh token, idempotent
	Logout(ctx context.Context, refresh string) error

	// Read-only user projection
	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)

	// Verify an access token issued by this process
	ParseAccess(access string) (tokenmanager.Identity, error)

	// Access token lifetime in seconds, for expiresIn
	AccessTTL() int64
}

type keyInfoProvider interface {
	PublicKeyInfo() (keys.PublicKeyInfo, error)
}

type TokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

type UserResponse struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	MiddleName     string     `json:"middleName,omitempty"`
	Role           string     `json:"role"`
	OrganizationID *uuid.UUID `json:"organizationId,omitempty"`
	WarehouseID    *uuid.UUID `json:"warehouseId,omitempty"`
}

type AuthHandler struct {
	authService authService
	keyInfo     keyInfoProvider
}

func NewAuth(as authService, keyInfo keyInfoProvider) *AuthHandler {
	return &AuthHandler{authService: as, keyInfo: keyInfo}
}

func (h *AuthHandler) publicKey(w http.ResponseWriter, r *http.Request) {
	info, err := h.keyInfo.PublicKeyInfo()
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	type PublicKeyResponse struct {
		PublicKey string `json:"publicKey"`
		Algorithm string `json:"algorithm"`
		KeyID     string `json:"keyId"`
	}

	render.JSON(w, PublicKeyResponse{
		PublicKey: info.PublicKeyPEM,
		Algorithm: info.Algorithm,
		KeyID:     info.KeyID,
	})
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Email          string     `json:"email" validate:"required,email"`
		FirstName      string     `json:"firstName" validate:"required,max=100"`
		LastName       string     `json:"lastName" validate:"required,max=100"`
		MiddleName     string     `json:"middleName" validate:"max=100"`
		Password       string     `json:"password" validate:"required,min=8"`
		Role           string     `json:"role" validate:"required,oneof=DIRECTOR ACCOUNTANT WORKER"`
		OrganizationID *uuid.UUID `json:"organizationId"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	role, err := models.ParseRole(data.Role)
	if err != nil {
		render.ServiceError(w, "Unknown role", http.StatusBadRequest)
		return
	}

	pair, err := h.authService.Register(r.Context(), auth.RegisterParams{
		Email:          data.Email,
		Password:       data.Password,
		FirstName:      data.FirstName,
		LastName:       data.LastName,
		MiddleName:     data.MiddleName,
		Role:           role,
		OrganizationID: data.OrganizationID,
	}, sessionMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSONWithStatus(w, h.pairResponse(pair), http.StatusCreated)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	pair, err := h.authService.Login(r.Context(), data.Email, data.Password, sessionMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid email or password", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, h.pairResponse(pair))
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshRequest struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}

	data, err := render.BindAndValidate[RefreshRequest](w, r)
	if err != nil {
		return
	}

	pair, err := h.authService.Refresh(r.Context(), data.RefreshToken)
	if err != nil {
		// Expired, unknown, replayed and revoked all collapse into one answer
		render.ServiceError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	render.JSON(w, h.pairResponse(pair))
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	type LogoutRequest struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}
	type LogoutResponse struct {
		Message string `json:"message"`
	}

	data, err := render.BindAndValidate[LogoutRequest](w, r)
	if err != nil {
		return
	}

	if err := h.authService.Logout(r.Context(), data.RefreshToken); err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, LogoutResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	const scheme = "Bearer "

	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, scheme) {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	identity, err := h.authService.ParseAccess(strings.TrimPrefix(authz, scheme))
	if err != nil {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.authService.GetUser(r.Context(), identity.UserID)
	if err != nil {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	render.JSON(w, UserResponse{
		ID:             user.ID,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		MiddleName:     user.MiddleName,
		Role:           user.Role.String(),
		OrganizationID: user.OrganizationID,
		WarehouseID:    user.WarehouseID,
	})
}

func (h *AuthHandler) pairResponse(pair models.TokenPair) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		ExpiresIn:    h.authService.AccessTTL(),
		TokenType:    "Bearer",
	}
}

// sessionMeta extracts the client network identity recorded on refresh rows
func sessionMeta(r *http.Request) tokenmanager.SessionMeta {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return tokenmanager.SessionMeta{ClientIP: host, UserAgent: r.UserAgent()}
}
