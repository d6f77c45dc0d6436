package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/239fd/wmsProjectBackend-sub001/internal/apperrors"
	"github.com/239fd/wmsProjectBackend-sub001/internal/handlers/render"
	"github.com/239fd/wmsProjectBackend-sub001/internal/logger"
	"github.com/239fd/wmsProjectBackend-sub001/internal/models"
	"github.com/239fd/wmsProjectBackend-sub001/internal/service/auth/tokenmanager"
	"github.com/239fd/wmsProjectBackend-sub001/internal/service/oauth"
)

type oauthService interface {
	AuthorizeURL(provider string, mode string) (string, error)
	HandleCallback(ctx context.Context, provider string, code string, state string, meta tokenmanager.SessionMeta) (oauth.CallbackResult, error)
	CompleteRegistration(ctx context.Context, params oauth.CompleteRegistrationParams, meta tokenmanager.SessionMeta) (models.TokenPair, error)
}

type OAuthHandler struct {
	oauthService oauthService
	accessTTL    int64

	// Frontend base the browser is sent back to after a callback
	frontendURL string

	logger logger.Logger
}

func NewOAuth(os oauthService, accessTTL int64, frontendURL string, log logger.Logger) *OAuthHandler {
	return &OAuthHandler{
		oauthService: os,
		accessTTL:    accessTTL,
		frontendURL:  frontendURL,
		logger:       log,
	}
}

func (h *OAuthHandler) authorize(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = models.OAuthModeLogin
	}

	target, err := h.oauthService.AuthorizeURL(provider, mode)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrProviderUnknown):
			render.ServiceError(w, "Unknown provider", http.StatusNotFound)
		default:
			render.ServiceError(w, "Bad authorize request", http.StatusBadRequest)
		}
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// callback always answers with a redirect: the caller is a browser halfway
// through the provider dance, an error page beats a raw 5xx.
func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	result, err := h.oauthService.HandleCallback(r.Context(), provider, code, state, sessionMeta(r))
	if err != nil {
		h.logger.Warn("oauth callback failed", "provider", provider, "error", err.Error())
		http.Redirect(w, r, h.frontendURL+"/auth/error", http.StatusFound)
		return
	}

	if result.Pair != nil {
		q := url.Values{}
		q.Set("access", result.Pair.Access.Value)
		q.Set("refresh", result.Pair.Refresh.Value)
		http.Redirect(w, r, h.frontendURL+"/auth/callback?"+q.Encode(), http.StatusFound)
		return
	}

	q := url.Values{}
	q.Set("token", result.TempToken)
	http.Redirect(w, r, h.frontendURL+"/role?"+q.Encode(), http.StatusFound)
}

func (h *OAuthHandler) completeRegistration(w http.ResponseWriter, r *http.Request) {
	type CompleteRegistrationRequest struct {
		TemporaryToken string     `json:"temporaryToken" validate:"required"`
		Role           string     `json:"role" validate:"required,oneof=DIRECTOR ACCOUNTANT WORKER"`
		OrganizationID *uuid.UUID `json:"organizationId"`
		WarehouseID    *uuid.UUID `json:"warehouseId"`
	}

	data, err := render.BindAndValidate[CompleteRegistrationRequest](w, r)
	if err != nil {
		return
	}

	role, err := models.ParseRole(data.Role)
	if err != nil {
		render.ServiceError(w, "Unknown role", http.StatusBadRequest)
		return
	}

	pair, err := h.oauthService.CompleteRegistration(r.Context(), oauth.CompleteRegistrationParams{
		TempToken:      data.TemporaryToken,
		Role:           role,
		OrganizationID: data.OrganizationID,
		WarehouseID:    data.WarehouseID,
	}, sessionMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrTempTokenNotFound):
			// Expired, unknown and already consumed look identical
			render.ServiceError(w, "Invalid registration token", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, TokenPairResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		ExpiresIn:    h.accessTTL,
		TokenType:    "Bearer",
	})
}
