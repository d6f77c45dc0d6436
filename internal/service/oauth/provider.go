package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/239fd/wmsProjectBackend-sub001/internal/models"
)

// Provider drives one external identity provider: building the authorization
// redirect and turning a callback code into a verified identity.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Identity(ctx context.Context, code string) (models.ProviderIdentity, error)
}

type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

const (
	ProviderGoogle = "google"
	ProviderGithub = "github"

	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	githubUserInfoURL = "https://api.github.com/user"
)

func NewGoogleProvider(cfg ProviderConfig) Provider {
	return &oauth2Provider{
		name:        ProviderGoogle,
		userInfoURL: googleUserInfoURL,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		},
		decode: decodeGoogleIdentity,
	}
}

func NewGithubProvider(cfg ProviderConfig) Provider {
	return &oauth2Provider{
		name:        ProviderGithub,
		userInfoURL: githubUserInfoURL,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoints.GitHub,
		},
		decode: decodeGithubIdentity,
	}
}

type oauth2Provider struct {
	name        string
	userInfoURL string
	config      *oauth2.Config
	decode      func(body []byte) (models.ProviderIdentity, error)
}

func (p *oauth2Provider) Name() string {
	return p.name
}

func (p *oauth2Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *oauth2Provider) Identity(ctx context.Context, code string) (models.ProviderIdentity, error) {
	var identity models.ProviderIdentity

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return identity, fmt.Errorf("error while exchanging authorization code. Err: %w", err)
	}

	resp, err := p.config.Client(ctx, token).Get(p.userInfoURL)
	if err != nil {
		return identity, fmt.Errorf("error while fetching provider identity. Err: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return identity, fmt.Errorf("provider identity endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return identity, fmt.Errorf("error while reading provider response. Err: %w", err)
	}

	identity, err = p.decode(body)
	if err != nil {
		return identity, err
	}
	identity.Provider = p.name

	return identity, nil
}

func decodeGoogleIdentity(body []byte) (models.ProviderIdentity, error) {
	var payload struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.ProviderIdentity{}, fmt.Errorf("error while decoding provider identity. Err: %w", err)
	}
	if payload.Sub == "" || payload.Email == "" {
		return models.ProviderIdentity{}, fmt.Errorf("provider identity is incomplete")
	}

	return models.ProviderIdentity{
		Subject:  payload.Sub,
		Email:    payload.Email,
		FullName: payload.Name,
	}, nil
}

func decodeGithubIdentity(body []byte) (models.ProviderIdentity, error) {
	var payload struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
		Login string `json:"login"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.ProviderIdentity{}, fmt.Errorf("error while decoding provider identity. Err: %w", err)
	}
	if payload.ID == 0 || payload.Email == "" {
		return models.ProviderIdentity{}, fmt.Errorf("provider identity is incomplete")
	}

	name := payload.Name
	if name == "" {
		name = payload.Login
	}

	return models.ProviderIdentity{
		Subject:  strconv.FormatInt(payload.ID, 10),
		Email:    payload.Email,
		FullName: name,
	}, nil
}
