package models

import (
	"time"
)

// ProviderIdentity is what an external oauth provider tells us about the
// person who just authorized.
type ProviderIdentity struct {
	Provider string
	Subject  string
	Email    string
	FullName string
}

// TempRegistration bridges a successful provider login to a local account
// that does not exist yet. Single use: consumed by complete-registration.
type TempRegistration struct {
	Token     string
	Identity  ProviderIdentity
	CreatedAt time.Time
	ExpiresAt time.Time
}

// OAuthState is the anti-forgery state passed through the provider redirect.
// Mode distinguishes a login attempt from an explicit registration.
type OAuthState struct {
	State     string
	Provider  string
	Mode      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

const (
	OAuthModeLogin    = "login"
	OAuthModeRegister = "register"
)
