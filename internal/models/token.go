package models

import (
	"time"

	"github.com/google/uuid"
)

type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time // nil until the token is spent on rotation
	RevokedAt *time.Time // nil until logout
	ClientIP  string
	UserAgent string
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenPair is what the issuer hands out on register, login, refresh and
// completed oauth registration.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
