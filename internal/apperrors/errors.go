package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// Returned on login whether the email is unknown or the password is wrong.
	// Callers must not be able to tell the two cases apart.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenIsUsed   = errors.New("refresh token is used")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")
	ErrRefreshTokenRevoked  = errors.New("refresh token is revoked")

	ErrTempTokenNotFound = errors.New("registration token not found or already consumed")
	ErrOAuthStateInvalid = errors.New("oauth state is unknown or expired")
	ErrProviderUnknown   = errors.New("oauth provider is not configured")

	ErrRoleUnknown = errors.New("unknown role")

	ErrTokenInvalid   = errors.New("token is invalid")
	ErrKeyUnavailable = errors.New("no verification key available")
)
