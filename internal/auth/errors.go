package auth

import "errors"

// Sentinel errors returned by the service. The HTTP layer maps each of
// them to a status and a machine-readable code so clients can
// distinguish "log in again" from "all your sessions were just revoked".
var (
	// ErrNoRefreshToken reports a refresh or logout call without a token.
	ErrNoRefreshToken = errors.New("no refresh token provided")

	// ErrInvalidOrExpiredToken covers malformed, tampered and expired
	// tokens as well as refresh tokens that no longer match the family
	// head. Deliberately coarse so callers cannot probe which check failed.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrUserNotFound reports a valid token whose subject no longer
	// resolves to an active account.
	ErrUserNotFound = errors.New("user not found")

	// ErrRefreshTokenInvalidated reports a token minted before the
	// account's token version was bumped. The session is gone on purpose.
	ErrRefreshTokenInvalidated = errors.New("refresh token invalidated")

	// ErrTokenFamilyBreach reports reuse of an already-consumed refresh
	// token. The whole family has been revoked.
	ErrTokenFamilyBreach = errors.New("token family breach detected")

	// ErrInvalidCredentials reports a failed email/password check.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked reports too many failed logins inside the window.
	ErrAccountLocked = errors.New("account temporarily locked")

	// ErrEmailTaken reports a registration against an existing email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrWeakPassword reports a registration password below the minimum
	// length.
	ErrWeakPassword = errors.New("password does not meet requirements")
)
