// Package common defines shared constants and sentinel errors used across
// the layers of vaultd. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// Login-flow errors (OIDC authorization code + PKCE).
	ErrInvalidState      = errors.New("invalid or expired state")
	ErrTokenExchange     = errors.New("token exchange failed")
	ErrIDTokenValidation = errors.New("id token validation failed")
	ErrMissingClaims     = errors.New("required claims missing from id token")
	ErrUpstreamTimeout   = errors.New("identity provider request timed out")

	// Credential errors (access and refresh tokens).
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrMalformedToken      = errors.New("malformed token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Cryptographic errors. ErrAuthentication means the AEAD tag did not
	// verify: either the key is wrong or the blob was tampered with. It is
	// fatal for the record and must not be retried.
	ErrKeyDerivation  = errors.New("key derivation failed")
	ErrEncryption     = errors.New("encryption failed")
	ErrAuthentication = errors.New("ciphertext authentication failed")

	// Generic/internal flow control.
	ErrValidation   = errors.New("validation failed")
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")
)
