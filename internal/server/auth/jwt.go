// Package auth issues and verifies the credentials of vaultd: short-lived
// HS256-signed access tokens and long-lived opaque refresh tokens. No other
// package inspects a credential's signature.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/akarpov91/vaultd/internal/common"
	"github.com/akarpov91/vaultd/internal/cryptox"
)

// RefreshTokenEntropyBytes is the random size of an opaque refresh token.
const RefreshTokenEntropyBytes = 32

// Claims carries the access-token payload: the owning identity, its email,
// and the registered iat/exp pair.
type Claims struct {
	jwt.RegisteredClaims
	IdentityID string `json:"identity_id"`
	Email      string `json:"email"`
}

// GenerateToken mints a signed access token for the identity.
func GenerateToken(identityID, email string, secret []byte, lifetime time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
		IdentityID: identityID,
		Email:      email,
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies signature and expiry and returns the claims.
//
// Error mapping: common.ErrTokenExpired for a lapsed exp claim,
// common.ErrMalformedToken when required claims are absent, and
// common.ErrInvalidToken for everything else including a bad signature.
func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	if claims.IdentityID == "" || claims.Email == "" ||
		claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, common.ErrMalformedToken
	}

	return claims, nil
}

// GenerateRefreshToken returns a new opaque refresh token. The token itself
// is handed to the client and never stored; sessions keep only its
// cryptox.HashToken digest.
func GenerateRefreshToken() (string, error) {
	return cryptox.GenerateRandomToken(RefreshTokenEntropyBytes)
}
