// Package services contains server-side business logic. This file implements
// AuthService, which drives the OIDC login flow and issues/refreshes JWTs
// plus server-stored sessions keyed by hashed refresh tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akarpov91/vaultd/internal/common"
	"github.com/akarpov91/vaultd/internal/cryptox"
	"github.com/akarpov91/vaultd/internal/server/auth"
	"github.com/akarpov91/vaultd/internal/server/config"
	"github.com/akarpov91/vaultd/internal/server/models"
	"github.com/akarpov91/vaultd/internal/server/oidc"
	"github.com/akarpov91/vaultd/internal/server/repositories/repomanager"
	"github.com/akarpov91/vaultd/internal/server/statestore"
)

// TokenPair bundles a short-lived access token and a long-lived refresh
// token. ExpiresIn is the access token's remaining lifetime in seconds.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// LoginResult is the outcome of a completed login: the minted credentials,
// the caller's public profile, and where to send the browser afterwards.
type LoginResult struct {
	TokenPair
	Profile    models.PublicProfile
	RedirectTo string
}

// AuthService provides authentication-related operations:
//   - InitiateLogin / HandleCallback: the OIDC authorization code flow
//   - Refresh: mint new access tokens against a stored session
//   - Logout / LogoutAll: revoke sessions
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	provider                     oidc.Provider
	states                       statestore.Store[models.OAuthState]
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	oauthStateTTL                time.Duration
}

// NewAuthService constructs an AuthService using repositories and server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, provider oidc.Provider,
	states statestore.Store[models.OAuthState], cfg *config.Config) *AuthService {
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		provider:                     provider,
		states:                       states,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		oauthStateTTL:                cfg.OAuthStateTTL,
	}
}

// InitiateLogin starts the authorization code flow: it generates the state,
// nonce, and PKCE verifier, stores them under the state key, and returns the
// URL to redirect the browser to.
func (s *AuthService) InitiateLogin(ctx context.Context, redirectTo string) (string, error) {
	state, err := cryptox.GenerateRandomToken(32)
	if err != nil {
		return "", common.ErrInternal
	}
	nonce, err := cryptox.GenerateRandomToken(16)
	if err != nil {
		return "", common.ErrInternal
	}
	verifier, _ := cryptox.GeneratePKCEPair()

	entry := models.OAuthState{
		Verifier:   verifier,
		Nonce:      nonce,
		RedirectTo: redirectTo,
	}
	if err := s.states.Put(ctx, state, entry, s.oauthStateTTL); err != nil {
		return "", fmt.Errorf("storing login state: %w", err)
	}

	return s.provider.AuthCodeURL(ctx, state, nonce, verifier)
}

// HandleCallback completes the flow: it consumes the state (single use),
// exchanges the code upstream, finds or provisions the identity, and mints a
// token pair.
func (s *AuthService) HandleCallback(ctx context.Context, state, code string) (*LoginResult, error) {
	entry, ok, err := s.states.TakeOnce(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("reading login state: %w", err)
	}
	if !ok {
		return nil, common.ErrInvalidState
	}

	claims, err := s.provider.Exchange(ctx, code, entry.Verifier, entry.Nonce)
	if err != nil {
		return nil, err
	}

	identity, err := s.findOrCreateIdentity(ctx, claims)
	if err != nil {
		return nil, err
	}

	pair, err := s.generateTokenPair(ctx, identity)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		TokenPair:  *pair,
		Profile:    identity.Profile(),
		RedirectTo: entry.RedirectTo,
	}, nil
}

// findOrCreateIdentity resolves the OIDC subject to a local identity,
// provisioning one with a fresh salt on first login and keeping the profile
// fields in sync on subsequent ones.
func (s *AuthService) findOrCreateIdentity(ctx context.Context, claims *oidc.Claims) (*models.Identity, error) {
	repo := s.repomanager.Identities(s.db)

	identity, err := repo.GetBySubject(ctx, claims.Subject)
	if err == nil {
		if identity.Name != claims.Name || identity.AvatarURL != claims.Picture {
			if err := repo.UpdateProfile(ctx, identity.ID, claims.Name, claims.Picture); err != nil {
				return nil, fmt.Errorf("updating profile: %w", err)
			}
			identity.Name = claims.Name
			identity.AvatarURL = claims.Picture
		}
		return identity, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrInternal
	}

	identity = &models.Identity{
		Subject:   claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		AvatarURL: claims.Picture,
		Salt:      common.GenerateRandByteArray(cryptox.SaltSize),
	}
	created, err := repo.Create(ctx, identity)
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			// Lost a provisioning race; the row exists now.
			return repo.GetBySubject(ctx, claims.Subject)
		}
		return nil, fmt.Errorf("creating identity: %w", err)
	}
	return created, nil
}

// Refresh validates a refresh token against its stored session and mints a
// new access token. The refresh token itself is not rotated; it stays valid
// until its session expires or is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	hash := cryptox.HashToken(refreshToken)

	session, err := s.repomanager.Sessions(s.db).GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrRefreshTokenExpired
		}
		return nil, common.ErrInternal
	}

	identity, err := s.repomanager.Identities(s.db).GetByID(ctx, session.IdentityID)
	if err != nil {
		return nil, common.ErrInternal
	}

	accessToken, err := auth.GenerateToken(identity.ID, identity.Email, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrInternal
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTokenValidityDuration.Seconds()),
	}, nil
}

// Logout revokes the session for the given refresh token. Unknown tokens are
// a no-op.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.repomanager.Sessions(s.db).Delete(ctx, cryptox.HashToken(refreshToken))
}

// LogoutAll revokes every session the identity owns.
func (s *AuthService) LogoutAll(ctx context.Context, identityID string) error {
	return s.repomanager.Sessions(s.db).DeleteAllForIdentity(ctx, identityID)
}

// CurrentUser returns the identity for the authenticated subject.
func (s *AuthService) CurrentUser(ctx context.Context, identityID string) (*models.Identity, error) {
	identity, err := s.repomanager.Identities(s.db).GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, common.ErrInternal
	}
	return identity, nil
}

// DeleteAccount removes the identity and, through the schema's cascades,
// every record, tag, and session it owns. There is no undo.
func (s *AuthService) DeleteAccount(ctx context.Context, identityID string) error {
	if err := s.repomanager.Sessions(s.db).DeleteAllForIdentity(ctx, identityID); err != nil {
		return err
	}
	return s.repomanager.Identities(s.db).Delete(ctx, identityID)
}

// UpdatePreferences replaces the identity's preference document.
func (s *AuthService) UpdatePreferences(ctx context.Context, identityID string, prefs map[string]any) error {
	return s.repomanager.Identities(s.db).UpdatePreferences(ctx, identityID, prefs)
}

// SweepSessions drops expired sessions and stale login states. Meant to be
// called periodically.
func (s *AuthService) SweepSessions(ctx context.Context) (int, error) {
	if _, err := s.states.SweepExpired(ctx); err != nil {
		return 0, err
	}
	return s.repomanager.Sessions(s.db).SweepExpired(ctx)
}

func (s *AuthService) generateTokenPair(ctx context.Context, identity *models.Identity) (*TokenPair, error) {
	accessToken, err := auth.GenerateToken(identity.ID, identity.Email, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrInternal
	}

	refreshToken, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, common.ErrInternal
	}

	session := &models.Session{
		TokenHash:  cryptox.HashToken(refreshToken),
		IdentityID: identity.ID,
		ExpiresAt:  time.Now().Add(s.refreshTokenValidityDuration),
	}
	if err := s.repomanager.Sessions(s.db).Create(ctx, session); err != nil {
		return nil, common.ErrInternal
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTokenValidityDuration.Seconds()),
	}, nil
}
