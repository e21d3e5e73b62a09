// Package oidc talks to the upstream OpenID Connect provider: discovery,
// authorization URLs, and the code-for-token exchange with ID token
// validation.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/akarpov91/vaultd/internal/common"
)

// Claims is the subset of ID token claims the server needs.
type Claims struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// Provider abstracts the upstream IDP so tests can swap in a fake.
type Provider interface {
	// AuthCodeURL builds the authorization redirect with PKCE and nonce.
	AuthCodeURL(ctx context.Context, state, nonce, verifier string) (string, error)

	// Exchange swaps the authorization code for tokens, validates the ID
	// token, and returns its claims.
	Exchange(ctx context.Context, code, verifier, nonce string) (*Claims, error)
}

// Config identifies this server to the upstream provider.
type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

const upstreamTimeout = 10 * time.Second

// discoveryProvider is the production Provider. Discovery runs lazily on first
// use so the server can start while the IDP is unreachable.
type discoveryProvider struct {
	cfg Config

	mu       sync.Mutex
	provider *gooidc.Provider
	oauth    *oauth2.Config
	verifier *gooidc.IDTokenVerifier
}

func NewProvider(cfg Config) Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{gooidc.ScopeOpenID, "email", "profile"}
	}
	return &discoveryProvider{cfg: cfg}
}

// discover runs OIDC discovery once and caches the result.
func (p *discoveryProvider) discover(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.provider != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, upstreamTimeout)
	defer cancel()

	provider, err := gooidc.NewProvider(ctx, p.cfg.Issuer)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return common.ErrUpstreamTimeout
		}
		return fmt.Errorf("oidc discovery: %w", err)
	}

	endpoint := provider.Endpoint()
	// Send client credentials in the request body for consistent behavior
	// across IDP implementations.
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	p.provider = provider
	p.oauth = &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		RedirectURL:  p.cfg.RedirectURL,
		Scopes:       p.cfg.Scopes,
		Endpoint:     endpoint,
	}
	p.verifier = provider.Verifier(&gooidc.Config{ClientID: p.cfg.ClientID})

	return nil
}

func (p *discoveryProvider) AuthCodeURL(ctx context.Context, state, nonce, verifier string) (string, error) {
	if err := p.discover(ctx); err != nil {
		return "", err
	}

	return p.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
		gooidc.Nonce(nonce),
	), nil
}

func (p *discoveryProvider) Exchange(ctx context.Context, code, verifier, nonce string) (*Claims, error) {
	if err := p.discover(ctx); err != nil {
		return nil, err
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, upstreamTimeout)
	defer cancel()

	token, err := p.oauth.Exchange(exchangeCtx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, common.ErrUpstreamTimeout
		}
		return nil, fmt.Errorf("%w: %v", common.ErrTokenExchange, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: no id_token in token response", common.ErrIDTokenValidation)
	}

	return p.validateIDToken(ctx, rawIDToken, nonce)
}

func (p *discoveryProvider) validateIDToken(ctx context.Context, rawIDToken, nonce string) (*Claims, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, upstreamTimeout)
	defer cancel()

	idToken, err := p.verifier.Verify(verifyCtx, rawIDToken)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, common.ErrUpstreamTimeout
		}
		return nil, fmt.Errorf("%w: %v", common.ErrIDTokenValidation, err)
	}

	if nonce != "" && idToken.Nonce != nonce {
		return nil, fmt.Errorf("%w: nonce mismatch", common.ErrIDTokenValidation)
	}

	var raw struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrIDTokenValidation, err)
	}

	if idToken.Subject == "" || raw.Email == "" {
		return nil, common.ErrMissingClaims
	}

	return &Claims{
		Subject: idToken.Subject,
		Email:   raw.Email,
		Name:    raw.Name,
		Picture: raw.Picture,
	}, nil
}
