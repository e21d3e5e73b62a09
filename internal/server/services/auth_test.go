package services

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/akarpov91/vaultd/internal/common"
	"github.com/akarpov91/vaultd/internal/cryptox"
	"github.com/akarpov91/vaultd/internal/server/config"
	"github.com/akarpov91/vaultd/internal/server/models"
	"github.com/akarpov91/vaultd/internal/server/oidc"
	"github.com/akarpov91/vaultd/internal/server/repositories/repomanager"
	"github.com/akarpov91/vaultd/internal/server/statestore"
)

// fakeProvider satisfies oidc.Provider without talking to anything.
type fakeProvider struct {
	claims      *oidc.Claims
	exchangeErr error

	gotVerifier string
	gotNonce    string
	gotCode     string
}

func (f *fakeProvider) AuthCodeURL(_ context.Context, state, nonce, _ string) (string, error) {
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state) +
		"&nonce=" + url.QueryEscape(nonce), nil
}

func (f *fakeProvider) Exchange(_ context.Context, code, verifier, nonce string) (*oidc.Claims, error) {
	f.gotCode = code
	f.gotVerifier = verifier
	f.gotNonce = nonce
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.claims, nil
}

func newAuthService(t *testing.T, provider oidc.Provider) (*AuthService, repomanager.RepositoryManager) {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()

	m := repomanager.NewMemoryRepositoryManager()
	states := statestore.NewMemory[models.OAuthState]()
	return NewAuthService(nil, m, provider, states, cfg), m
}

func defaultClaims() *oidc.Claims {
	return &oidc.Claims{
		Subject: "google|user-123",
		Email:   "alice@example.com",
		Name:    "Alice",
		Picture: "https://example.com/alice.png",
	}
}

// stateFrom extracts the state parameter from the authorization URL.
func stateFrom(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse auth URL: %v", err)
	}
	state := u.Query().Get("state")
	if state == "" {
		t.Fatalf("no state in auth URL %q", rawURL)
	}
	return state
}

func TestLoginFlow_ProvisionsIdentityAndMintsTokens(t *testing.T) {
	provider := &fakeProvider{claims: defaultClaims()}
	svc, m := newAuthService(t, provider)
	ctx := context.Background()

	authURL, err := svc.InitiateLogin(ctx, "/dashboard")
	if err != nil {
		t.Fatalf("InitiateLogin error: %v", err)
	}
	state := stateFrom(t, authURL)

	result, err := svc.HandleCallback(ctx, state, "auth-code")
	if err != nil {
		t.Fatalf("HandleCallback error: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatalf("incomplete token pair: %+v", result)
	}
	if result.ExpiresIn <= 0 {
		t.Fatalf("want positive expires_in, got %d", result.ExpiresIn)
	}
	if result.RedirectTo != "/dashboard" {
		t.Fatalf("want redirect /dashboard, got %q", result.RedirectTo)
	}
	if result.Profile.Email != "alice@example.com" {
		t.Fatalf("unexpected profile: %+v", result.Profile)
	}
	if provider.gotCode != "auth-code" || provider.gotVerifier == "" || provider.gotNonce == "" {
		t.Fatalf("exchange not wired through state: %+v", provider)
	}

	identity, err := m.Identities(nil).GetBySubject(ctx, "google|user-123")
	if err != nil {
		t.Fatalf("identity not provisioned: %v", err)
	}
	if identity.Email != "alice@example.com" || identity.Name != "Alice" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if len(identity.Salt) != cryptox.SaltSize {
		t.Fatalf("want %d byte salt, got %d", cryptox.SaltSize, len(identity.Salt))
	}

	session, err := m.Sessions(nil).GetByHash(ctx, cryptox.HashToken(result.RefreshToken))
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if session.IdentityID != identity.ID {
		t.Fatalf("session bound to wrong identity: %+v", session)
	}
}

func TestHandleCallback_UnknownState(t *testing.T) {
	svc, _ := newAuthService(t, &fakeProvider{claims: defaultClaims()})

	_, err := svc.HandleCallback(context.Background(), "never-issued", "auth-code")
	if !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("want common.ErrInvalidState, got %v", err)
	}
}

func TestHandleCallback_StateIsSingleUse(t *testing.T) {
	svc, _ := newAuthService(t, &fakeProvider{claims: defaultClaims()})
	ctx := context.Background()

	authURL, err := svc.InitiateLogin(ctx, "")
	if err != nil {
		t.Fatalf("InitiateLogin error: %v", err)
	}
	state := stateFrom(t, authURL)

	if _, err := svc.HandleCallback(ctx, state, "auth-code"); err != nil {
		t.Fatalf("first callback error: %v", err)
	}
	if _, err := svc.HandleCallback(ctx, state, "auth-code"); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("replayed state should fail, got %v", err)
	}
}

func TestHandleCallback_ExchangeFailurePropagates(t *testing.T) {
	svc, _ := newAuthService(t, &fakeProvider{exchangeErr: common.ErrTokenExchange})
	ctx := context.Background()

	authURL, err := svc.InitiateLogin(ctx, "")
	if err != nil {
		t.Fatalf("InitiateLogin error: %v", err)
	}

	_, err = svc.HandleCallback(ctx, stateFrom(t, authURL), "bad-code")
	if !errors.Is(err, common.ErrTokenExchange) {
		t.Fatalf("want common.ErrTokenExchange, got %v", err)
	}
}

func TestSecondLogin_ReusesIdentityAndSyncsProfile(t *testing.T) {
	provider := &fakeProvider{claims: defaultClaims()}
	svc, m := newAuthService(t, provider)
	ctx := context.Background()

	authURL, _ := svc.InitiateLogin(ctx, "")
	if _, err := svc.HandleCallback(ctx, stateFrom(t, authURL), "code-1"); err != nil {
		t.Fatalf("first login error: %v", err)
	}
	first, err := m.Identities(nil).GetBySubject(ctx, "google|user-123")
	if err != nil {
		t.Fatalf("GetBySubject error: %v", err)
	}

	provider.claims = &oidc.Claims{
		Subject: "google|user-123",
		Email:   "alice@example.com",
		Name:    "Alice Cooper",
		Picture: "https://example.com/new.png",
	}

	authURL, _ = svc.InitiateLogin(ctx, "")
	if _, err := svc.HandleCallback(ctx, stateFrom(t, authURL), "code-2"); err != nil {
		t.Fatalf("second login error: %v", err)
	}

	second, err := m.Identities(nil).GetBySubject(ctx, "google|user-123")
	if err != nil {
		t.Fatalf("GetBySubject error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("second login created a new identity")
	}
	if second.Name != "Alice Cooper" || second.AvatarURL != "https://example.com/new.png" {
		t.Fatalf("profile not synced: %+v", second)
	}
}

func TestRefresh_MintsAccessTokenWithoutRotating(t *testing.T) {
	svc, _ := newAuthService(t, &fakeProvider{claims: defaultClaims()})
	ctx := context.Background()

	authURL, _ := svc.InitiateLogin(ctx, "")
	pair, err := svc.HandleCallback(ctx, stateFrom(t, authURL), "auth-code")
	if err != nil {
		t.Fatalf("HandleCallback error: %v", err)
	}

	refreshed, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if refreshed.AccessToken == "" {
		t.Fatal("no access token")
	}
	if refreshed.RefreshToken != pair.RefreshToken {
		t.Fatal("refresh token should not rotate")
	}
}

func TestRefresh_UnknownToken(t *testing.T) {
	svc, _ := newAuthService(t, &fakeProvider{claims: defaultClaims()})

	_, err := svc.Refresh(context.Background(), "never-issued-token")
	if !errors.Is(err, common.ErrRefreshTokenExpired) {
		t.Fatalf("want common.ErrRefreshTokenExpired, got %v", err)
	}
}

func TestLogout_RevokesSession(t *testing.T) {
	svc, _ := newAuthService(t, &fakeProvider{claims: defaultClaims()})
	ctx := context.Background()

	authURL, _ := svc.InitiateLogin(ctx, "")
	pair, err := svc.HandleCallback(ctx, stateFrom(t, authURL), "auth-code")
	if err != nil {
		t.Fatalf("HandleCallback error: %v", err)
	}

	if err := svc.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, common.ErrRefreshTokenExpired) {
		t.Fatalf("revoked token should not refresh, got %v", err)
	}

	// Logging out twice is fine.
	if err := svc.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("second Logout error: %v", err)
	}
}

func TestLogoutAll_RevokesEverySession(t *testing.T) {
	svc, m := newAuthService(t, &fakeProvider{claims: defaultClaims()})
	ctx := context.Background()

	var pairs []*LoginResult
	for i := 0; i < 2; i++ {
		authURL, _ := svc.InitiateLogin(ctx, "")
		pair, err := svc.HandleCallback(ctx, stateFrom(t, authURL), "auth-code")
		if err != nil {
			t.Fatalf("HandleCallback error: %v", err)
		}
		pairs = append(pairs, pair)
	}

	identity, err := m.Identities(nil).GetBySubject(ctx, "google|user-123")
	if err != nil {
		t.Fatalf("GetBySubject error: %v", err)
	}

	if err := svc.LogoutAll(ctx, identity.ID); err != nil {
		t.Fatalf("LogoutAll error: %v", err)
	}

	for _, pair := range pairs {
		if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, common.ErrRefreshTokenExpired) {
			t.Fatalf("session survived LogoutAll: %v", err)
		}
	}
}

func TestCurrentUser_UnknownIdentity(t *testing.T) {
	svc, _ := newAuthService(t, &fakeProvider{claims: defaultClaims()})

	_, err := svc.CurrentUser(context.Background(), "ghost")
	if !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("want common.ErrUnauthorized, got %v", err)
	}
}

func TestDeleteAccount_RemovesIdentityAndSessions(t *testing.T) {
	svc, m := newAuthService(t, &fakeProvider{claims: defaultClaims()})
	ctx := context.Background()

	authURL, _ := svc.InitiateLogin(ctx, "")
	result, err := svc.HandleCallback(ctx, stateFrom(t, authURL), "auth-code")
	if err != nil {
		t.Fatalf("HandleCallback error: %v", err)
	}

	identity, err := m.Identities(nil).GetBySubject(ctx, "google|user-123")
	if err != nil {
		t.Fatalf("GetBySubject error: %v", err)
	}

	if err := svc.DeleteAccount(ctx, identity.ID); err != nil {
		t.Fatalf("DeleteAccount error: %v", err)
	}

	if _, err := svc.Refresh(ctx, result.RefreshToken); !errors.Is(err, common.ErrRefreshTokenExpired) {
		t.Fatalf("refresh after deletion should fail, got %v", err)
	}
	if _, err := svc.CurrentUser(ctx, identity.ID); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("deleted identity should be unauthorized, got %v", err)
	}
}
