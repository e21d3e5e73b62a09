package models

import "time"

// Session tracks a logged-in client. The raw refresh token is never stored;
// TokenHash is its SHA-256 hex digest and serves as the lookup key.
type Session struct {
	TokenHash  string
	IdentityID string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the session's absolute expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// OAuthState is the transient record persisted between login initiation and
// the provider callback, keyed by the state token. It is consumed exactly
// once; a second read with the same state must fail.
type OAuthState struct {
	Verifier   string `json:"verifier"`
	Nonce      string `json:"nonce"`
	RedirectTo string `json:"redirect_to,omitempty"`
}
