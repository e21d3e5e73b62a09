// Package models holds the typed records shared by repositories and
// services on the server side.
package models

import "time"

// Identity is a user account created on the first successful OIDC callback.
//
// Subject is the identity provider's stable subject id; it and Email are
// unique. Salt is a 32-byte random value generated once at creation and
// never rotated: the master encryption key is derived from Subject, the
// application secret, and Salt, so changing Salt would orphan every
// encrypted record the identity owns.
type Identity struct {
	ID          string
	Subject     string
	Email       string
	Name        string
	AvatarURL   string
	Salt        []byte
	Preferences map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PublicProfile is the externally visible subset of an Identity.
type PublicProfile struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name,omitempty"`
	AvatarURL   string         `json:"avatar_url,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// Profile returns the public view of the identity.
func (i *Identity) Profile() PublicProfile {
	return PublicProfile{
		ID:          i.ID,
		Email:       i.Email,
		Name:        i.Name,
		AvatarURL:   i.AvatarURL,
		Preferences: i.Preferences,
	}
}
