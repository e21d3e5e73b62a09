// Package identities is the identity directory: lookup and creation of
// user identities keyed by the external provider's subject id.
package identities

import (
	"context"

	"github.com/akarpov91/vaultd/internal/server/models"
)

type Repository interface {
	// Create inserts a new identity. The caller supplies the generated
	// salt; Subject and Email must be unique (common.ErrConflict).
	Create(ctx context.Context, identity *models.Identity) (*models.Identity, error)

	GetByID(ctx context.Context, id string) (*models.Identity, error)
	GetBySubject(ctx context.Context, subject string) (*models.Identity, error)
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)

	// UpdateProfile refreshes the mutable profile fields (name, avatar)
	// from the provider's latest claims.
	UpdateProfile(ctx context.Context, id, name, avatarURL string) error

	UpdatePreferences(ctx context.Context, id string, prefs map[string]any) error

	// Delete removes the identity. Owned records, tags, and sessions go
	// with it (explicit account deletion is the only path here).
	Delete(ctx context.Context, id string) error
}
