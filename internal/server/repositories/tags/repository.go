// Package tags persists per-identity record labels. Tag names are unique
// within an identity.
package tags

import (
	"context"

	"github.com/akarpov91/vaultd/internal/server/models"
)

type Repository interface {
	// Create inserts a tag; common.ErrConflict when the identity already
	// has a tag with the same name.
	Create(ctx context.Context, tag *models.Tag) (*models.Tag, error)

	GetByID(ctx context.Context, id string) (*models.Tag, error)
	GetByName(ctx context.Context, identityID, name string) (*models.Tag, error)

	// Update renames or recolors the tag; common.ErrConflict when the
	// identity already has another tag with the new name.
	Update(ctx context.Context, tag *models.Tag) (*models.Tag, error)

	// ListForIdentity returns all of the identity's tags sorted by name.
	ListForIdentity(ctx context.Context, identityID string) ([]*models.Tag, error)

	// Delete removes the tag and its record associations.
	Delete(ctx context.Context, identityID, id string) error
}
