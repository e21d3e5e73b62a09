package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/akarpov91/vaultd/internal/common"
	"github.com/akarpov91/vaultd/internal/server/models"
	"github.com/akarpov91/vaultd/internal/server/repositories/repomanager"
)

// TagService manages the identity's tag vocabulary. Tag names are plaintext;
// only record contents are encrypted.
type TagService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewTagService(db *sql.DB, repomanager repomanager.RepositoryManager) *TagService {
	return &TagService{
		db:          db,
		repomanager: repomanager,
	}
}

// List returns the identity's tags sorted by name.
func (s *TagService) List(ctx context.Context, identityID string) ([]*models.Tag, error) {
	return s.repomanager.Tags(s.db).ListForIdentity(ctx, identityID)
}

// Create adds a tag; duplicates yield common.ErrConflict.
func (s *TagService) Create(ctx context.Context, identityID, name, color string) (*models.Tag, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: tag name is required", common.ErrValidation)
	}
	return s.repomanager.Tags(s.db).Create(ctx, &models.Tag{
		IdentityID: identityID,
		Name:       name,
		Color:      color,
	})
}

// Get returns one tag. An id owned by someone else reads as not found.
func (s *TagService) Get(ctx context.Context, identityID, id string) (*models.Tag, error) {
	tag, err := s.repomanager.Tags(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tag.IdentityID != identityID {
		return nil, common.ErrNotFound
	}
	return tag, nil
}

// Update renames or recolors the tag; the new name must stay unique.
func (s *TagService) Update(ctx context.Context, identityID, id, name, color string) (*models.Tag, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: tag name is required", common.ErrValidation)
	}
	return s.repomanager.Tags(s.db).Update(ctx, &models.Tag{
		ID:         id,
		IdentityID: identityID,
		Name:       name,
		Color:      color,
	})
}

// Delete removes the tag and detaches it from every record.
func (s *TagService) Delete(ctx context.Context, identityID, id string) error {
	return s.repomanager.Tags(s.db).Delete(ctx, identityID, id)
}
