// Package records persists encrypted vault records. Content and metadata
// arrive already encrypted; this layer never sees plaintext or key bytes.
package records

import (
	"context"
	"time"

	"github.com/akarpov91/vaultd/internal/server/models"
)

// Filter narrows a listing. Zero values mean "no constraint". TagNames use
// OR semantics: a record matches if it carries any of the named tags.
// TitleSearch is a case-insensitive substring match on the plaintext title.
type Filter struct {
	Type        models.RecordType
	Source      models.RecordSource
	TagNames    []string
	TitleSearch string
}

// Page is offset/limit pagination.
type Page struct {
	Offset int
	Limit  int
}

type Repository interface {
	Create(ctx context.Context, record *models.Record) (*models.Record, error)

	// GetByID returns the record if it belongs to the identity and is not
	// soft-deleted; common.ErrNotFound otherwise.
	GetByID(ctx context.Context, identityID, id string) (*models.Record, error)

	// List returns one page sorted newest-created-first, plus the total
	// number of matching records.
	List(ctx context.Context, identityID string, filter Filter, page Page) ([]*models.Record, int, error)

	// Update writes the mutable fields of the record (type, title,
	// encrypted blobs, file path) and bumps updated_at.
	Update(ctx context.Context, record *models.Record) error

	// SoftDelete stamps deleted_at and returns the timestamp. The row is
	// not removed.
	SoftDelete(ctx context.Context, identityID, id string) (time.Time, error)

	// SetTags replaces the record's tag associations.
	SetTags(ctx context.Context, recordID string, tagIDs []string) error

	// TagNames lists the names of the record's tags, sorted.
	TagNames(ctx context.Context, recordID string) ([]string, error)
}
