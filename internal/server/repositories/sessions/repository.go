// Package sessions stores login sessions keyed by the hash of the opaque
// refresh token. Expiry is absolute: sessions are lazily dropped on read
// and in bulk by the sweeper.
package sessions

import (
	"context"

	"github.com/akarpov91/vaultd/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, session *models.Session) error

	// GetByHash returns the session for the given refresh-token hash.
	// An expired session reads as common.ErrNotFound and is removed.
	GetByHash(ctx context.Context, tokenHash string) (*models.Session, error)

	// Delete removes one session (logout).
	Delete(ctx context.Context, tokenHash string) error

	// DeleteAllForIdentity removes every session owned by the identity
	// (logout everywhere).
	DeleteAllForIdentity(ctx context.Context, identityID string) error

	// SweepExpired drops expired sessions and returns the count.
	SweepExpired(ctx context.Context) (int, error)
}
