package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/akarpov91/vaultd/internal/common"
	"github.com/akarpov91/vaultd/internal/server/models"
)

// MemoryRepository keeps sessions in process memory. Unlike the OAuth state
// store, reads do not consume: a session stays valid until logout or expiry.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]*models.Session),
		now:      time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *session
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now()
	}
	r.sessions[stored.TokenHash] = &stored
	return nil
}

func (r *MemoryRepository) GetByHash(_ context.Context, tokenHash string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[tokenHash]
	if !ok {
		return nil, common.ErrNotFound
	}
	if session.Expired(r.now()) {
		delete(r.sessions, tokenHash)
		return nil, common.ErrNotFound
	}

	out := *session
	return &out, nil
}

func (r *MemoryRepository) Delete(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, tokenHash)
	return nil
}

func (r *MemoryRepository) DeleteAllForIdentity(_ context.Context, identityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, session := range r.sessions {
		if session.IdentityID == identityID {
			delete(r.sessions, hash)
		}
	}
	return nil
}

func (r *MemoryRepository) SweepExpired(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	dropped := 0
	for hash, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, hash)
			dropped++
		}
	}
	return dropped, nil
}
