package identities

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akarpov91/vaultd/internal/common"
	"github.com/akarpov91/vaultd/internal/server/models"
)

// MemoryRepository keeps identities in process memory with subject and
// email indexes for O(1) callback-time lookup. Writes take the write lock;
// reads share the read lock.
type MemoryRepository struct {
	mu        sync.RWMutex
	byID      map[string]*models.Identity
	bySubject map[string]string
	byEmail   map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:      make(map[string]*models.Identity),
		bySubject: make(map[string]string),
		byEmail:   make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, identity *models.Identity) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySubject[identity.Subject]; exists {
		return nil, common.ErrConflict
	}
	if _, exists := r.byEmail[identity.Email]; exists {
		return nil, common.ErrConflict
	}

	stored := cloneIdentity(identity)
	stored.ID = uuid.NewString()
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.byID[stored.ID] = stored
	r.bySubject[stored.Subject] = stored.ID
	r.byEmail[stored.Email] = stored.ID

	return cloneIdentity(stored), nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return cloneIdentity(identity), nil
}

func (r *MemoryRepository) GetBySubject(_ context.Context, subject string) (*models.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySubject[subject]
	if !ok {
		return nil, common.ErrNotFound
	}
	return cloneIdentity(r.byID[id]), nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*models.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	return cloneIdentity(r.byID[id]), nil
}

func (r *MemoryRepository) UpdateProfile(_ context.Context, id, name, avatarURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	identity.Name = name
	identity.AvatarURL = avatarURL
	identity.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) UpdatePreferences(_ context.Context, id string, prefs map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	identity.Preferences = prefs
	identity.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	delete(r.bySubject, identity.Subject)
	delete(r.byEmail, identity.Email)
	delete(r.byID, id)
	return nil
}

func cloneIdentity(in *models.Identity) *models.Identity {
	out := *in
	out.Salt = append([]byte(nil), in.Salt...)
	if in.Preferences != nil {
		out.Preferences = make(map[string]any, len(in.Preferences))
		for k, v := range in.Preferences {
			out.Preferences[k] = v
		}
	}
	return &out
}
