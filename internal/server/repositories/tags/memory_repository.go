package tags

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akarpov91/vaultd/internal/common"
	"github.com/akarpov91/vaultd/internal/server/models"
)

type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]*models.Tag
	now  func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID: make(map[string]*models.Tag),
		now:  time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, tag *models.Tag) (*models.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if existing.IdentityID == tag.IdentityID && existing.Name == tag.Name {
			return nil, common.ErrConflict
		}
	}

	tag.ID = uuid.NewString()
	tag.CreatedAt = r.now()
	stored := *tag
	r.byID[tag.ID] = &stored

	return tag, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tag, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}

	clone := *tag
	return &clone, nil
}

func (r *MemoryRepository) GetByName(_ context.Context, identityID, name string) (*models.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tag := range r.byID {
		if tag.IdentityID == identityID && tag.Name == name {
			clone := *tag
			return &clone, nil
		}
	}

	return nil, common.ErrNotFound
}

func (r *MemoryRepository) Update(_ context.Context, tag *models.Tag) (*models.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[tag.ID]
	if !ok || stored.IdentityID != tag.IdentityID {
		return nil, common.ErrNotFound
	}

	for _, existing := range r.byID {
		if existing.ID != tag.ID && existing.IdentityID == tag.IdentityID &&
			existing.Name == tag.Name {
			return nil, common.ErrConflict
		}
	}

	stored.Name = tag.Name
	stored.Color = tag.Color

	clone := *stored
	return &clone, nil
}

func (r *MemoryRepository) ListForIdentity(_ context.Context, identityID string) ([]*models.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := []*models.Tag{}
	for _, tag := range r.byID {
		if tag.IdentityID == identityID {
			clone := *tag
			items = append(items, &clone)
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (r *MemoryRepository) Delete(_ context.Context, identityID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tag, ok := r.byID[id]
	if !ok || tag.IdentityID != identityID {
		return common.ErrNotFound
	}

	delete(r.byID, id)
	return nil
}
