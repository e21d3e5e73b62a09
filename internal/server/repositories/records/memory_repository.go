package records

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akarpov91/vaultd/internal/common"
	"github.com/akarpov91/vaultd/internal/server/models"
)

// TagNameFunc resolves a tag id to its name. The memory repository manager
// wires it to the in-memory tags repository.
type TagNameFunc func(ctx context.Context, tagID string) (string, error)

type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*models.Record
	tags    map[string][]string // record id -> tag ids
	tagName TagNameFunc
	now     func() time.Time
}

func NewMemoryRepository(tagName TagNameFunc) *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]*models.Record),
		tags:    make(map[string][]string),
		tagName: tagName,
		now:     time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, record *models.Record) (*models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record.ID = uuid.NewString()
	record.CreatedAt = r.now()
	record.UpdatedAt = record.CreatedAt
	r.records[record.ID] = cloneRecord(record)

	return record, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, identityID, id string) (*models.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok || record.IdentityID != identityID || record.DeletedAt != nil {
		return nil, common.ErrNotFound
	}

	return cloneRecord(record), nil
}

func (r *MemoryRepository) List(ctx context.Context, identityID string, filter Filter, page Page) ([]*models.Record, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := []*models.Record{}
	for _, record := range r.records {
		if record.IdentityID != identityID || record.DeletedAt != nil {
			continue
		}
		ok, err := r.matches(ctx, record, filter)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			matched = append(matched, record)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if page.Offset >= total {
		return []*models.Record{}, total, nil
	}
	end := page.Offset + page.Limit
	if end > total {
		end = total
	}

	items := make([]*models.Record, 0, end-page.Offset)
	for _, record := range matched[page.Offset:end] {
		items = append(items, cloneRecord(record))
	}

	return items, total, nil
}

func (r *MemoryRepository) matches(ctx context.Context, record *models.Record, filter Filter) (bool, error) {
	if filter.Type != "" && record.Type != filter.Type {
		return false, nil
	}
	if filter.Source != "" && record.Source != filter.Source {
		return false, nil
	}
	if filter.TitleSearch != "" &&
		!strings.Contains(strings.ToLower(record.Title), strings.ToLower(filter.TitleSearch)) {
		return false, nil
	}
	if len(filter.TagNames) > 0 {
		names, err := r.tagNamesLocked(ctx, record.ID)
		if err != nil {
			return false, err
		}
		found := false
		for _, want := range filter.TagNames {
			for _, name := range names {
				if name == want {
					found = true
				}
			}
		}
		if !found {
			return false, nil
		}
	}
	return true, nil
}

func (r *MemoryRepository) Update(_ context.Context, record *models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[record.ID]
	if !ok || stored.IdentityID != record.IdentityID || stored.DeletedAt != nil {
		return common.ErrNotFound
	}

	stored.Type = record.Type
	stored.Title = record.Title
	stored.ContentEncrypted = record.ContentEncrypted
	stored.MetadataEncrypted = record.MetadataEncrypted
	stored.FilePath = record.FilePath
	stored.UpdatedAt = r.now()
	record.UpdatedAt = stored.UpdatedAt

	return nil
}

func (r *MemoryRepository) SoftDelete(_ context.Context, identityID, id string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[id]
	if !ok || stored.IdentityID != identityID || stored.DeletedAt != nil {
		return time.Time{}, common.ErrNotFound
	}

	now := r.now()
	stored.DeletedAt = &now
	stored.UpdatedAt = now

	return now, nil
}

func (r *MemoryRepository) SetTags(_ context.Context, recordID string, tagIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tags[recordID] = append([]string{}, tagIDs...)
	return nil
}

func (r *MemoryRepository) TagNames(ctx context.Context, recordID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.tagNamesLocked(ctx, recordID)
}

func (r *MemoryRepository) tagNamesLocked(ctx context.Context, recordID string) ([]string, error) {
	names := []string{}
	for _, tagID := range r.tags[recordID] {
		name, err := r.tagName(ctx, tagID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				continue
			}
			return nil, err
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func cloneRecord(record *models.Record) *models.Record {
	clone := *record
	if record.DeletedAt != nil {
		t := *record.DeletedAt
		clone.DeletedAt = &t
	}
	return &clone
}
