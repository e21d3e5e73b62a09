package repomanager

import (
	"context"
	"database/sql"

	"github.com/akarpov91/vaultd/internal/dbx"
	"github.com/akarpov91/vaultd/internal/server/repositories/identities"
	"github.com/akarpov91/vaultd/internal/server/repositories/records"
	"github.com/akarpov91/vaultd/internal/server/repositories/sessions"
	"github.com/akarpov91/vaultd/internal/server/repositories/tags"
)

// MemoryRepositoryManager vends shared in-memory repositories. The DBTX
// argument is ignored; all calls return the same singletons so that state
// survives across requests.
type MemoryRepositoryManager struct {
	identities *identities.MemoryRepository
	sessions   *sessions.MemoryRepository
	records    *records.MemoryRepository
	tags       *tags.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	tagRepo := tags.NewMemoryRepository()
	recordRepo := records.NewMemoryRepository(
		func(ctx context.Context, tagID string) (string, error) {
			tag, err := tagRepo.GetByID(ctx, tagID)
			if err != nil {
				return "", err
			}
			return tag.Name, nil
		})

	return &MemoryRepositoryManager{
		identities: identities.NewMemoryRepository(),
		sessions:   sessions.NewMemoryRepository(),
		records:    recordRepo,
		tags:       tagRepo,
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *MemoryRepositoryManager) Identities(dbx.DBTX) identities.Repository {
	return m.identities
}

func (m *MemoryRepositoryManager) Sessions(dbx.DBTX) sessions.Repository {
	return m.sessions
}

func (m *MemoryRepositoryManager) Records(dbx.DBTX) records.Repository {
	return m.records
}

func (m *MemoryRepositoryManager) Tags(dbx.DBTX) tags.Repository {
	return m.tags
}
