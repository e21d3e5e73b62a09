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

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Identities(db dbx.DBTX) identities.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Records(db dbx.DBTX) records.Repository
	Tags(db dbx.DBTX) tags.Repository
}
