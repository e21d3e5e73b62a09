package sessions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/akarpov91/vaultd/internal/common"
	"github.com/akarpov91/vaultd/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const selectQuery = `(?s)^SELECT\s+token_hash,\s*identity_id,\s*created_at,\s*expires_at\s+FROM\s+sessions`

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expiresAt := time.Now().Add(time.Hour)
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+sessions`).
		WithArgs("hash-1", "id-1", expiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Session{
		TokenHash:  "hash-1",
		IdentityID: "id-1",
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestGetByHash_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"token_hash", "identity_id", "created_at", "expires_at"}).
		AddRow("hash-1", "id-1", now, now.Add(time.Hour))
	mock.ExpectQuery(selectQuery).WithArgs("hash-1").WillReturnRows(rows)

	got, err := repo.GetByHash(context.Background(), "hash-1")
	if err != nil {
		t.Fatalf("GetByHash error: %v", err)
	}
	if got.IdentityID != "id-1" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestGetByHash_ExpiredReadsAsAbsent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"token_hash", "identity_id", "created_at", "expires_at"}).
		AddRow("hash-1", "id-1", now.Add(-2*time.Hour), now.Add(-time.Hour))
	mock.ExpectQuery(selectQuery).WithArgs("hash-1").WillReturnRows(rows)
	mock.ExpectExec(`^DELETE\s+FROM\s+sessions\s+WHERE\s+token_hash\s*=\s*\$1$`).
		WithArgs("hash-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := repo.GetByHash(context.Background(), "hash-1")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("stale row not deleted: %v", err)
	}
}

func TestGetByHash_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQuery).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByHash(context.Background(), "ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestDeleteAllForIdentity_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+sessions\s+WHERE\s+identity_id\s*=\s*\$1$`).
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.DeleteAllForIdentity(context.Background(), "id-1"); err != nil {
		t.Fatalf("DeleteAllForIdentity error: %v", err)
	}
}

func TestSweepExpired_ReturnsCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+sessions\s+WHERE\s+expires_at\s*<\s*now\(\)$`).
		WillReturnResult(sqlmock.NewResult(0, 5))

	n, err := repo.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired error: %v", err)
	}
	if n != 5 {
		t.Fatalf("want 5 swept, got %d", n)
	}
}
