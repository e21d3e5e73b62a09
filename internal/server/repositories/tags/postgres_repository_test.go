package tags

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

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

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "created_at"}).AddRow("t-1", now)
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+tags`).
		WithArgs("id-1", "health", "#ff0000").
		WillReturnRows(rows)

	got, err := repo.Create(context.Background(), &models.Tag{
		IdentityID: "id-1",
		Name:       "health",
		Color:      "#ff0000",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "t-1" {
		t.Fatalf("unexpected tag: %+v", got)
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+tags`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &models.Tag{IdentityID: "id-1", Name: "health"})
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("want common.ErrConflict, got %v", err)
	}
}

func TestGetByName_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+.+\s+FROM\s+tags\s+WHERE\s+identity_id\s*=\s*\$1\s+AND\s+name\s*=\s*\$2`
	mock.ExpectQuery(q).WithArgs("id-1", "ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByName(context.Background(), "id-1", "ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestListForIdentity_SortedByName(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "identity_id", "name", "color", "created_at"}).
		AddRow("t-2", "id-1", "finance", nil, now).
		AddRow("t-1", "id-1", "health", "#ff0000", now)
	mock.ExpectQuery(`(?s)^SELECT\s+.+\s+FROM\s+tags\s+WHERE\s+identity_id\s*=\s*\$1\s+ORDER\s+BY\s+name`).
		WithArgs("id-1").
		WillReturnRows(rows)

	got, err := repo.ListForIdentity(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("ListForIdentity error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "finance" || got[1].Name != "health" {
		t.Fatalf("unexpected tags: %+v", got)
	}
	if got[0].Color != "" || got[1].Color != "#ff0000" {
		t.Fatalf("colors not decoded: %+v", got)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+tags\s+WHERE\s+id\s*=\s*\$1\s+AND\s+identity_id\s*=\s*\$2$`).
		WithArgs("ghost", "id-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "id-1", "ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestUpdate_RenamesTag(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"created_at"}).AddRow(now)
	mock.ExpectQuery(`(?s)^UPDATE\s+tags\s+SET`).
		WithArgs("wellness", "#123456", "t-1", "id-1").
		WillReturnRows(rows)

	got, err := repo.Update(context.Background(), &models.Tag{
		ID:         "t-1",
		IdentityID: "id-1",
		Name:       "wellness",
		Color:      "#123456",
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if got.Name != "wellness" || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected tag: %+v", got)
	}
}

func TestUpdate_NameTaken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+tags\s+SET`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Update(context.Background(), &models.Tag{ID: "t-1", IdentityID: "id-1", Name: "health"})
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("want common.ErrConflict, got %v", err)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+tags\s+SET`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Update(context.Background(), &models.Tag{ID: "t-9", IdentityID: "id-1", Name: "x"})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}
