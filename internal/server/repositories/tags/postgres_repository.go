package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/akarpov91/vaultd/internal/common"
	"github.com/akarpov91/vaultd/internal/dbx"
	"github.com/akarpov91/vaultd/internal/server/models"
)

const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, tag *models.Tag) (*models.Tag, error) {
	query :=
		`INSERT INTO tags (identity_id, name, color)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, tag.IdentityID, tag.Name, tag.Color).
		Scan(&tag.ID, &tag.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return tag, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Tag, error) {
	query :=
		`SELECT id, identity_id, name, color, created_at
		 FROM tags WHERE id = $1
		 `
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByName(ctx context.Context, identityID, name string) (*models.Tag, error) {
	query :=
		`SELECT id, identity_id, name, color, created_at
		 FROM tags WHERE identity_id = $1 AND name = $2
		 `
	return r.getOne(ctx, query, identityID, name)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Tag, error) {
	tag := &models.Tag{}
	var color sql.NullString
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&tag.ID, &tag.IdentityID, &tag.Name, &color, &tag.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	tag.Color = color.String
	return tag, nil
}

func (r *PostgresRepository) Update(ctx context.Context, tag *models.Tag) (*models.Tag, error) {
	query :=
		`UPDATE tags SET name = $1, color = $2
		 WHERE id = $3 AND identity_id = $4
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query, tag.Name, tag.Color, tag.ID, tag.IdentityID).
		Scan(&tag.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return tag, nil
}

func (r *PostgresRepository) ListForIdentity(ctx context.Context, identityID string) ([]*models.Tag, error) {
	query :=
		`SELECT id, identity_id, name, color, created_at
		 FROM tags WHERE identity_id = $1
		 ORDER BY name
		 `

	rows, err := r.db.QueryContext(ctx, query, identityID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	items := []*models.Tag{}
	for rows.Next() {
		tag := &models.Tag{}
		var color sql.NullString
		if err := rows.Scan(&tag.ID, &tag.IdentityID, &tag.Name, &color, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		tag.Color = color.String
		items = append(items, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return items, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, identityID, id string) error {
	// record_tags rows cascade via foreign key.
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tags WHERE id = $1 AND identity_id = $2`, id, identityID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}

	return nil
}
