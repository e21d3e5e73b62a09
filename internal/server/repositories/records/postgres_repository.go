package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akarpov91/vaultd/internal/common"
	"github.com/akarpov91/vaultd/internal/dbx"
	"github.com/akarpov91/vaultd/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const recordColumns = `id, identity_id, type, source, source_id, title,
	content_encrypted, metadata_encrypted, file_path,
	created_at, updated_at, deleted_at`

func (r *PostgresRepository) Create(ctx context.Context, record *models.Record) (*models.Record, error) {
	query :=
		`INSERT INTO records (identity_id, type, source, source_id, title,
		                      content_encrypted, metadata_encrypted, file_path)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		record.IdentityID, record.Type, record.Source, record.SourceID, record.Title,
		record.ContentEncrypted, record.MetadataEncrypted, record.FilePath).
		Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return record, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, identityID, id string) (*models.Record, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM records
		 WHERE id = $1 AND identity_id = $2 AND deleted_at IS NULL
		 `, recordColumns)

	record, err := scanRecord(r.db.QueryRowContext(ctx, query, id, identityID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return record, nil
}

func (r *PostgresRepository) List(ctx context.Context, identityID string, filter Filter, page Page) ([]*models.Record, int, error) {
	where, args := buildWhere(identityID, filter)

	var total int
	countQuery := "SELECT count(*) FROM records " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM records %s
		 ORDER BY created_at DESC
		 OFFSET $%d LIMIT $%d`,
		recordColumns, where, len(args)+1, len(args)+2)
	args = append(args, page.Offset, page.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	items := []*models.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return items, total, nil
}

// buildWhere assembles the WHERE clause shared by the count and page
// queries. Placeholders are numbered from $1.
func buildWhere(identityID string, filter Filter) (string, []any) {
	conds := []string{"identity_id = $1", "deleted_at IS NULL"}
	args := []any{identityID}

	if filter.Type != "" {
		args = append(args, filter.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		conds = append(conds, fmt.Sprintf("source = $%d", len(args)))
	}
	if filter.TitleSearch != "" {
		args = append(args, "%"+filter.TitleSearch+"%")
		conds = append(conds, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	if len(filter.TagNames) > 0 {
		placeholders := make([]string, 0, len(filter.TagNames))
		for _, name := range filter.TagNames {
			args = append(args, name)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		conds = append(conds, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM record_tags rt
			         JOIN tags t ON t.id = rt.tag_id
			         WHERE rt.record_id = records.id AND t.name IN (%s))`,
			strings.Join(placeholders, ", ")))
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func (r *PostgresRepository) Update(ctx context.Context, record *models.Record) error {
	query :=
		`UPDATE records
		 SET type = $3, title = $4, content_encrypted = $5, metadata_encrypted = $6,
		     file_path = $7, updated_at = now()
		 WHERE id = $1 AND identity_id = $2 AND deleted_at IS NULL
		 RETURNING updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		record.ID, record.IdentityID, record.Type, record.Title,
		record.ContentEncrypted, record.MetadataEncrypted, record.FilePath).
		Scan(&record.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, identityID, id string) (time.Time, error) {
	query :=
		`UPDATE records SET deleted_at = now(), updated_at = now()
		 WHERE id = $1 AND identity_id = $2 AND deleted_at IS NULL
		 RETURNING deleted_at
		 `

	var deletedAt time.Time
	err := r.db.QueryRowContext(ctx, query, id, identityID).Scan(&deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, common.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("db error: %w", err)
	}

	return deletedAt, nil
}

func (r *PostgresRepository) SetTags(ctx context.Context, recordID string, tagIDs []string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM record_tags WHERE record_id = $1`, recordID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	for _, tagID := range tagIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO record_tags (record_id, tag_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, recordID, tagID)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}

	return nil
}

func (r *PostgresRepository) TagNames(ctx context.Context, recordID string) ([]string, error) {
	query :=
		`SELECT t.name FROM tags t
		 JOIN record_tags rt ON rt.tag_id = t.id
		 WHERE rt.record_id = $1
		 ORDER BY t.name
		 `

	rows, err := r.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return names, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	record := &models.Record{}
	var sourceID, filePath, metadata sql.NullString
	var deletedAt sql.NullTime

	err := row.Scan(
		&record.ID, &record.IdentityID, &record.Type, &record.Source,
		&sourceID, &record.Title, &record.ContentEncrypted, &metadata,
		&filePath, &record.CreatedAt, &record.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	record.SourceID = sourceID.String
	record.MetadataEncrypted = metadata.String
	record.FilePath = filePath.String
	if deletedAt.Valid {
		record.DeletedAt = &deletedAt.Time
	}

	return record, nil
}
