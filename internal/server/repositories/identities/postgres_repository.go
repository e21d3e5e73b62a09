package identities

import (
	"context"
	"database/sql"
	"encoding/json"
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

func (r *PostgresRepository) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	prefs, err := marshalPrefs(identity.Preferences)
	if err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO identities (subject, email, name, avatar_url, salt, preferences)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		identity.Subject, identity.Email, identity.Name, identity.AvatarURL, identity.Salt, prefs).
		Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return identity, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	return r.getBy(ctx, "id", id)
}

func (r *PostgresRepository) GetBySubject(ctx context.Context, subject string) (*models.Identity, error) {
	return r.getBy(ctx, "subject", subject)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return r.getBy(ctx, "email", email)
}

func (r *PostgresRepository) getBy(ctx context.Context, column, value string) (*models.Identity, error) {
	query := fmt.Sprintf(
		`SELECT id, subject, email, name, avatar_url, salt, preferences, created_at, updated_at
		 FROM identities
		 WHERE %s = $1
		 `, column)

	identity := &models.Identity{}
	var prefs []byte
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&identity.ID, &identity.Subject, &identity.Email, &identity.Name,
		&identity.AvatarURL, &identity.Salt, &prefs,
		&identity.CreatedAt, &identity.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &identity.Preferences); err != nil {
			return nil, fmt.Errorf("decoding preferences: %w", err)
		}
	}

	return identity, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id, name, avatarURL string) error {
	query :=
		`UPDATE identities SET name = $2, avatar_url = $3, updated_at = now()
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, name, avatarURL)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRowAffected(res)
}

func (r *PostgresRepository) UpdatePreferences(ctx context.Context, id string, prefs map[string]any) error {
	data, err := marshalPrefs(prefs)
	if err != nil {
		return err
	}

	query :=
		`UPDATE identities SET preferences = $2, updated_at = now()
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, data)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRowAffected(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	// Records, tags, and sessions cascade via foreign keys.
	res, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRowAffected(res)
}

func marshalPrefs(prefs map[string]any) ([]byte, error) {
	if prefs == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("encoding preferences: %w", err)
	}
	return data, nil
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
