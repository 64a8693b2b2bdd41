// Package keys provides storage for the public-key directory.
package keys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avelkaya/whisperline/internal/common"
	"github.com/avelkaya/whisperline/internal/dbx"
	"github.com/avelkaya/whisperline/internal/server/models"
)

// PostgresRepository implements key storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, key *models.PublicKey) error {
	query := `
		INSERT INTO public_keys (username, public_key_pem, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (username)
		DO UPDATE SET public_key_pem = EXCLUDED.public_key_pem, updated_at = now();
	`
	if _, err := r.db.ExecContext(ctx, query, key.Username, key.PEM); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, username string) (*models.PublicKey, error) {
	query := `
		SELECT username, public_key_pem, updated_at FROM public_keys
		WHERE username=$1;
	`
	var item models.PublicKey
	row := r.db.QueryRowContext(ctx, query, username)
	if err := row.Scan(&item.Username, &item.PEM, &item.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &item, nil
}
