// Package envelopes provides storage for encrypted message envelopes.
// Envelopes are append-only: nothing in this package updates or deletes rows.
package envelopes

import (
	"context"
	"fmt"

	"github.com/avelkaya/whisperline/internal/dbx"
	"github.com/avelkaya/whisperline/internal/server/models"
)

// PostgresRepository implements envelope storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, env *models.Envelope) (*models.Envelope, error) {
	query := `
		INSERT INTO envelopes (from_user, to_user, iv_b64, ct_b64, enc_key_to_b64, enc_key_from_b64, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id;
	`
	row := r.db.QueryRowContext(ctx, query,
		env.FromUser, env.ToUser, env.IVB64, env.CiphertextB64, env.EncKeyToB64, env.EncKeyFromB64, env.CreatedAt)
	if err := row.Scan(&env.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return env, nil
}

func (r *PostgresRepository) RecentByParticipant(ctx context.Context, username string, limit int) ([]*models.Envelope, error) {
	query := `
		SELECT id, from_user, to_user, iv_b64, ct_b64, enc_key_to_b64, enc_key_from_b64, created_at FROM envelopes
		WHERE from_user=$1 OR to_user=$1
		ORDER BY id DESC
		LIMIT $2;
	`
	rows, err := r.db.QueryContext(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select envelopes: %w", err)
	}
	defer rows.Close()

	var result []*models.Envelope
	for rows.Next() {
		var item models.Envelope
		if err := rows.Scan(
			&item.ID, &item.FromUser, &item.ToUser, &item.IVB64, &item.CiphertextB64,
			&item.EncKeyToB64, &item.EncKeyFromB64, &item.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
