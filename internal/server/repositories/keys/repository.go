package keys

import (
	"context"

	"github.com/avelkaya/whisperline/internal/server/models"
)

type Repository interface {
	// Upsert stores or replaces the public key for a username.
	Upsert(ctx context.Context, key *models.PublicKey) error

	// Get returns the stored key or common.ErrorNotFound.
	Get(ctx context.Context, username string) (*models.PublicKey, error)
}
