package envelopes

import (
	"context"

	"github.com/avelkaya/whisperline/internal/server/models"
)

type Repository interface {
	// Append stores env and returns it with the assigned id. The record is
	// durable before Append returns.
	Append(ctx context.Context, env *models.Envelope) (*models.Envelope, error)

	// RecentByParticipant returns at most limit envelopes where username is
	// sender or recipient, newest first (descending id).
	RecentByParticipant(ctx context.Context, username string, limit int) ([]*models.Envelope, error)
}
