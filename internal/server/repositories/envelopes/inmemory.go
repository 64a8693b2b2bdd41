package envelopes

import (
	"context"
	"sync"

	"github.com/avelkaya/whisperline/internal/server/models"
)

// InMemoryRepository keeps envelopes in a slice guarded by a mutex. It backs
// the "mem" DSN development mode and the core tests.
type InMemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	items  []*models.Envelope
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1}
}

func (r *InMemoryRepository) Append(ctx context.Context, env *models.Envelope) (*models.Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *env
	stored.ID = r.nextID
	r.nextID++
	r.items = append(r.items, &stored)

	out := stored
	return &out, nil
}

func (r *InMemoryRepository) RecentByParticipant(ctx context.Context, username string, limit int) ([]*models.Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Envelope
	for i := len(r.items) - 1; i >= 0 && len(result) < limit; i-- {
		item := r.items[i]
		if item.FromUser == username || item.ToUser == username {
			out := *item
			result = append(result, &out)
		}
	}
	return result, nil
}
