package keys

import (
	"context"
	"sync"
	"time"

	"github.com/avelkaya/whisperline/internal/common"
	"github.com/avelkaya/whisperline/internal/server/models"
)

// InMemoryRepository keeps the directory in a map guarded by a mutex.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*models.PublicKey
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{items: make(map[string]*models.PublicKey)}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, key *models.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *key
	stored.UpdatedAt = time.Now().UTC()
	r.items[key.Username] = &stored
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, username string) (*models.PublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *item
	return &out, nil
}
