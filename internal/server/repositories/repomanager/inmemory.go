package repomanager

import (
	"context"
	"database/sql"

	"github.com/avelkaya/whisperline/internal/dbx"
	"github.com/avelkaya/whisperline/internal/server/repositories/envelopes"
	"github.com/avelkaya/whisperline/internal/server/repositories/keys"
)

// InMemoryRepositoryManager vends process-local repositories. Used when the
// server runs with DSN "mem" and by tests; no migrations are needed.
type InMemoryRepositoryManager struct {
	envelopes *envelopes.InMemoryRepository
	keys      *keys.InMemoryRepository
}

func NewInMemoryRepositoryManager() RepositoryManager {
	return &InMemoryRepositoryManager{
		envelopes: envelopes.NewInMemoryRepository(),
		keys:      keys.NewInMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Envelopes(db dbx.DBTX) envelopes.Repository {
	return m.envelopes
}

func (m *InMemoryRepositoryManager) Keys(db dbx.DBTX) keys.Repository {
	return m.keys
}
