package repomanager

import (
	"context"
	"database/sql"

	"github.com/avelkaya/whisperline/internal/dbx"
	"github.com/avelkaya/whisperline/internal/server/repositories/envelopes"
	"github.com/avelkaya/whisperline/internal/server/repositories/keys"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Envelopes(db dbx.DBTX) envelopes.Repository
	Keys(db dbx.DBTX) keys.Repository
}
