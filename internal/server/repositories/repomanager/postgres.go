// Package repomanager provides concrete RepositoryManager implementations:
// PostgreSQL (with goose migrations) and in-memory for development and tests.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/avelkaya/whisperline/internal/dbx"
	"github.com/avelkaya/whisperline/internal/server/migrations"
	"github.com/avelkaya/whisperline/internal/server/repositories/envelopes"
	"github.com/avelkaya/whisperline/internal/server/repositories/keys"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

// Envelopes returns an envelopes.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Envelopes(db dbx.DBTX) envelopes.Repository {
	return envelopes.NewPostgresRepository(db)
}

// Keys returns a keys.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Keys(db dbx.DBTX) keys.Repository {
	return keys.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}
