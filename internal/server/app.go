// Package server initializes and runs the relay server. It wires the
// storage backend, the presence registry, the relay engine and the HTTP
// surface together, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/avelkaya/whisperline/internal/logging"
	"github.com/avelkaya/whisperline/internal/server/config"
	"github.com/avelkaya/whisperline/internal/server/directory"
	"github.com/avelkaya/whisperline/internal/server/instrument"
	"github.com/avelkaya/whisperline/internal/server/presence"
	"github.com/avelkaya/whisperline/internal/server/relay"
	"github.com/avelkaya/whisperline/internal/server/repositories/repomanager"
	"github.com/avelkaya/whisperline/internal/server/session"
	"github.com/avelkaya/whisperline/internal/server/ws"
)

// memDSN selects the process-local store instead of PostgreSQL.
const memDSN = "mem"

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *ws.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	var rm repomanager.RepositoryManager
	var db *sql.DB

	if c.DatabaseDSN == memDSN {
		rm = repomanager.NewInMemoryRepositoryManager()
	} else {
		var err error
		db, err = sql.Open("pgx", c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		rm = repomanager.NewPostgresRepositoryManager()
		if err := rm.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration error: %w", err)
		}
	}

	store := rm.Envelopes(db)
	keyRepo := rm.Keys(db)

	metrics := instrument.NewMetrics()
	registry := presence.NewRegistry(logger, metrics)
	engine := relay.NewEngine(store, registry, logger, metrics, c.PersistTimeout)
	controller := session.NewController(registry, store, logger, metrics, c.HistoryLimit)
	dir := directory.NewService(keyRepo, logger)

	srv := ws.NewServer(c.EndpointAddr, logger, registry, controller, engine, dir, metrics)

	return &App{config: c, logger: logger, db: db, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, err.Error())
		}
	}
}
