// Package session orchestrates the per-connection lifecycle: admission at
// handshake, one-time history replay, and teardown on connection loss.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avelkaya/whisperline/internal/common"
	"github.com/avelkaya/whisperline/internal/logging"
	"github.com/avelkaya/whisperline/internal/server/instrument"
	"github.com/avelkaya/whisperline/internal/server/presence"
	"github.com/avelkaya/whisperline/internal/server/repositories/envelopes"
	"github.com/avelkaya/whisperline/internal/wire"
)

// Session is the connection handle managed by the controller. On top of the
// registry's view it accepts the history replay batch.
type Session interface {
	presence.Session

	// SendHistory delivers the one-time replay batch. Implementations hold
	// back live events queued since registration and flush them after the
	// batch, so the client always sees history first.
	SendHistory(packets []wire.Packet)
}

// Controller drives the Connecting → Active → Closed transitions.
type Controller struct {
	registry     *presence.Registry
	store        envelopes.Repository
	logger       logging.Logger
	metrics      *instrument.Metrics
	historyLimit int
}

func NewController(registry *presence.Registry, store envelopes.Repository, l logging.Logger, m *instrument.Metrics, historyLimit int) *Controller {
	if historyLimit <= 0 {
		historyLimit = common.DefaultHistoryLimit
	}
	return &Controller{
		registry:     registry,
		store:        store,
		logger:       l.With("module", "session"),
		metrics:      m,
		historyLimit: historyLimit,
	}
}

// Connect admits a connection claiming the given username. On success the
// username set has been broadcast, the history batch delivered, and the
// returned canonical (trimmed) username is fixed for the session's life.
//
// Failure modes: empty or over-long username, duplicate session, or a store
// failure during the history fetch. A store failure rolls the registration
// back so the client can retry cleanly.
func (c *Controller) Connect(ctx context.Context, claimed string, s Session) (string, error) {
	username := strings.TrimSpace(claimed)
	if username == "" {
		return "", common.ErrEmptyUsername
	}
	if len(username) > common.MaxUsernameLen {
		return "", common.ErrUsernameTooLong
	}

	if err := c.registry.Register(ctx, username, s); err != nil {
		return "", err
	}

	rows, err := c.store.RecentByParticipant(ctx, username, c.historyLimit)
	if err != nil {
		c.registry.Unregister(ctx, username, s)
		return "", fmt.Errorf("fetch history: %w", err)
	}

	// rows arrive newest-first; replay oldest-first
	packets := make([]wire.Packet, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		env := rows[i]
		packets = append(packets, wire.Packet{
			From:          env.FromUser,
			To:            env.ToUser,
			IVB64:         env.IVB64,
			CiphertextB64: env.CiphertextB64,
			EncKeyToB64:   env.EncKeyToB64,
			EncKeyFromB64: env.EncKeyFromB64,
			CreatedAt:     env.CreatedAt.Format(time.RFC3339Nano),
		})
	}

	s.SendHistory(packets)
	c.metrics.HistoryBatches.Inc()

	c.logger.Info(ctx, "session active", "username", username, "sid", s.ID(), "history", len(packets))
	return username, nil
}

// Disconnect finalizes a closed connection. The registry removes the entry
// only if s still owns it and broadcasts the username set either way; there
// is no resume, a reconnecting client runs the full handshake again.
func (c *Controller) Disconnect(ctx context.Context, username string, s Session) {
	c.registry.Unregister(ctx, username, s)
	c.logger.Info(ctx, "session closed", "username", username, "sid", s.ID())
}
