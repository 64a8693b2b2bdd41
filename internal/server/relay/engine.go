// Package relay validates inbound packets, persists them as envelopes and
// delivers them to connected recipients.
package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avelkaya/whisperline/internal/common"
	"github.com/avelkaya/whisperline/internal/logging"
	"github.com/avelkaya/whisperline/internal/server/instrument"
	"github.com/avelkaya/whisperline/internal/server/models"
	"github.com/avelkaya/whisperline/internal/server/presence"
	"github.com/avelkaya/whisperline/internal/server/repositories/envelopes"
	"github.com/avelkaya/whisperline/internal/wire"
)

// Engine relays encrypted packets: validate, persist, then deliver. The
// persist-before-deliver order is a correctness requirement; a recipient
// must never see a packet that failed to reach durable storage.
type Engine struct {
	store          envelopes.Repository
	registry       *presence.Registry
	logger         logging.Logger
	metrics        *instrument.Metrics
	persistTimeout time.Duration

	// now is a test seam; production uses time.Now.
	now func() time.Time
}

func NewEngine(store envelopes.Repository, registry *presence.Registry, l logging.Logger, m *instrument.Metrics, persistTimeout time.Duration) *Engine {
	return &Engine{
		store:          store,
		registry:       registry,
		logger:         l.With("module", "relay"),
		metrics:        m,
		persistTimeout: persistTimeout,
		now:            time.Now,
	}
}

// Submit processes one packet sent on sender's connection.
//
// Protocol violations (missing field, spoofed from, empty recipient,
// oversized field) are dropped without any signal back to the sender; the
// offending client must not learn which check it tripped. A persistence
// failure is returned as an error and nothing is delivered.
func (e *Engine) Submit(ctx context.Context, sender string, pkt wire.Packet) error {
	if reason, ok := e.validate(sender, pkt); !ok {
		e.metrics.PacketsDropped.WithLabelValues(reason).Inc()
		e.logger.Warn(ctx, "packet dropped", "reason", reason, "sender", sender)
		return nil
	}

	// One timestamp for the stored row and every delivered copy, so sender,
	// recipient and later history replays agree on message time.
	stamp := e.now().UTC()

	env := &models.Envelope{
		FromUser:      strings.TrimSpace(pkt.From),
		ToUser:        strings.TrimSpace(pkt.To),
		IVB64:         pkt.IVB64,
		CiphertextB64: pkt.CiphertextB64,
		EncKeyToB64:   pkt.EncKeyToB64,
		EncKeyFromB64: pkt.EncKeyFromB64,
		CreatedAt:     stamp,
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.persistTimeout)
	defer cancel()

	if _, err := e.store.Append(persistCtx, env); err != nil {
		return fmt.Errorf("persist packet: %w", err)
	}

	out := pkt
	out.From = env.FromUser
	out.To = env.ToUser
	out.CreatedAt = stamp.Format(time.RFC3339Nano)

	if recipient, ok := e.registry.Lookup(env.ToUser); ok {
		recipient.Send(wire.EventNewPacket, out)
	}

	// Echo to the sender's own session; a no-op if it died mid-flight.
	if own, ok := e.registry.Lookup(sender); ok {
		own.Send(wire.EventNewPacket, out)
	}

	e.metrics.PacketsRelayed.Inc()
	return nil
}

// validate applies the anti-abuse checks in order. It returns the drop
// reason used for logging and metrics; the reason is never sent to clients.
func (e *Engine) validate(sender string, pkt wire.Packet) (string, bool) {
	if pkt.From == "" || pkt.To == "" || pkt.IVB64 == "" || pkt.CiphertextB64 == "" ||
		pkt.EncKeyToB64 == "" || pkt.EncKeyFromB64 == "" {
		return instrument.DropMissingField, false
	}
	if strings.TrimSpace(pkt.From) != sender {
		return instrument.DropSpoofedFrom, false
	}
	if strings.TrimSpace(pkt.To) == "" {
		return instrument.DropEmptyRecipient, false
	}
	if len(pkt.IVB64) > common.MaxIVB64Len ||
		len(pkt.CiphertextB64) > common.MaxCiphertextB64Len ||
		len(pkt.EncKeyToB64) > common.MaxWrappedKeyB64Len ||
		len(pkt.EncKeyFromB64) > common.MaxWrappedKeyB64Len {
		return instrument.DropOversized, false
	}
	return "", true
}
