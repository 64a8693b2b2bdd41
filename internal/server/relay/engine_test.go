package relay

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avelkaya/whisperline/internal/logging"
	"github.com/avelkaya/whisperline/internal/server/instrument"
	"github.com/avelkaya/whisperline/internal/server/models"
	"github.com/avelkaya/whisperline/internal/server/presence"
	"github.com/avelkaya/whisperline/internal/server/repositories/envelopes"
	"github.com/avelkaya/whisperline/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	id string

	mu      sync.Mutex
	packets []wire.Packet
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Send(event string, payload any) {
	if event != wire.EventNewPacket {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets = append(s.packets, payload.(wire.Packet))
}

func (s *fakeSession) received() []wire.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wire.Packet, len(s.packets))
	copy(out, s.packets)
	return out
}

type failingStore struct{}

func (failingStore) Append(ctx context.Context, env *models.Envelope) (*models.Envelope, error) {
	return nil, errors.New("store unavailable")
}

func (failingStore) RecentByParticipant(ctx context.Context, username string, limit int) ([]*models.Envelope, error) {
	return nil, errors.New("store unavailable")
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func newEngine(t *testing.T, store envelopes.Repository) (*Engine, *presence.Registry) {
	t.Helper()
	l := testLogger()
	m := instrument.NewMetrics()
	reg := presence.NewRegistry(l, m)
	return NewEngine(store, reg, l, m, time.Second), reg
}

func validPacket() wire.Packet {
	return wire.Packet{
		From:          "alice",
		To:            "bob",
		IVB64:         "aXY=",
		CiphertextB64: "Y3Q=",
		EncKeyToB64:   "a3Q=",
		EncKeyFromB64: "a2Y=",
	}
}

func TestSubmit_DeliversToRecipientAndEchoesSender(t *testing.T) {
	store := envelopes.NewInMemoryRepository()
	engine, reg := newEngine(t, store)
	ctx := context.Background()

	alice := &fakeSession{id: "s1"}
	bob := &fakeSession{id: "s2"}
	require.NoError(t, reg.Register(ctx, "alice", alice))
	require.NoError(t, reg.Register(ctx, "bob", bob))

	require.NoError(t, engine.Submit(ctx, "alice", validPacket()))

	aliceGot := alice.received()
	bobGot := bob.received()
	require.Len(t, aliceGot, 1)
	require.Len(t, bobGot, 1)
	assert.Equal(t, aliceGot[0], bobGot[0], "recipient and echo copies must be identical")
	assert.NotEmpty(t, aliceGot[0].CreatedAt)

	rows, err := store.RecentByParticipant(ctx, "bob", 50)
	require.NoError(t, err)
	require.Len(t, rows, 1, "exactly one new envelope")

	// all three views carry the same server timestamp
	assert.Equal(t, rows[0].CreatedAt.Format(time.RFC3339Nano), aliceGot[0].CreatedAt)
}

func TestSubmit_OfflineRecipient_PersistsAndEchoesOnly(t *testing.T) {
	store := envelopes.NewInMemoryRepository()
	engine, reg := newEngine(t, store)
	ctx := context.Background()

	alice := &fakeSession{id: "s1"}
	require.NoError(t, reg.Register(ctx, "alice", alice))

	require.NoError(t, engine.Submit(ctx, "alice", validPacket()))

	assert.Len(t, alice.received(), 1)

	rows, err := store.RecentByParticipant(ctx, "bob", 50)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "offline delivery is satisfied by the stored envelope")
}

func TestSubmit_SpoofedFrom_DroppedEntirely(t *testing.T) {
	store := envelopes.NewInMemoryRepository()
	engine, reg := newEngine(t, store)
	ctx := context.Background()

	alice := &fakeSession{id: "s1"}
	bob := &fakeSession{id: "s2"}
	require.NoError(t, reg.Register(ctx, "alice", alice))
	require.NoError(t, reg.Register(ctx, "bob", bob))

	pkt := validPacket()
	pkt.From = "mallory"

	require.NoError(t, engine.Submit(ctx, "alice", pkt), "drop is silent, no error")

	assert.Empty(t, alice.received())
	assert.Empty(t, bob.received())

	rows, err := store.RecentByParticipant(ctx, "bob", 50)
	require.NoError(t, err)
	assert.Empty(t, rows, "spoofed packet must never be persisted")
}

func TestSubmit_MissingField_Dropped(t *testing.T) {
	store := envelopes.NewInMemoryRepository()
	engine, reg := newEngine(t, store)
	ctx := context.Background()

	alice := &fakeSession{id: "s1"}
	require.NoError(t, reg.Register(ctx, "alice", alice))

	for _, mutate := range []func(*wire.Packet){
		func(p *wire.Packet) { p.From = "" },
		func(p *wire.Packet) { p.To = "" },
		func(p *wire.Packet) { p.IVB64 = "" },
		func(p *wire.Packet) { p.CiphertextB64 = "" },
		func(p *wire.Packet) { p.EncKeyToB64 = "" },
		func(p *wire.Packet) { p.EncKeyFromB64 = "" },
	} {
		pkt := validPacket()
		mutate(&pkt)
		require.NoError(t, engine.Submit(ctx, "alice", pkt))
	}

	assert.Empty(t, alice.received())
	rows, err := store.RecentByParticipant(ctx, "alice", 50)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSubmit_BlankRecipient_Dropped(t *testing.T) {
	store := envelopes.NewInMemoryRepository()
	engine, reg := newEngine(t, store)
	ctx := context.Background()

	alice := &fakeSession{id: "s1"}
	require.NoError(t, reg.Register(ctx, "alice", alice))

	pkt := validPacket()
	pkt.To = "   "
	require.NoError(t, engine.Submit(ctx, "alice", pkt))

	rows, err := store.RecentByParticipant(ctx, "alice", 50)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSubmit_OversizedCiphertext_NeverPersisted(t *testing.T) {
	store := envelopes.NewInMemoryRepository()
	engine, reg := newEngine(t, store)
	ctx := context.Background()

	alice := &fakeSession{id: "s1"}
	require.NoError(t, reg.Register(ctx, "alice", alice))

	pkt := validPacket()
	pkt.CiphertextB64 = strings.Repeat("A", 50001)
	require.NoError(t, engine.Submit(ctx, "alice", pkt))

	pkt = validPacket()
	pkt.EncKeyToB64 = strings.Repeat("A", 10001)
	require.NoError(t, engine.Submit(ctx, "alice", pkt))

	rows, err := store.RecentByParticipant(ctx, "alice", 50)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, alice.received())
}

func TestSubmit_PersistFailure_PreventsDelivery(t *testing.T) {
	engine, reg := newEngine(t, failingStore{})
	ctx := context.Background()

	alice := &fakeSession{id: "s1"}
	bob := &fakeSession{id: "s2"}
	require.NoError(t, reg.Register(ctx, "alice", alice))
	require.NoError(t, reg.Register(ctx, "bob", bob))

	err := engine.Submit(ctx, "alice", validPacket())
	require.Error(t, err, "persistence failure must not be masked")

	assert.Empty(t, alice.received())
	assert.Empty(t, bob.received())
}

func TestSubmit_FixedClock_StampsAllCopiesEqually(t *testing.T) {
	store := envelopes.NewInMemoryRepository()
	engine, reg := newEngine(t, store)
	ctx := context.Background()

	stamp := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)
	engine.now = func() time.Time { return stamp }

	alice := &fakeSession{id: "s1"}
	require.NoError(t, reg.Register(ctx, "alice", alice))
	require.NoError(t, engine.Submit(ctx, "alice", validPacket()))

	got := alice.received()
	require.Len(t, got, 1)
	assert.Equal(t, stamp.Format(time.RFC3339Nano), got[0].CreatedAt)

	rows, err := store.RecentByParticipant(ctx, "alice", 50)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].CreatedAt.Equal(stamp))
}
