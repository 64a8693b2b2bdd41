package envelopes

import (
	"context"
	"testing"
	"time"

	"github.com/avelkaya/whisperline/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendOne(t *testing.T, repo *InMemoryRepository, from, to string) *models.Envelope {
	t.Helper()
	env, err := repo.Append(context.Background(), &models.Envelope{
		FromUser:      from,
		ToUser:        to,
		IVB64:         "aXY=",
		CiphertextB64: "Y3Q=",
		EncKeyToB64:   "a3Q=",
		EncKeyFromB64: "a2Y=",
		CreatedAt:     time.Now().UTC(),
	})
	require.NoError(t, err)
	return env
}

func TestInMemory_Append_IncreasingIDs(t *testing.T) {
	repo := NewInMemoryRepository()

	first := appendOne(t, repo, "alice", "bob")
	second := appendOne(t, repo, "bob", "alice")

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
}

func TestInMemory_RecentByParticipant_FiltersAndOrders(t *testing.T) {
	repo := NewInMemoryRepository()

	appendOne(t, repo, "alice", "bob")
	appendOne(t, repo, "carol", "dave")
	appendOne(t, repo, "bob", "alice")

	got, err := repo.RecentByParticipant(context.Background(), "alice", 50)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// newest first
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(1), got[1].ID)
}

func TestInMemory_RecentByParticipant_Limit(t *testing.T) {
	repo := NewInMemoryRepository()

	for i := 0; i < 60; i++ {
		appendOne(t, repo, "alice", "bob")
	}

	got, err := repo.RecentByParticipant(context.Background(), "alice", 50)
	require.NoError(t, err)
	assert.Len(t, got, 50)
	assert.Equal(t, int64(60), got[0].ID)
	assert.Equal(t, int64(11), got[49].ID)
}

func TestInMemory_RecentByParticipant_NoMatches(t *testing.T) {
	repo := NewInMemoryRepository()
	appendOne(t, repo, "alice", "bob")

	got, err := repo.RecentByParticipant(context.Background(), "mallory", 50)
	require.NoError(t, err)
	assert.Empty(t, got)
}
