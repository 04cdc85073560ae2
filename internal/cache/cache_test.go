package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentgate-ai/agentgate/internal/store"
	"github.com/agentgate-ai/agentgate/pkg/types"
)

func newTestCache() (*SessionCache, *store.MemoryStore) {
	s := store.NewMemoryStore()
	return New(s, time.Minute, zerolog.Nop()), s
}

func TestSessionCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()

	got, err := c.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	session := &types.Session{
		ID:     "s1",
		UserID: "u1",
		Status: types.SessionActive,
		Config: types.DefaultSessionConfig(),
	}
	require.NoError(t, c.SetSession(ctx, session))

	got, err = c.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.SessionActive, got.Status)

	require.NoError(t, c.DeleteSession(ctx, "s1"))
	got, err = c.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, s := newTestCache()

	require.NoError(t, s.SetWithTTL(ctx, "session:bad", []byte("{not json"), 0))

	// Corrupt entries read as a miss and are dropped.
	got, err := c.GetSession(ctx, "bad")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.Get(ctx, "session:bad")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionCacheUserListing(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()

	sessions := []*types.Session{{ID: "s1", UserID: "u1"}, {ID: "s2", UserID: "u1"}}
	require.NoError(t, c.SetUserSessions(ctx, "u1", sessions))

	got, err := c.GetUserSessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.NoError(t, c.InvalidateUserSessions(ctx, "u1"))
	got, err = c.GetUserSessions(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionCacheMessages(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()

	// Appending with no cached history is a no-op.
	require.NoError(t, c.AppendMessage(ctx, "s1", &types.Message{ID: "m1"}))
	got, err := c.GetMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.SetMessages(ctx, "s1", []*types.Message{{ID: "m1"}}))
	require.NoError(t, c.AppendMessage(ctx, "s1", &types.Message{ID: "m2"}))

	got, err = c.GetMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m2", got[1].ID)
}
