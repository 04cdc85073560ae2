// Package cache provides a read-through session cache over the key-value
// store capability.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentgate-ai/agentgate/internal/store"
	"github.com/agentgate-ai/agentgate/pkg/types"
)

// DefaultTTL is the cache entry lifetime when none is configured.
const DefaultTTL = 30 * time.Minute

// SessionCache caches sessions, per-user session listings, and message
// histories. A cache miss is (nil, nil); undecodable entries are deleted and
// treated as misses rather than surfacing a parse error.
type SessionCache struct {
	store store.Store
	ttl   time.Duration
	log   zerolog.Logger
}

// New creates a session cache over the given store.
func New(s store.Store, ttl time.Duration, log zerolog.Logger) *SessionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SessionCache{store: s, ttl: ttl, log: log}
}

func sessionKey(id string) string { return "session:" + id }
func userSessionsKey(id string) string { return "user:sessions:" + id }
func messagesKey(sessionID string) string { return "session:messages:" + sessionID }

// GetSession returns the cached session, or nil on miss.
func (c *SessionCache) GetSession(ctx context.Context, id string) (*types.Session, error) {
	var session types.Session
	ok, err := c.getJSON(ctx, sessionKey(id), &session)
	if err != nil || !ok {
		return nil, err
	}
	return &session, nil
}

// SetSession caches a session.
func (c *SessionCache) SetSession(ctx context.Context, session *types.Session) error {
	return c.setJSON(ctx, sessionKey(session.ID), session)
}

// DeleteSession evicts a session and its cached messages.
func (c *SessionCache) DeleteSession(ctx context.Context, id string) error {
	_, err := c.store.Delete(ctx, sessionKey(id), messagesKey(id))
	return err
}

// GetUserSessions returns the cached session listing for a user, or nil on miss.
func (c *SessionCache) GetUserSessions(ctx context.Context, userID string) ([]*types.Session, error) {
	var sessions []*types.Session
	ok, err := c.getJSON(ctx, userSessionsKey(userID), &sessions)
	if err != nil || !ok {
		return nil, err
	}
	return sessions, nil
}

// SetUserSessions caches a user's session listing.
func (c *SessionCache) SetUserSessions(ctx context.Context, userID string, sessions []*types.Session) error {
	return c.setJSON(ctx, userSessionsKey(userID), sessions)
}

// InvalidateUserSessions drops a user's cached session listing.
func (c *SessionCache) InvalidateUserSessions(ctx context.Context, userID string) error {
	_, err := c.store.Delete(ctx, userSessionsKey(userID))
	return err
}

// GetMessages returns the cached message history, or nil on miss.
func (c *SessionCache) GetMessages(ctx context.Context, sessionID string) ([]*types.Message, error) {
	var messages []*types.Message
	ok, err := c.getJSON(ctx, messagesKey(sessionID), &messages)
	if err != nil || !ok {
		return nil, err
	}
	return messages, nil
}

// SetMessages caches a session's message history.
func (c *SessionCache) SetMessages(ctx context.Context, sessionID string, messages []*types.Message) error {
	return c.setJSON(ctx, messagesKey(sessionID), messages)
}

// AppendMessage appends to the cached message history, if one exists.
func (c *SessionCache) AppendMessage(ctx context.Context, sessionID string, msg *types.Message) error {
	messages, err := c.GetMessages(ctx, sessionID)
	if err != nil {
		return err
	}
	if messages == nil {
		// Nothing cached; the next read repopulates from the repository.
		return nil
	}
	return c.SetMessages(ctx, sessionID, append(messages, msg))
}

// getJSON reads and decodes a cached value. It reports false on a miss and
// deletes corrupt entries instead of propagating decode errors.
func (c *SessionCache) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := c.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, v); err != nil {
		c.log.Warn().Str("key", key).Err(err).Msg("dropping corrupt cache entry")
		c.store.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

func (c *SessionCache) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.store.SetWithTTL(ctx, key, data, c.ttl)
}
