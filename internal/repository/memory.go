package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agentgate-ai/agentgate/pkg/types"
)

// MemoryRepository is an in-memory Repository used in tests and single-node
// deployments without a database.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*types.Session
	messages map[string][]*types.Message
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]*types.Session),
		messages: make(map[string][]*types.Message),
	}
}

// Create persists a new session.
func (r *MemoryRepository) Create(_ context.Context, session *types.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = cloneSession(session)
	return nil
}

// Get returns a session by ID, or ErrNotFound.
func (r *MemoryRepository) Get(_ context.Context, id string) (*types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

// Update persists changes to an existing session.
func (r *MemoryRepository) Update(_ context.Context, session *types.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; !ok {
		return ErrNotFound
	}
	r.sessions[session.ID] = cloneSession(session)
	return nil
}

// ListByUser returns a user's sessions, newest first.
func (r *MemoryRepository) ListByUser(_ context.Context, userID string, status *types.SessionStatus, limit, offset int) ([]*types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sessions []*types.Session
	for _, session := range r.sessions {
		if session.UserID != userID {
			continue
		}
		if status != nil && session.Status != *status {
			continue
		}
		sessions = append(sessions, cloneSession(session))
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	if offset > 0 {
		if offset >= len(sessions) {
			return nil, nil
		}
		sessions = sessions[offset:]
	}
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// CountByUser returns how many sessions a user owns.
func (r *MemoryRepository) CountByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, session := range r.sessions {
		if session.UserID == userID {
			count++
		}
	}
	return count, nil
}

// AddMessage appends a message to its session's history.
func (r *MemoryRepository) AddMessage(_ context.Context, msg *types.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *msg
	r.messages[msg.SessionID] = append(r.messages[msg.SessionID], &clone)
	return nil
}

// GetMessages returns up to limit messages for a session, newest first.
func (r *MemoryRepository) GetMessages(_ context.Context, sessionID string, limit int, beforeID string) ([]*types.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.messages[sessionID]
	var messages []*types.Message
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if beforeID != "" && msg.ID >= beforeID {
			continue
		}
		clone := *msg
		messages = append(messages, &clone)
		if limit > 0 && len(messages) == limit {
			break
		}
	}
	return messages, nil
}

// CleanupExpired marks sessions past their deadline as ended.
func (r *MemoryRepository) CleanupExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var count int64
	for _, session := range r.sessions {
		if session.Status != types.SessionEnded && now.After(session.ExpiresAt) {
			session.Status = types.SessionEnded
			session.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

func cloneSession(session *types.Session) *types.Session {
	clone := *session
	if session.Metadata != nil {
		clone.Metadata = make(map[string]any, len(session.Metadata))
		for k, v := range session.Metadata {
			clone.Metadata[k] = v
		}
	}
	clone.Messages = nil
	return &clone
}
