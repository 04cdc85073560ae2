// Package repository provides the persistent session repository capability
// consumed by the session service.
package repository

import (
	"context"
	"errors"

	"github.com/agentgate-ai/agentgate/pkg/types"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Repository is the persistence capability for sessions and their messages.
type Repository interface {
	// Create persists a new session.
	Create(ctx context.Context, session *types.Session) error

	// Get returns a session by ID, or ErrNotFound. Messages are not hydrated.
	Get(ctx context.Context, id string) (*types.Session, error)

	// Update persists changes to an existing session.
	Update(ctx context.Context, session *types.Session) error

	// ListByUser returns a user's sessions, newest first, optionally filtered
	// by status.
	ListByUser(ctx context.Context, userID string, status *types.SessionStatus, limit, offset int) ([]*types.Session, error)

	// CountByUser returns how many sessions a user owns.
	CountByUser(ctx context.Context, userID string) (int64, error)

	// AddMessage appends a message to its session's history.
	AddMessage(ctx context.Context, msg *types.Message) error

	// GetMessages returns up to limit messages for a session, newest first.
	// When beforeID is non-empty only messages with IDs ordered strictly
	// before it are returned; message IDs are ULIDs, so lexicographic order
	// is creation order.
	GetMessages(ctx context.Context, sessionID string, limit int, beforeID string) ([]*types.Message, error)

	// CleanupExpired marks sessions past their deadline as ended and returns
	// how many were affected.
	CleanupExpired(ctx context.Context) (int64, error)
}
