// Package session provides session lifecycle management: creation,
// activation, suspension, messaging, and termination.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/agentgate-ai/agentgate/internal/cache"
	"github.com/agentgate-ai/agentgate/internal/event"
	"github.com/agentgate-ai/agentgate/internal/keylock"
	"github.com/agentgate-ai/agentgate/internal/repository"
	"github.com/agentgate-ai/agentgate/pkg/types"
)

// DefaultPageSize bounds GetMessages when the caller passes no limit.
const DefaultPageSize = 50

// Service orchestrates session lifecycle transitions and message handling.
// It composes the repository, the read-through cache, and the event
// publisher; mutations on one session are serialized in-process by session id.
type Service struct {
	repo   repository.Repository
	cache  *cache.SessionCache
	events *event.Publisher
	locks  *keylock.KeyLock
	log    zerolog.Logger
}

// NewService creates a session service.
func NewService(repo repository.Repository, c *cache.SessionCache, events *event.Publisher, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  c,
		events: events,
		locks:  keylock.New(),
		log:    log,
	}
}

// CreateSessionInput carries the parameters for CreateSession.
type CreateSessionInput struct {
	UserID       string
	AgentID      string
	Title        string
	Config       *types.SessionConfig
	SystemPrompt string
	Metadata     map[string]any
}

// CreateSession builds a session in state created, optionally seeds a system
// message, persists and caches it, and invalidates the user's listing.
func (s *Service) CreateSession(ctx context.Context, input CreateSessionInput) (*types.Session, error) {
	now := time.Now()
	config := types.DefaultSessionConfig()
	if input.Config != nil {
		config = *input.Config
	}

	session := &types.Session{
		ID:        generateID(),
		UserID:    input.UserID,
		AgentID:   input.AgentID,
		Status:    types.SessionCreated,
		Config:    config,
		Title:     input.Title,
		Metadata:  input.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(config.TTL),
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if input.SystemPrompt != "" {
		msg := &types.Message{
			ID:        generateID(),
			SessionID: session.ID,
			Role:      types.RoleSystem,
			Content:   input.SystemPrompt,
			CreatedAt: now,
		}
		if err := s.repo.AddMessage(ctx, msg); err != nil {
			return nil, fmt.Errorf("failed to add system message: %w", err)
		}
		session.MessageCount = 1
		if err := s.repo.Update(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to update session: %w", err)
		}
	}

	if err := s.cache.SetSession(ctx, session); err != nil {
		return nil, err
	}
	if err := s.cache.InvalidateUserSessions(ctx, session.UserID); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("sessionID", session.ID).
		Str("userID", session.UserID).
		Str("agentID", session.AgentID).
		Msg("session created")

	s.events.SessionCreated(session)
	return session, nil
}

// GetSession returns a session, cache-first. A cache miss reads the
// repository and repopulates the cache.
func (s *Service) GetSession(ctx context.Context, id string) (*types.Session, error) {
	cached, err := s.cache.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	session, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// ActivateSession transitions a session to active. It fails with ErrExpired
// past the session deadline and ErrNotActive once the session has ended.
func (s *Service) ActivateSession(ctx context.Context, id string) (*types.Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.IsExpired() {
		return nil, ErrExpired
	}
	if !session.Status.CanTransitionTo(types.SessionActive) {
		return nil, ErrNotActive
	}

	session.Status = types.SessionActive
	if err := s.saveSession(ctx, session); err != nil {
		return nil, err
	}

	s.events.SessionActivated(session)
	return session, nil
}

// SuspendSession transitions an active session to suspended.
func (s *Service) SuspendSession(ctx context.Context, id string) (*types.Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != types.SessionActive {
		return nil, ErrNotActive
	}

	session.Status = types.SessionSuspended
	if err := s.saveSession(ctx, session); err != nil {
		return nil, err
	}

	s.events.SessionSuspended(session)
	return session, nil
}

// ResumeSession transitions a suspended session back to active. It fails
// with ErrExpired past the session deadline.
func (s *Service) ResumeSession(ctx context.Context, id string) (*types.Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.IsExpired() {
		return nil, ErrExpired
	}
	if session.Status != types.SessionSuspended {
		return nil, ErrNotActive
	}

	session.Status = types.SessionActive
	if err := s.saveSession(ctx, session); err != nil {
		return nil, err
	}

	s.events.SessionResumed(session)
	return session, nil
}

// EndSession transitions a session to the terminal ended state, evicts it
// from the cache, and invalidates the user's listing. There is no
// precondition state check: a repeated call re-emits the lifecycle event.
func (s *Service) EndSession(ctx context.Context, id string, reason string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}

	session.Status = types.SessionEnded
	session.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if err := s.cache.DeleteSession(ctx, id); err != nil {
		return err
	}
	if err := s.cache.InvalidateUserSessions(ctx, session.UserID); err != nil {
		return err
	}

	s.log.Info().Str("sessionID", id).Str("reason", reason).Msg("session ended")
	s.events.SessionEnded(session, reason)
	return nil
}

// SendMessage appends a user message to an active session.
func (s *Service) SendMessage(ctx context.Context, sessionID, content string, attachments []types.Attachment, metadata map[string]any) (*types.Message, error) {
	return s.appendMessage(ctx, sessionID, types.RoleUser, content, attachments, nil, metadata)
}

// AddAssistantMessage appends an assistant message, optionally carrying the
// tool calls the agent wants to run next.
func (s *Service) AddAssistantMessage(ctx context.Context, sessionID, content string, toolCalls []types.ToolCall, metadata map[string]any) (*types.Message, error) {
	return s.appendMessage(ctx, sessionID, types.RoleAssistant, content, nil, toolCalls, metadata)
}

func (s *Service) appendMessage(ctx context.Context, sessionID string, role types.Role, content string, attachments []types.Attachment, toolCalls []types.ToolCall, metadata map[string]any) (*types.Message, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != types.SessionActive {
		return nil, ErrNotActive
	}
	if session.MessageCount >= session.Config.MaxMessages {
		return nil, ErrMessageLimit
	}
	for _, a := range attachments {
		if a.Size > session.Config.MaxAttachmentSize {
			return nil, ErrAttachmentTooLarge
		}
	}

	msg := &types.Message{
		ID:          generateID(),
		SessionID:   sessionID,
		Role:        role,
		Content:     content,
		Attachments: attachments,
		ToolCalls:   toolCalls,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	}

	if err := s.repo.AddMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}

	session.MessageCount++
	if err := s.saveSession(ctx, session); err != nil {
		return nil, err
	}
	if err := s.cache.AppendMessage(ctx, sessionID, msg); err != nil {
		return nil, err
	}

	if role == types.RoleUser {
		s.events.MessageSent(msg)
	} else {
		s.events.MessageReceived(msg)
	}
	for _, tc := range toolCalls {
		s.events.ToolCallRequested(sessionID, "", tc)
	}

	return msg, nil
}

// MessagePage is one page of a session's message history, in chronological
// order.
type MessagePage struct {
	Messages   []*types.Message `json:"messages"`
	HasMore    bool             `json:"has_more"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// GetMessages returns a page of messages. Without a cursor the read is
// cache-first over the full history; with a cursor it always goes to the
// repository. Pagination over-fetches by one to learn whether an older page
// exists; the cursor is the first id of the returned page.
func (s *Service) GetMessages(ctx context.Context, sessionID string, limit int, beforeID string) (*MessagePage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	if beforeID == "" {
		cached, err := s.cache.GetMessages(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if cached == nil {
			full, err := s.repo.GetMessages(ctx, sessionID, 0, "")
			if err != nil {
				return nil, err
			}
			reverse(full)
			if err := s.cache.SetMessages(ctx, sessionID, full); err != nil {
				return nil, err
			}
			cached = full
		}
		return pageFromHistory(cached, limit), nil
	}

	newestFirst, err := s.repo.GetMessages(ctx, sessionID, limit+1, beforeID)
	if err != nil {
		return nil, err
	}

	hasMore := len(newestFirst) > limit
	if hasMore {
		newestFirst = newestFirst[:limit]
	}
	reverse(newestFirst)

	page := &MessagePage{Messages: newestFirst, HasMore: hasMore}
	if len(page.Messages) > 0 {
		page.NextCursor = page.Messages[0].ID
	}
	return page, nil
}

// pageFromHistory takes the newest page from a chronological history slice.
func pageFromHistory(history []*types.Message, limit int) *MessagePage {
	page := &MessagePage{}
	if len(history) > limit {
		page.HasMore = true
		history = history[len(history)-limit:]
	}
	page.Messages = history
	if len(page.Messages) > 0 {
		page.NextCursor = page.Messages[0].ID
	}
	return page
}

// ListSessions returns a user's sessions. The unfiltered first page is
// cached; filtered or offset reads go to the repository.
func (s *Service) ListSessions(ctx context.Context, userID string, status *types.SessionStatus, limit, offset int) ([]*types.Session, error) {
	cacheable := status == nil && offset == 0

	if cacheable {
		cached, err := s.cache.GetUserSessions(ctx, userID)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			if limit > 0 && len(cached) > limit {
				cached = cached[:limit]
			}
			return cached, nil
		}
	}

	sessions, err := s.repo.ListByUser(ctx, userID, status, limit, offset)
	if err != nil {
		return nil, err
	}

	// Only an unbounded read may prime the cache: a limit-truncated result
	// must never be stored as the user's full listing.
	if cacheable && limit <= 0 {
		if err := s.cache.SetUserSessions(ctx, userID, sessions); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

// CountSessions returns how many sessions a user owns.
func (s *Service) CountSessions(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountByUser(ctx, userID)
}

// ApproveToolCall emits the approval outcome for a tool call. The approval
// workflow itself lives in the approval manager; this never blocks on a
// human response.
func (s *Service) ApproveToolCall(ctx context.Context, sessionID, approvalID, approvedBy, feedback string) {
	s.events.Publish(event.ApprovalResolved, event.ApprovalResolvedData{
		ApprovalID: approvalID,
		SessionID:  sessionID,
		Approved:   true,
		ResolvedBy: approvedBy,
		Feedback:   feedback,
	})
}

// RejectToolCall emits the rejection outcome for a tool call.
func (s *Service) RejectToolCall(ctx context.Context, sessionID, approvalID, rejectedBy, feedback string) {
	s.events.Publish(event.ApprovalResolved, event.ApprovalResolvedData{
		ApprovalID: approvalID,
		SessionID:  sessionID,
		Approved:   false,
		ResolvedBy: rejectedBy,
		Feedback:   feedback,
	})
}

// saveSession persists and re-caches a mutated session.
func (s *Service) saveSession(ctx context.Context, session *types.Session) error {
	session.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return s.cache.SetSession(ctx, session)
}

func reverse(messages []*types.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}

// generateID generates a new ULID.
func generateID() string {
	return ulid.Make().String()
}
