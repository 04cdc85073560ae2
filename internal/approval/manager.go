// Package approval provides the tool-call approval workflow: time-boxed
// requests gating side-effecting tool execution on a human decision, backed
// by the key-value store capability with per-entry TTL.
package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/agentgate-ai/agentgate/internal/event"
	"github.com/agentgate-ai/agentgate/internal/keylock"
	"github.com/agentgate-ai/agentgate/internal/store"
	"github.com/agentgate-ai/agentgate/pkg/types"
)

const (
	// DefaultTimeout is the logical approval deadline when none is given.
	DefaultTimeout = 5 * time.Minute

	// resolvedTTL keeps resolved and expired records around for audit
	// visibility. The store's physical TTL always outlives the logical
	// deadline, never the reverse.
	resolvedTTL = time.Hour

	// indexTTL is the minimum lifetime of a session's approval id index.
	indexTTL = time.Hour
)

// Typed failures the caller must branch on.
var (
	// ErrNotFound is returned when an approval request does not exist.
	ErrNotFound = errors.New("approval request not found")

	// ErrExpired is returned when resolving a request past its deadline.
	ErrExpired = errors.New("approval request expired")

	// ErrAlreadyResolved is returned when resolving a request that has
	// already left pending.
	ErrAlreadyResolved = errors.New("approval request already resolved")
)

// Manager is the approval workflow engine. All state lives in the key-value
// store; resolution is serialized per approval id so a request leaves
// pending at most once.
type Manager struct {
	store  store.Store
	events *event.Publisher
	locks  *keylock.KeyLock
	log    zerolog.Logger
}

// NewManager creates an approval manager over the given store.
func NewManager(s store.Store, events *event.Publisher, log zerolog.Logger) *Manager {
	return &Manager{
		store:  s,
		events: events,
		locks:  keylock.New(),
		log:    log,
	}
}

func approvalKey(id string) string {
	return "approval:" + id
}

func sessionApprovalsKey(sessionID string) string {
	return "session:approvals:" + sessionID
}

// CreateApprovalRequest intercepts a tool call and writes a pending request
// with the given logical timeout. The approval record and the session's id
// index are two independent writes; there is no cross-key transaction.
func (m *Manager) CreateApprovalRequest(ctx context.Context, sessionID, executionID string, tc types.ToolCall, timeout time.Duration) (*types.ApprovalRequest, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	now := time.Now()
	req := &types.ApprovalRequest{
		ID:          ulid.Make().String(),
		SessionID:   sessionID,
		ExecutionID: executionID,
		ToolCall:    tc,
		Status:      types.ApprovalPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(timeout),
	}

	if err := m.persist(ctx, req, timeout); err != nil {
		return nil, err
	}

	ids, err := m.readIndex(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ttl := indexTTL
	if timeout > ttl {
		ttl = timeout
	}
	if err := m.writeIndex(ctx, sessionID, append(ids, req.ID), ttl); err != nil {
		return nil, err
	}

	m.log.Info().
		Str("approvalID", req.ID).
		Str("sessionID", sessionID).
		Str("tool", tc.Name).
		Dur("timeout", timeout).
		Msg("approval request created")

	m.events.ApprovalRequired(req)
	return req, nil
}

// GetApprovalRequest returns a request by id, or nil when absent. Corrupt
// records are deleted and read as absent. A pending request past its logical
// deadline is promoted to expired and persisted before being returned:
// expiry is detected lazily on read, not by a background timer.
func (m *Manager) GetApprovalRequest(ctx context.Context, id string) (*types.ApprovalRequest, error) {
	data, err := m.store.Get(ctx, approvalKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var req types.ApprovalRequest
	if err := json.Unmarshal(data, &req); err != nil {
		m.log.Warn().Str("approvalID", id).Err(err).Msg("dropping corrupt approval record")
		m.store.Delete(ctx, approvalKey(id))
		return nil, nil
	}

	if req.Status == types.ApprovalPending && time.Now().After(req.ExpiresAt) {
		req.Status = types.ApprovalExpired
		if err := m.persist(ctx, &req, resolvedTTL); err != nil {
			return nil, err
		}
	}

	return &req, nil
}

// ResolveApproval records a human decision. It fails with ErrNotFound when
// the request is absent, ErrExpired past the deadline, and
// ErrAlreadyResolved for any other non-pending state. The first resolution
// wins; a second call never overwrites it.
func (m *Manager) ResolveApproval(ctx context.Context, id string, approved bool, resolvedBy, feedback string) (*types.ApprovalRequest, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	req, err := m.GetApprovalRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrNotFound
	}
	if req.Status == types.ApprovalExpired {
		return nil, ErrExpired
	}
	if req.Status != types.ApprovalPending {
		return nil, ErrAlreadyResolved
	}

	now := time.Now()
	if approved {
		req.Status = types.ApprovalApproved
	} else {
		req.Status = types.ApprovalRejected
	}
	req.ResolvedAt = &now
	req.ResolvedBy = resolvedBy
	req.Feedback = feedback

	if err := m.persist(ctx, req, resolvedTTL); err != nil {
		return nil, err
	}

	m.log.Info().
		Str("approvalID", id).
		Bool("approved", approved).
		Str("resolvedBy", resolvedBy).
		Msg("approval request resolved")

	m.events.ApprovalResolved(req, approved)
	return req, nil
}

// Approve resolves a request in the affirmative.
func (m *Manager) Approve(ctx context.Context, id, resolvedBy, feedback string) (*types.ApprovalRequest, error) {
	return m.ResolveApproval(ctx, id, true, resolvedBy, feedback)
}

// Reject resolves a request in the negative.
func (m *Manager) Reject(ctx context.Context, id, resolvedBy, feedback string) (*types.ApprovalRequest, error) {
	return m.ResolveApproval(ctx, id, false, resolvedBy, feedback)
}

// GetPendingApprovals returns a session's still-pending requests.
func (m *Manager) GetPendingApprovals(ctx context.Context, sessionID string) ([]*types.ApprovalRequest, error) {
	return m.GetAllApprovals(ctx, sessionID, false)
}

// GetAllApprovals returns a session's requests, fetched and filtered one by
// one; there is no atomic snapshot across entries.
func (m *Manager) GetAllApprovals(ctx context.Context, sessionID string, includeResolved bool) ([]*types.ApprovalRequest, error) {
	ids, err := m.readIndex(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var requests []*types.ApprovalRequest
	for _, id := range ids {
		req, err := m.GetApprovalRequest(ctx, id)
		if err != nil {
			return nil, err
		}
		if req == nil {
			continue
		}
		if !includeResolved && req.Status != types.ApprovalPending {
			continue
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// CancelApproval withdraws a pending request, marking it expired with the
// canceller and reason recorded. It reports false for any other state or
// when the request is absent.
func (m *Manager) CancelApproval(ctx context.Context, id, cancelledBy, reason string) (bool, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	req, err := m.GetApprovalRequest(ctx, id)
	if err != nil {
		return false, err
	}
	if req == nil || req.Status != types.ApprovalPending {
		return false, nil
	}

	now := time.Now()
	req.Status = types.ApprovalExpired
	req.ResolvedAt = &now
	req.ResolvedBy = cancelledBy
	req.Feedback = reason

	if err := m.persist(ctx, req, resolvedTTL); err != nil {
		return false, err
	}

	m.log.Info().Str("approvalID", id).Str("cancelledBy", cancelledBy).Msg("approval request cancelled")
	m.events.ApprovalResolved(req, false)
	return true, nil
}

// CleanupExpired deletes backing-store entries for expired requests. With a
// session id it walks that session's index and also drops index entries
// whose records are gone; with an empty id it scans every approval key in
// the store.
func (m *Manager) CleanupExpired(ctx context.Context, sessionID string) (int, error) {
	if sessionID != "" {
		return m.cleanupSession(ctx, sessionID)
	}

	keys, err := m.store.Keys(ctx, "approval:*")
	if err != nil {
		return 0, err
	}

	count := 0
	for _, key := range keys {
		removed, err := m.deleteIfExpired(ctx, key)
		if err != nil {
			return count, err
		}
		if removed {
			count++
		}
	}
	return count, nil
}

func (m *Manager) cleanupSession(ctx context.Context, sessionID string) (int, error) {
	ids, err := m.readIndex(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	count := 0
	var surviving []string
	for _, id := range ids {
		data, err := m.store.Get(ctx, approvalKey(id))
		if errors.Is(err, store.ErrNotFound) {
			// Physically expired or never written; reconcile the index.
			continue
		}
		if err != nil {
			return count, err
		}

		var req types.ApprovalRequest
		if err := json.Unmarshal(data, &req); err != nil {
			m.store.Delete(ctx, approvalKey(id))
			continue
		}
		if req.IsExpired() {
			if _, err := m.store.Delete(ctx, approvalKey(id)); err != nil {
				return count, err
			}
			count++
			continue
		}
		surviving = append(surviving, id)
	}

	if err := m.writeIndex(ctx, sessionID, surviving, indexTTL); err != nil {
		return count, err
	}
	return count, nil
}

func (m *Manager) deleteIfExpired(ctx context.Context, key string) (bool, error) {
	data, err := m.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var req types.ApprovalRequest
	if err := json.Unmarshal(data, &req); err != nil {
		m.store.Delete(ctx, key)
		return false, nil
	}
	if !req.IsExpired() {
		return false, nil
	}

	if _, err := m.store.Delete(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

// persist writes an approval record with the given physical TTL.
func (m *Manager) persist(ctx context.Context, req *types.ApprovalRequest, ttl time.Duration) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal approval request: %w", err)
	}
	return m.store.SetWithTTL(ctx, approvalKey(req.ID), data, ttl)
}

// readIndex returns a session's approval id list. Corrupt indexes are
// dropped and read as empty.
func (m *Manager) readIndex(ctx context.Context, sessionID string) ([]string, error) {
	data, err := m.store.Get(ctx, sessionApprovalsKey(sessionID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		m.log.Warn().Str("sessionID", sessionID).Err(err).Msg("dropping corrupt approval index")
		m.store.Delete(ctx, sessionApprovalsKey(sessionID))
		return nil, nil
	}
	return ids, nil
}

func (m *Manager) writeIndex(ctx context.Context, sessionID string, ids []string, ttl time.Duration) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal approval index: %w", err)
	}
	return m.store.SetWithTTL(ctx, sessionApprovalsKey(sessionID), data, ttl)
}
