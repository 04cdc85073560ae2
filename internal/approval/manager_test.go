package approval

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentgate-ai/agentgate/internal/event"
	"github.com/agentgate-ai/agentgate/internal/store"
	"github.com/agentgate-ai/agentgate/pkg/types"
)

func newTestManager(t *testing.T) (*Manager, *store.MemoryStore, *event.Bus) {
	t.Helper()
	s := store.NewMemoryStore()
	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })
	return NewManager(s, event.NewPublisher(bus), zerolog.Nop()), s, bus
}

func testToolCall() types.ToolCall {
	return types.ToolCall{
		ID:        "call-1",
		Name:      "delete_file",
		Arguments: map[string]any{"path": "/tmp/x"},
	}
}

func TestCreateAndGetApprovalRequest(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	req, err := m.CreateApprovalRequest(ctx, "sess-1", "exec-1", testToolCall(), time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, types.ApprovalPending, req.Status)
	assert.WithinDuration(t, req.CreatedAt.Add(time.Minute), req.ExpiresAt, time.Second)

	got, err := m.GetApprovalRequest(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, "delete_file", got.ToolCall.Name)
}

func TestCreateApprovalRequestDefaultTimeout(t *testing.T) {
	m, _, _ := newTestManager(t)

	req, err := m.CreateApprovalRequest(context.Background(), "sess-1", "exec-1", testToolCall(), 0)
	require.NoError(t, err)
	assert.WithinDuration(t, req.CreatedAt.Add(DefaultTimeout), req.ExpiresAt, time.Second)
}

func TestGetApprovalRequestAbsent(t *testing.T) {
	m, _, _ := newTestManager(t)

	req, err := m.GetApprovalRequest(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestGetApprovalRequestDropsCorruptRecord(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, s.SetWithTTL(ctx, approvalKey("bad"), []byte("{not json"), time.Minute))

	req, err := m.GetApprovalRequest(ctx, "bad")
	require.NoError(t, err)
	assert.Nil(t, req)

	_, err = s.Get(ctx, approvalKey("bad"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetApprovalRequestLazyExpiry(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()

	// Pending record whose logical deadline has already passed but whose
	// physical TTL has not: expiry must be detected and persisted on read.
	req := &types.ApprovalRequest{
		ID:        "late",
		SessionID: "sess-1",
		ToolCall:  testToolCall(),
		Status:    types.ApprovalPending,
		CreatedAt: time.Now().Add(-2 * time.Second),
		ExpiresAt: time.Now().Add(-time.Second),
	}
	require.NoError(t, m.persist(ctx, req, time.Minute))

	got, err := m.GetApprovalRequest(ctx, "late")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.ApprovalExpired, got.Status)

	// The promotion is written back, not just computed in memory.
	data, err := s.Get(ctx, approvalKey("late"))
	require.NoError(t, err)
	assert.Contains(t, string(data), string(types.ApprovalExpired))
}

func TestResolveApproval(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	req, err := m.CreateApprovalRequest(ctx, "sess-1", "exec-1", testToolCall(), time.Minute)
	require.NoError(t, err)

	resolved, err := m.Approve(ctx, req.ID, "alice", "looks safe")
	require.NoError(t, err)
	assert.Equal(t, types.ApprovalApproved, resolved.Status)
	assert.Equal(t, "alice", resolved.ResolvedBy)
	assert.Equal(t, "looks safe", resolved.Feedback)
	require.NotNil(t, resolved.ResolvedAt)

	got, err := m.GetApprovalRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ApprovalApproved, got.Status)
}

func TestResolveApprovalAtMostOnce(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	req, err := m.CreateApprovalRequest(ctx, "sess-1", "exec-1", testToolCall(), time.Minute)
	require.NoError(t, err)

	_, err = m.Reject(ctx, req.ID, "alice", "too risky")
	require.NoError(t, err)

	_, err = m.Approve(ctx, req.ID, "bob", "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	// The first resolution survives untouched.
	got, err := m.GetApprovalRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ApprovalRejected, got.Status)
	assert.Equal(t, "alice", got.ResolvedBy)
	assert.Equal(t, "too risky", got.Feedback)
}

func TestResolveApprovalPastDeadline(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	req := &types.ApprovalRequest{
		ID:        "late",
		SessionID: "sess-1",
		ToolCall:  testToolCall(),
		Status:    types.ApprovalPending,
		CreatedAt: time.Now().Add(-2 * time.Second),
		ExpiresAt: time.Now().Add(-time.Second),
	}
	require.NoError(t, m.persist(ctx, req, time.Minute))

	// Past the deadline the failure is expiry, never already-resolved.
	_, err := m.Approve(ctx, "late", "alice", "")
	assert.ErrorIs(t, err, ErrExpired)

	_, err = m.Approve(ctx, "late", "alice", "")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestResolveApprovalAbsent(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Approve(context.Background(), "nope", "alice", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveApprovalPublishesEvent(t *testing.T) {
	m, _, bus := newTestManager(t)
	ctx := context.Background()

	var resolved event.ApprovalResolvedData
	done := make(chan struct{})
	bus.Subscribe(event.ApprovalResolved, func(e event.Event) {
		resolved = e.Data.(event.ApprovalResolvedData)
		close(done)
	})

	req, err := m.CreateApprovalRequest(ctx, "sess-1", "exec-1", testToolCall(), time.Minute)
	require.NoError(t, err)

	_, err = m.Approve(ctx, req.ID, "alice", "ok")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("approval.resolved event not published")
	}
	assert.Equal(t, req.ID, resolved.ApprovalID)
	assert.Equal(t, "sess-1", resolved.SessionID)
	assert.True(t, resolved.Approved)
	assert.Equal(t, "alice", resolved.ResolvedBy)
}

func TestGetPendingApprovals(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.CreateApprovalRequest(ctx, "sess-1", "exec-1", testToolCall(), time.Minute)
	require.NoError(t, err)
	second, err := m.CreateApprovalRequest(ctx, "sess-1", "exec-1", testToolCall(), time.Minute)
	require.NoError(t, err)
	_, err = m.CreateApprovalRequest(ctx, "sess-2", "exec-2", testToolCall(), time.Minute)
	require.NoError(t, err)

	_, err = m.Approve(ctx, first.ID, "alice", "")
	require.NoError(t, err)

	pending, err := m.GetPendingApprovals(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	all, err := m.GetAllApprovals(ctx, "sess-1", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCancelApproval(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	req, err := m.CreateApprovalRequest(ctx, "sess-1", "exec-1", testToolCall(), time.Minute)
	require.NoError(t, err)

	cancelled, err := m.CancelApproval(ctx, req.ID, "alice", "no longer needed")
	require.NoError(t, err)
	assert.True(t, cancelled)

	got, err := m.GetApprovalRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ApprovalExpired, got.Status)
	assert.Equal(t, "alice", got.ResolvedBy)
	assert.Equal(t, "no longer needed", got.Feedback)

	// Cancelling twice, or cancelling a resolved request, is a no-op.
	cancelled, err = m.CancelApproval(ctx, req.ID, "bob", "")
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestCancelApprovalResolvedRequest(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	req, err := m.CreateApprovalRequest(ctx, "sess-1", "exec-1", testToolCall(), time.Minute)
	require.NoError(t, err)
	_, err = m.Approve(ctx, req.ID, "alice", "")
	require.NoError(t, err)

	cancelled, err := m.CancelApproval(ctx, req.ID, "bob", "changed my mind")
	require.NoError(t, err)
	assert.False(t, cancelled)

	got, err := m.GetApprovalRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ApprovalApproved, got.Status)
	assert.Equal(t, "alice", got.ResolvedBy)
}

func TestCancelApprovalAbsent(t *testing.T) {
	m, _, _ := newTestManager(t)

	cancelled, err := m.CancelApproval(context.Background(), "nope", "alice", "")
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestCleanupExpiredForSession(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()

	live, err := m.CreateApprovalRequest(ctx, "sess-1", "exec-1", testToolCall(), time.Minute)
	require.NoError(t, err)

	expired := &types.ApprovalRequest{
		ID:        "old",
		SessionID: "sess-1",
		ToolCall:  testToolCall(),
		Status:    types.ApprovalPending,
		CreatedAt: time.Now().Add(-2 * time.Second),
		ExpiresAt: time.Now().Add(-time.Second),
	}
	require.NoError(t, m.persist(ctx, expired, time.Minute))
	ids, err := m.readIndex(ctx, "sess-1")
	require.NoError(t, err)
	require.NoError(t, m.writeIndex(ctx, "sess-1", append(ids, "old"), indexTTL))

	count, err := m.CleanupExpired(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = s.Get(ctx, approvalKey("old"))
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The index is reconciled to the surviving requests.
	ids, err = m.readIndex(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []string{live.ID}, ids)
}

func TestCleanupExpiredAllSessions(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.CreateApprovalRequest(ctx, "sess-1", "exec-1", testToolCall(), time.Minute)
	require.NoError(t, err)

	for _, id := range []string{"old-1", "old-2"} {
		req := &types.ApprovalRequest{
			ID:        id,
			SessionID: "sess-2",
			ToolCall:  testToolCall(),
			Status:    types.ApprovalPending,
			CreatedAt: time.Now().Add(-2 * time.Second),
			ExpiresAt: time.Now().Add(-time.Second),
		}
		require.NoError(t, m.persist(ctx, req, time.Minute))
	}

	count, err := m.CleanupExpired(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = s.Get(ctx, approvalKey("old-1"))
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Get(ctx, approvalKey("old-2"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}
