package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    SessionStatus
		to      SessionStatus
		allowed bool
	}{
		{"created to active", SessionCreated, SessionActive, true},
		{"created to ended", SessionCreated, SessionEnded, true},
		{"created to suspended", SessionCreated, SessionSuspended, false},
		{"active to suspended", SessionActive, SessionSuspended, true},
		{"active to active", SessionActive, SessionActive, true},
		{"suspended to active", SessionSuspended, SessionActive, true},
		{"suspended to suspended", SessionSuspended, SessionSuspended, false},
		{"ended to active", SessionEnded, SessionActive, false},
		{"ended to ended", SessionEnded, SessionEnded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSessionStatusTerminal(t *testing.T) {
	assert.True(t, SessionEnded.Terminal())
	assert.False(t, SessionCreated.Terminal())
	assert.False(t, SessionActive.Terminal())
	assert.False(t, SessionSuspended.Terminal())
}

func TestSessionIsExpired(t *testing.T) {
	s := &Session{Status: SessionActive, ExpiresAt: time.Now().Add(time.Hour)}
	assert.False(t, s.IsExpired())

	// Expiry is independent of status.
	for _, status := range []SessionStatus{SessionCreated, SessionActive, SessionSuspended, SessionEnded} {
		s := &Session{Status: status, ExpiresAt: time.Now().Add(-time.Second)}
		assert.True(t, s.IsExpired(), "status %s", status)
	}
}

func TestApprovalStatusTerminal(t *testing.T) {
	assert.False(t, ApprovalPending.Terminal())
	assert.True(t, ApprovalApproved.Terminal())
	assert.True(t, ApprovalRejected.Terminal())
	assert.True(t, ApprovalExpired.Terminal())
}

func TestApprovalIsExpired(t *testing.T) {
	now := time.Now()

	pending := &ApprovalRequest{Status: ApprovalPending, ExpiresAt: now.Add(time.Minute)}
	assert.False(t, pending.IsExpired())

	// Derived expiry: pending past the deadline counts even before it is
	// persisted as expired.
	overdue := &ApprovalRequest{Status: ApprovalPending, ExpiresAt: now.Add(-time.Second)}
	assert.True(t, overdue.IsExpired())

	expired := &ApprovalRequest{Status: ApprovalExpired, ExpiresAt: now.Add(time.Minute)}
	assert.True(t, expired.IsExpired())

	// Resolved requests never report expired, even past the deadline.
	approved := &ApprovalRequest{Status: ApprovalApproved, ExpiresAt: now.Add(-time.Second)}
	assert.False(t, approved.IsExpired())
}
