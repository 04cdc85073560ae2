// Package types provides the core data types for the agentgate server.
package types

import "time"

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

const (
	SessionCreated   SessionStatus = "created"
	SessionActive    SessionStatus = "active"
	SessionSuspended SessionStatus = "suspended"
	SessionEnded     SessionStatus = "ended"
)

// sessionTransitions is the single source of truth for allowed lifecycle
// transitions. Ended is terminal.
var sessionTransitions = map[SessionStatus]map[SessionStatus]bool{
	SessionCreated:   {SessionActive: true, SessionEnded: true},
	SessionActive:    {SessionActive: true, SessionSuspended: true, SessionEnded: true},
	SessionSuspended: {SessionActive: true, SessionEnded: true},
	SessionEnded:     {},
}

// CanTransitionTo reports whether a transition from s to next is allowed.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	return sessionTransitions[s][next]
}

// Terminal reports whether the status permits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionEnded
}

// SessionConfig holds per-session limits.
type SessionConfig struct {
	MaxMessages       int           `json:"max_messages"`
	MaxAttachmentSize int64         `json:"max_attachment_size"`
	TTL               time.Duration `json:"ttl"`
}

// DefaultSessionConfig returns the default session limits.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxMessages:       100,
		MaxAttachmentSize: 10 << 20,
		TTL:               time.Hour,
	}
}

// Session represents a conversation session between a user and an agent.
type Session struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	AgentID      string         `json:"agent_id"`
	Status       SessionStatus  `json:"status"`
	Config       SessionConfig  `json:"config"`
	Title        string         `json:"title,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	MessageCount int            `json:"message_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	ExpiresAt    time.Time      `json:"expires_at"`

	// Messages is the hydrated message list. It is populated on demand and
	// not authoritative for MessageCount.
	Messages []Message `json:"messages,omitempty"`
}

// IsExpired reports whether the session is past its deadline, independent of
// its status.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
