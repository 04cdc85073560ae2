package types

import "time"

// ApprovalStatus represents the state of an approval request. Any status
// other than pending is terminal.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalExpired  ApprovalStatus = "expired"
)

// Terminal reports whether the status permits no further resolution.
func (s ApprovalStatus) Terminal() bool {
	return s != ApprovalPending
}

// ApprovalRequest is a time-boxed record gating execution of a side-effecting
// tool call pending a human decision.
type ApprovalRequest struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	ExecutionID string         `json:"execution_id"`
	ToolCall    ToolCall       `json:"tool_call"`
	Status      ApprovalStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy  string         `json:"resolved_by,omitempty"`
	Feedback    string         `json:"feedback,omitempty"`
}

// IsExpired reports whether the request is past its logical deadline. Expiry
// is derived: a pending request whose deadline has passed counts as expired
// even if that state has not been persisted yet.
func (r *ApprovalRequest) IsExpired() bool {
	if r.Status == ApprovalExpired {
		return true
	}
	return r.Status == ApprovalPending && time.Now().After(r.ExpiresAt)
}
