package event

import "github.com/agentgate-ai/agentgate/pkg/types"

// SessionData is the data for session lifecycle events.
type SessionData struct {
	Info *types.Session `json:"info"`
}

// SessionEndedData is the data for session.ended events.
type SessionEndedData struct {
	Info   *types.Session `json:"info"`
	Reason string         `json:"reason,omitempty"`
}

// MessageData is the data for message.sent and message.received events.
type MessageData struct {
	Info *types.Message `json:"info"`
}

// ToolCallData is the data for tool_call.requested events.
type ToolCallData struct {
	SessionID   string         `json:"session_id"`
	ExecutionID string         `json:"execution_id,omitempty"`
	ToolCall    types.ToolCall `json:"tool_call"`
}

// ApprovalRequiredData is the data for approval.required events.
type ApprovalRequiredData struct {
	Info *types.ApprovalRequest `json:"info"`
}

// ApprovalResolvedData is the data for approval.resolved events.
type ApprovalResolvedData struct {
	ApprovalID string `json:"approval_id"`
	SessionID  string `json:"session_id"`
	Approved   bool   `json:"approved"`
	ResolvedBy string `json:"resolved_by,omitempty"`
	Feedback   string `json:"feedback,omitempty"`
}
