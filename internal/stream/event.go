// Package stream defines the typed execution-event protocol surfaced to the
// streaming transport: one event per semantic occurrence, serialized as a
// kind-tagged JSON object or an SSE frame.
package stream

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/agentgate-ai/agentgate/pkg/types"
)

// Kind identifies an execution event variant.
type Kind string

const (
	KindStarted          Kind = "started"
	KindContent          Kind = "content"
	KindContentDelta     Kind = "content_delta"
	KindToolCall         Kind = "tool_call"
	KindToolResult       Kind = "tool_result"
	KindApprovalRequired Kind = "approval_required"
	KindApprovalResponse Kind = "approval_response"
	KindDone             Kind = "done"
	KindError            Kind = "error"
	KindHeartbeat        Kind = "heartbeat"
)

// Usage is the token accounting carried by done events. TotalTokens is
// always the sum of the prompt and completion counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Event is one execution event. Events are immutable once constructed and
// carry no sequence number; ordering is transport-delivery order.
type Event struct {
	ID          string
	Kind        Kind
	Timestamp   time.Time
	SessionID   string
	ExecutionID string
	Metadata    map[string]any

	// Kind-specific payload fields. Only the fields belonging to Kind are
	// serialized.
	Content      string
	Delta        string
	ToolCall     *types.ToolCall
	ToolCallID   string
	Result       any
	ApprovalID   string
	Approved     bool
	ResolvedBy   string
	Feedback     string
	FinishReason string
	Usage        *Usage
	ErrorMessage string
	ErrorCode    string
}

func newEvent(kind Kind, sessionID, executionID string) *Event {
	return &Event{
		ID:          ulid.Make().String(),
		Kind:        kind,
		Timestamp:   time.Now().UTC(),
		SessionID:   sessionID,
		ExecutionID: executionID,
	}
}

// WithMetadata attaches free-form metadata and returns the event.
func (e *Event) WithMetadata(metadata map[string]any) *Event {
	e.Metadata = metadata
	return e
}

// NewStarted creates a started event.
func NewStarted(sessionID, executionID string) *Event {
	return newEvent(KindStarted, sessionID, executionID)
}

// NewContent creates a full-content event.
func NewContent(sessionID, executionID, content string) *Event {
	e := newEvent(KindContent, sessionID, executionID)
	e.Content = content
	return e
}

// NewContentDelta creates a partial-content event.
func NewContentDelta(sessionID, executionID, delta string) *Event {
	e := newEvent(KindContentDelta, sessionID, executionID)
	e.Delta = delta
	return e
}

// NewToolCall creates a tool_call event.
func NewToolCall(sessionID, executionID string, tc types.ToolCall) *Event {
	e := newEvent(KindToolCall, sessionID, executionID)
	e.ToolCall = &tc
	return e
}

// NewToolResult creates a tool_result event.
func NewToolResult(sessionID, executionID, toolCallID string, result any) *Event {
	e := newEvent(KindToolResult, sessionID, executionID)
	e.ToolCallID = toolCallID
	e.Result = result
	return e
}

// NewApprovalRequired creates an approval_required event from an intercepted
// request. The embedded tool call always reports requires_approval.
func NewApprovalRequired(req *types.ApprovalRequest) *Event {
	e := newEvent(KindApprovalRequired, req.SessionID, req.ExecutionID)
	tc := req.ToolCall
	tc.RequiresApproval = true
	e.ApprovalID = req.ID
	e.ToolCall = &tc
	return e
}

// NewApprovalResponse creates an approval_response event.
func NewApprovalResponse(sessionID, executionID, approvalID string, approved bool, resolvedBy, feedback string) *Event {
	e := newEvent(KindApprovalResponse, sessionID, executionID)
	e.ApprovalID = approvalID
	e.Approved = approved
	e.ResolvedBy = resolvedBy
	e.Feedback = feedback
	return e
}

// NewDone creates a terminal done event. The usage total is normalized to
// prompt + completion.
func NewDone(sessionID, executionID, finishReason string, usage Usage) *Event {
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	e := newEvent(KindDone, sessionID, executionID)
	e.FinishReason = finishReason
	e.Usage = &usage
	return e
}

// NewError creates a terminal error event.
func NewError(sessionID, executionID, code, message string) *Event {
	e := newEvent(KindError, sessionID, executionID)
	e.ErrorCode = code
	e.ErrorMessage = message
	return e
}

// NewHeartbeat creates a transport keepalive event. Heartbeats carry no
// state-machine meaning.
func NewHeartbeat(sessionID, executionID string) *Event {
	return newEvent(KindHeartbeat, sessionID, executionID)
}
