package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentgate-ai/agentgate/pkg/types"
)

// eventJSON is the wire shape: a flat object tagged by "event" with the
// kind-specific fields alongside the common ones.
type eventJSON struct {
	Event        Kind            `json:"event"`
	ID           string          `json:"id,omitempty"`
	Timestamp    string          `json:"timestamp,omitempty"`
	SessionID    string          `json:"session_id,omitempty"`
	ExecutionID  string          `json:"execution_id,omitempty"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
	Content      string          `json:"content,omitempty"`
	Delta        string          `json:"delta,omitempty"`
	ToolCall     *types.ToolCall `json:"tool_call,omitempty"`
	ToolCallID   string          `json:"tool_call_id,omitempty"`
	Result       any             `json:"result,omitempty"`
	ApprovalID   string          `json:"approval_id,omitempty"`
	Approved     *bool           `json:"approved,omitempty"`
	ResolvedBy   string          `json:"resolved_by,omitempty"`
	Feedback     string          `json:"feedback,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Usage        *Usage          `json:"usage,omitempty"`
	Message      string          `json:"message,omitempty"`
	Code         string          `json:"code,omitempty"`
}

// MarshalJSON serializes the event as a kind-tagged object carrying only the
// fields that belong to its kind.
func (e *Event) MarshalJSON() ([]byte, error) {
	wire := eventJSON{
		Event:       e.Kind,
		ID:          e.ID,
		SessionID:   e.SessionID,
		ExecutionID: e.ExecutionID,
		Metadata:    e.Metadata,
	}
	if !e.Timestamp.IsZero() {
		wire.Timestamp = e.Timestamp.Format(time.RFC3339Nano)
	}

	switch e.Kind {
	case KindStarted, KindHeartbeat:
	case KindContent:
		wire.Content = e.Content
	case KindContentDelta:
		wire.Delta = e.Delta
	case KindToolCall:
		wire.ToolCall = e.ToolCall
	case KindToolResult:
		wire.ToolCallID = e.ToolCallID
		wire.Result = e.Result
	case KindApprovalRequired:
		wire.ApprovalID = e.ApprovalID
		wire.ToolCall = e.ToolCall
	case KindApprovalResponse:
		approved := e.Approved
		wire.ApprovalID = e.ApprovalID
		wire.Approved = &approved
		wire.ResolvedBy = e.ResolvedBy
		wire.Feedback = e.Feedback
	case KindDone:
		wire.FinishReason = e.FinishReason
		wire.Usage = e.Usage
	case KindError:
		wire.Message = e.ErrorMessage
		wire.Code = e.ErrorCode
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}

	return json.Marshal(wire)
}

// UnmarshalJSON reconstructs an event from its wire shape, switching on the
// kind tag to rebuild the nested payload values.
func (e *Event) UnmarshalJSON(data []byte) error {
	var wire eventJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	decoded := Event{
		ID:          wire.ID,
		Kind:        wire.Event,
		SessionID:   wire.SessionID,
		ExecutionID: wire.ExecutionID,
		Metadata:    wire.Metadata,
	}
	if wire.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, wire.Timestamp)
		if err != nil {
			return fmt.Errorf("invalid event timestamp: %w", err)
		}
		decoded.Timestamp = ts
	}

	switch wire.Event {
	case KindStarted, KindHeartbeat:
	case KindContent:
		decoded.Content = wire.Content
	case KindContentDelta:
		decoded.Delta = wire.Delta
	case KindToolCall:
		decoded.ToolCall = wire.ToolCall
	case KindToolResult:
		decoded.ToolCallID = wire.ToolCallID
		decoded.Result = wire.Result
	case KindApprovalRequired:
		decoded.ApprovalID = wire.ApprovalID
		decoded.ToolCall = wire.ToolCall
	case KindApprovalResponse:
		decoded.ApprovalID = wire.ApprovalID
		if wire.Approved != nil {
			decoded.Approved = *wire.Approved
		}
		decoded.ResolvedBy = wire.ResolvedBy
		decoded.Feedback = wire.Feedback
	case KindDone:
		decoded.FinishReason = wire.FinishReason
		decoded.Usage = wire.Usage
	case KindError:
		decoded.ErrorMessage = wire.Message
		decoded.ErrorCode = wire.Code
	default:
		return fmt.Errorf("unknown event kind %q", wire.Event)
	}

	*e = decoded
	return nil
}

// Decode parses a serialized event.
func Decode(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
