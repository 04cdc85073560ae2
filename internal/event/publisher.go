package event

import "github.com/agentgate-ai/agentgate/pkg/types"

// Publisher is the outward-facing event capability used by the session
// service and the approval manager. It wraps a Bus with named convenience
// calls, one per semantic occurrence.
type Publisher struct {
	bus *Bus
}

// NewPublisher creates a publisher over the given bus.
func NewPublisher(bus *Bus) *Publisher {
	return &Publisher{bus: bus}
}

// Publish publishes a raw event.
func (p *Publisher) Publish(eventType EventType, data any) {
	p.bus.Publish(Event{Type: eventType, Data: data})
}

// SessionCreated publishes a session.created event.
func (p *Publisher) SessionCreated(session *types.Session) {
	p.Publish(SessionCreated, SessionData{Info: session})
}

// SessionActivated publishes a session.activated event.
func (p *Publisher) SessionActivated(session *types.Session) {
	p.Publish(SessionActivated, SessionData{Info: session})
}

// SessionSuspended publishes a session.suspended event.
func (p *Publisher) SessionSuspended(session *types.Session) {
	p.Publish(SessionSuspended, SessionData{Info: session})
}

// SessionResumed publishes a session.resumed event.
func (p *Publisher) SessionResumed(session *types.Session) {
	p.Publish(SessionResumed, SessionData{Info: session})
}

// SessionEnded publishes a session.ended event.
func (p *Publisher) SessionEnded(session *types.Session, reason string) {
	p.Publish(SessionEnded, SessionEndedData{Info: session, Reason: reason})
}

// MessageSent publishes a message.sent event (user to agent).
func (p *Publisher) MessageSent(msg *types.Message) {
	p.Publish(MessageSent, MessageData{Info: msg})
}

// MessageReceived publishes a message.received event (agent to user).
func (p *Publisher) MessageReceived(msg *types.Message) {
	p.Publish(MessageReceived, MessageData{Info: msg})
}

// ToolCallRequested publishes a tool_call.requested event.
func (p *Publisher) ToolCallRequested(sessionID, executionID string, tc types.ToolCall) {
	p.Publish(ToolCallRequested, ToolCallData{SessionID: sessionID, ExecutionID: executionID, ToolCall: tc})
}

// ApprovalRequired publishes an approval.required event.
func (p *Publisher) ApprovalRequired(req *types.ApprovalRequest) {
	p.Publish(ApprovalRequired, ApprovalRequiredData{Info: req})
}

// ApprovalResolved publishes an approval.resolved event.
func (p *Publisher) ApprovalResolved(req *types.ApprovalRequest, approved bool) {
	p.Publish(ApprovalResolved, ApprovalResolvedData{
		ApprovalID: req.ID,
		SessionID:  req.SessionID,
		Approved:   approved,
		ResolvedBy: req.ResolvedBy,
		Feedback:   req.Feedback,
	})
}
