// Package tool provides the tool framework: the Tool interface agents
// execute against and an in-process registry.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/agentgate-ai/agentgate/pkg/types"
)

// ErrNotRegistered is returned when a tool name is not in the registry.
var ErrNotRegistered = errors.New("tool not registered")

// Tool defines the interface for all tools.
type Tool interface {
	// ID returns the tool identifier.
	ID() string

	// Description returns the tool description.
	Description() string

	// Parameters returns the JSON Schema for tool parameters.
	Parameters() json.RawMessage

	// RequiresApproval reports whether calls to this tool must pass the
	// approval gate before executing.
	RequiresApproval() bool

	// Execute executes the tool with the given input.
	Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// Context provides execution context to tools.
type Context struct {
	SessionID   string
	ExecutionID string
	CallID      string
	Extra       map[string]any
}

// Result represents the output of a tool execution.
type Result struct {
	Title    string         `json:"title"`
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// BaseTool provides a function-backed Tool implementation.
type BaseTool struct {
	id               string
	description      string
	parameters       json.RawMessage
	requiresApproval bool
	execute          func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// NewBaseTool creates a new base tool.
func NewBaseTool(id, description string, params json.RawMessage, requiresApproval bool, execute func(context.Context, json.RawMessage, *Context) (*Result, error)) *BaseTool {
	return &BaseTool{
		id:               id,
		description:      description,
		parameters:       params,
		requiresApproval: requiresApproval,
		execute:          execute,
	}
}

func (t *BaseTool) ID() string                  { return t.id }
func (t *BaseTool) Description() string         { return t.description }
func (t *BaseTool) Parameters() json.RawMessage { return t.parameters }
func (t *BaseTool) RequiresApproval() bool      { return t.requiresApproval }

func (t *BaseTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	return t.execute(ctx, input, toolCtx)
}

// Registry holds the tools available to agents. It is safe for concurrent
// use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any previous registration under the same
// id.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.ID()] = t
}

// Get returns a tool by id.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id]
	return t, ok
}

// List returns the registered tools sorted by id.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].ID() < tools[j].ID() })
	return tools
}

// RequiresApproval reports whether a call to the named tool must be gated.
// Unknown tools require approval: the gate fails closed.
func (r *Registry) RequiresApproval(id string) bool {
	t, ok := r.Get(id)
	if !ok {
		return true
	}
	return t.RequiresApproval()
}

// Annotate stamps a tool call with the registry's approval requirement for
// its tool.
func (r *Registry) Annotate(tc types.ToolCall) types.ToolCall {
	tc.RequiresApproval = r.RequiresApproval(tc.Name)
	return tc
}

// Execute runs a tool call through the registry.
func (r *Registry) Execute(ctx context.Context, sessionID, executionID string, tc types.ToolCall) (*Result, error) {
	t, ok := r.Get(tc.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, tc.Name)
	}

	input, err := json.Marshal(tc.Arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool arguments: %w", err)
	}

	return t.Execute(ctx, input, &Context{
		SessionID:   sessionID,
		ExecutionID: executionID,
		CallID:      tc.ID,
	})
}
