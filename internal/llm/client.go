// ABOUTME: Model boundary types and the Client interface the orchestrator consumes
// ABOUTME: Messages, tool call structures, and the function-style tool export shape

package llm

import (
	"context"
	"encoding/json"
)

// Role is a conversation message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in a conversation transcript.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the requested tool name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool is the function-style descriptor exposed to the model boundary:
// {type:"function", function:{name, description, parameters}}.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function describes one callable tool with its JSON-schema parameters.
type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Result is the model's reply to one completion call.
type Result struct {
	Content   string
	ToolCalls []ToolCall
}

// Client is the language-model completion boundary. The orchestrator treats
// it as an opaque request/response surface.
type Client interface {
	Complete(ctx context.Context, messages []Message, tools []Tool) (*Result, error)
}
