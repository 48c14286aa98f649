// Package openaicompat implements the chat-completions wire dialect shared
// by OpenAI-compatible providers (OpenAI, Mistral, Groq, OpenRouter). The
// dialects diverge in small, per-provider policies, never in the base shape,
// so the wire structs live here once and each provider package supplies a
// Policy.
package openaicompat

import json "github.com/goccy/go-json"

// ChatMessage is one wire message. Content is a pointer: several providers
// distinguish a missing content field from an explicitly empty one.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a function invocation on the wire. Arguments is a string
// holding JSON text, per the chat-completions contract. Index is only
// present on stream deltas.
type ToolCall struct {
	Index    *int         `json:"index,omitempty"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and JSON-text arguments.
type FunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolDef declares a callable function.
type ToolDef struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef is the function half of a tool declaration. Parameters is the
// raw JSON schema; nil omits the field (some providers reject empty object
// schemas).
type FunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ChatRequest is the provider-facing request body.
type ChatRequest struct {
	Model         string        `json:"model"`
	Messages      []ChatMessage `json:"messages"`
	Tools         []ToolDef     `json:"tools,omitempty"`
	Temperature   *float64      `json:"temperature,omitempty"`
	TopP          *float64      `json:"top_p,omitempty"`
	MaxTokens     *int64        `json:"max_tokens,omitempty"`
	Stop          []string      `json:"stop,omitempty"`
	Stream        bool          `json:"stream,omitempty"`
	StreamOptions *StreamOpts   `json:"stream_options,omitempty"`
}

// StreamOpts asks the provider to attach usage to the final stream chunk.
type StreamOpts struct {
	IncludeUsage bool `json:"include_usage"`
}

// ChatResponse is the non-streaming response body.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason *string     `json:"finish_reason"`
}

// Usage is the wire token accounting. The timing fields are Groq extras;
// other providers simply never send them.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`

	QueueTime      *float64 `json:"queue_time,omitempty"`
	PromptTime     *float64 `json:"prompt_time,omitempty"`
	CompletionTime *float64 `json:"completion_time,omitempty"`
	TotalTime      *float64 `json:"total_time,omitempty"`
}

// StreamChunk is one streamed response record.
type StreamChunk struct {
	ID      string         `json:"id"`
	Model   string         `json:"model,omitempty"`
	Choices []StreamChoice `json:"choices"`
	Usage   *Usage         `json:"usage,omitempty"`
}

// StreamChoice is one streamed alternative.
type StreamChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental message payload of a stream chunk.
type Delta struct {
	Role      string     `json:"role,omitempty"`
	Content   *string    `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}
