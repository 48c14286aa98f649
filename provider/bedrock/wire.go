package bedrock

import json "github.com/goccy/go-json"

// The Converse API wire shapes, camelCase per the REST surface. Content
// blocks are structurally tagged: exactly one of the pointer fields is set.

// Message is one turn of a Converse conversation.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`

	_ struct{} // require keyed usage
}

// ContentBlock is one unit of message content.
type ContentBlock struct {
	Text       *string          `json:"text,omitempty"`
	Image      *ImageBlock      `json:"image,omitempty"`
	ToolUse    *ToolUseBlock    `json:"toolUse,omitempty"`
	ToolResult *ToolResultBlock `json:"toolResult,omitempty"`

	_ struct{} // require keyed usage
}

// ImageBlock carries inline image bytes, base64 on the wire.
type ImageBlock struct {
	Format string      `json:"format"`
	Source ImageSource `json:"source"`

	_ struct{} // require keyed usage
}

// ImageSource holds the base64 payload.
type ImageSource struct {
	Bytes string `json:"bytes"`

	_ struct{} // require keyed usage
}

// ToolUseBlock is a model-issued tool invocation.
type ToolUseBlock struct {
	ToolUseID string          `json:"toolUseId"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`

	_ struct{} // require keyed usage
}

// ToolResultBlock answers a prior toolUse.
type ToolResultBlock struct {
	ToolUseID string              `json:"toolUseId"`
	Content   []ToolResultContent `json:"content"`

	_ struct{} // require keyed usage
}

// ToolResultContent is one unit of tool-result content.
type ToolResultContent struct {
	Text *string         `json:"text,omitempty"`
	JSON json.RawMessage `json:"json,omitempty"`

	_ struct{} // require keyed usage
}

// SystemBlock is one request-level system prompt block.
type SystemBlock struct {
	Text string `json:"text"`

	_ struct{} // require keyed usage
}

// InferenceConfig carries the sampling knobs.
type InferenceConfig struct {
	MaxTokens     *int64   `json:"maxTokens,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"topP,omitempty"`
	StopSequences []string `json:"stopSequences,omitempty"`

	_ struct{} // require keyed usage
}

// ToolConfig declares the tools available to the model.
type ToolConfig struct {
	Tools []ToolEntry `json:"tools"`

	_ struct{} // require keyed usage
}

// ToolEntry wraps one tool specification.
type ToolEntry struct {
	ToolSpec ToolSpec `json:"toolSpec"`

	_ struct{} // require keyed usage
}

// ToolSpec is one tool declaration.
type ToolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema InputSchema `json:"inputSchema"`

	_ struct{} // require keyed usage
}

// InputSchema wraps the JSON Schema document for a tool.
type InputSchema struct {
	JSON json.RawMessage `json:"json"`

	_ struct{} // require keyed usage
}

// ConverseRequest is the Converse request body.
type ConverseRequest struct {
	Messages        []Message        `json:"messages"`
	System          []SystemBlock    `json:"system,omitempty"`
	ToolConfig      *ToolConfig      `json:"toolConfig,omitempty"`
	InferenceConfig *InferenceConfig `json:"inferenceConfig,omitempty"`

	_ struct{} // require keyed usage
}

// ConverseOutput wraps the response message.
type ConverseOutput struct {
	Message *Message `json:"message,omitempty"`

	_ struct{} // require keyed usage
}

// ConverseResponse is the Converse response body.
type ConverseResponse struct {
	Output     ConverseOutput `json:"output"`
	StopReason string         `json:"stopReason"`
	Usage      *TokenUsage    `json:"usage,omitempty"`

	_ struct{} // require keyed usage
}

// TokenUsage is the Converse token accounting.
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	TotalTokens  int64 `json:"totalTokens"`

	_ struct{} // require keyed usage
}

// StreamChunk is one ConverseStream event body. The event type lives in the
// transport framing, not the body, but the payloads are disjoint enough to
// dispatch on which fields are present.
type StreamChunk struct {
	// messageStart
	Role string `json:"role,omitempty"`

	// contentBlockStart / contentBlockDelta / contentBlockStop
	ContentBlockIndex *int64             `json:"contentBlockIndex,omitempty"`
	Start             *ContentBlockStart `json:"start,omitempty"`
	Delta             *ContentBlockDelta `json:"delta,omitempty"`

	// messageStop
	StopReason string `json:"stopReason,omitempty"`

	// metadata
	Usage *TokenUsage `json:"usage,omitempty"`

	_ struct{} // require keyed usage
}

// ContentBlockStart opens a content block; only tool use carries data.
type ContentBlockStart struct {
	ToolUse *ToolUseStart `json:"toolUse,omitempty"`

	_ struct{} // require keyed usage
}

// ToolUseStart announces a tool invocation before its input streams.
type ToolUseStart struct {
	ToolUseID string `json:"toolUseId"`
	Name      string `json:"name"`

	_ struct{} // require keyed usage
}

// ContentBlockDelta carries one content fragment.
type ContentBlockDelta struct {
	Text    *string       `json:"text,omitempty"`
	ToolUse *ToolUseDelta `json:"toolUse,omitempty"`

	_ struct{} // require keyed usage
}

// ToolUseDelta carries a fragment of tool input JSON.
type ToolUseDelta struct {
	Input string `json:"input"`

	_ struct{} // require keyed usage
}
