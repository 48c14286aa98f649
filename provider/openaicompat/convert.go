package openaicompat

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/pkg/usage"
	"github.com/casualjim/babel/provider"
)

// Policy captures the per-provider tie-breaks of the chat-completions
// dialect. The base shape is shared; these knobs are not.
type Policy struct {
	// Provider is the name used in errors, logs and usage normalization.
	Provider string

	// OmitEmptyToolSchema drops the parameters field for tools whose schema
	// is an empty object. Mistral rejects {} schemas.
	OmitEmptyToolSchema bool

	// SanitizeSchema rewrites tool schemas for providers that route to
	// models with stricter schema dialects (OpenRouter fronting Google
	// models).
	SanitizeSchema func(model string, schema json.RawMessage) json.RawMessage
}

// ToChatRequest maps a canonical request onto the wire shape. Content the
// dialect cannot encode (inline blobs, file references, executable code)
// fails with UnsupportedConversionError; nothing is dropped.
func ToChatRequest(p Policy, req provider.Request) (*ChatRequest, error) {
	out := &ChatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stop:        req.StopSequences,
	}

	if req.System != "" {
		system := req.System
		out.Messages = append(out.Messages, ChatMessage{Role: "system", Content: &system})
	}

	for i, msg := range req.Messages {
		wire, err := toChatMessages(p, msg)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out.Messages = append(out.Messages, wire...)
	}

	for _, td := range req.Tools {
		def := ToolDef{Type: "function", Function: FunctionDef{Name: td.Name, Description: td.Description}}
		if td.Parameters != nil && !(p.OmitEmptyToolSchema && td.EmptyParameters()) {
			schema, err := json.Marshal(td.Parameters)
			if err != nil {
				return nil, &provider.ContentConversionError{Provider: p.Provider, Detail: "tool schema for " + td.Name, Cause: err}
			}
			if p.SanitizeSchema != nil {
				schema = p.SanitizeSchema(req.Model, schema)
			}
			def.Function.Parameters = schema
		}
		out.Tools = append(out.Tools, def)
	}

	return out, nil
}

// toChatMessages expands one canonical message into its wire messages. The
// dialect allows exactly one tool result per tool message, so a canonical
// tool-role (or mixed) message expands into several wire messages: any
// accumulated text is flushed first, then one tool message per result, in
// the original part order.
func toChatMessages(p Policy, msg messages.Message) ([]ChatMessage, error) {
	role, err := wireRole(p, msg.Role)
	if err != nil {
		return nil, err
	}

	var (
		out       []ChatMessage
		text      string
		hasText   bool
		toolCalls []ToolCall
	)

	flushText := func() {
		if !hasText && toolCalls == nil {
			return
		}
		wire := ChatMessage{Role: role, ToolCalls: toolCalls}
		if hasText {
			content := text
			wire.Content = &content
		}
		out = append(out, wire)
		text, hasText, toolCalls = "", false, nil
	}

	for _, part := range msg.Content {
		switch pt := part.(type) {
		case messages.TextPart:
			text += pt.Text
			hasText = true
		case messages.ToolCallPart:
			toolCalls = append(toolCalls, ToolCall{
				ID:       pt.ID,
				Type:     "function",
				Function: FunctionCall{Name: pt.Name, Arguments: string(pt.Args)},
			})
		case messages.ToolResultPart:
			flushText()
			content, err := messages.EncodeToolResultContent(pt.Name, pt.Content)
			if err != nil {
				return nil, &provider.ContentConversionError{Provider: p.Provider, Detail: "tool result " + pt.CallID, Cause: err}
			}
			out = append(out, ChatMessage{
				Role:       "tool",
				Name:       pt.Name,
				Content:    &content,
				ToolCallID: pt.CallID,
			})
		case messages.BlobPart:
			return nil, &provider.UnsupportedConversionError{
				Provider: p.Provider, Kind: "blob",
				Reason: "inline binary content is not representable in the chat-completions dialect",
			}
		case messages.FileRefPart:
			return nil, &provider.UnsupportedConversionError{
				Provider: p.Provider, Kind: "file_ref",
				Reason: "provider-managed file references are not representable in the chat-completions dialect",
			}
		case messages.ExecutableCodePart:
			return nil, &provider.UnsupportedConversionError{
				Provider: p.Provider, Kind: "executable_code",
				Reason: "executable code blocks are not representable in the chat-completions dialect",
			}
		default:
			return nil, &provider.UnsupportedConversionError{
				Provider: p.Provider, Kind: fmt.Sprintf("%T", part), Reason: "unknown part",
			}
		}
	}
	flushText()
	return out, nil
}

func wireRole(p Policy, role messages.Role) (string, error) {
	switch role {
	case messages.RoleUser:
		return "user", nil
	case messages.RoleAssistant:
		return "assistant", nil
	case messages.RoleSystem:
		return "system", nil
	case messages.RoleTool:
		// the tool role is attached per result in toChatMessages; plain
		// parts in a tool message keep the user role
		return "user", nil
	default:
		return "", &provider.UnsupportedConversionError{Provider: p.Provider, Kind: "role", Reason: fmt.Sprintf("unknown role %q", role)}
	}
}

// FromChatMessage maps one wire message back onto the canonical model.
func FromChatMessage(p Policy, wire ChatMessage) (messages.Message, error) {
	var parts messages.Parts

	switch wire.Role {
	case "tool":
		content := ""
		if wire.Content != nil {
			content = *wire.Content
		}
		name, nested, ok := messages.DecodeToolResultContent(content)
		if !ok {
			name, nested = wire.Name, messages.Parts{messages.Text(content)}
		}
		parts = append(parts, messages.ToolResult(wire.ToolCallID, name, nested...))
		return messages.New(messages.RoleTool, parts...)
	case "assistant", "user", "system", "":
	default:
		return messages.Message{}, &provider.ContentConversionError{
			Provider: p.Provider, Detail: fmt.Sprintf("unknown wire role %q", wire.Role),
		}
	}

	if wire.Content != nil && *wire.Content != "" {
		parts = append(parts, messages.Text(*wire.Content))
	}
	for _, call := range wire.ToolCalls {
		parts = append(parts, toolCallPart(call))
	}
	if len(parts) == 0 {
		return messages.Message{}, &provider.MissingDataError{Provider: p.Provider, Field: "message content"}
	}

	role := messages.RoleAssistant
	switch wire.Role {
	case "user":
		role = messages.RoleUser
	case "system":
		role = messages.RoleSystem
	}
	return messages.New(role, parts...)
}

// toolCallPart converts a wire tool call. Arguments that are not valid JSON
// are preserved string-encoded rather than lost.
func toolCallPart(call ToolCall) messages.ToolCallPart {
	part := messages.ToolCallPart{ID: call.ID, Name: call.Function.Name}
	raw := call.Function.Arguments
	switch {
	case raw == "":
	case gjson.Valid(raw):
		part.Args = json.RawMessage(raw)
	default:
		encoded, err := json.Marshal(raw)
		if err == nil {
			part.Args = json.RawMessage(encoded)
		}
	}
	return part
}

// FromChatResponse maps the first choice of a response onto the canonical
// model.
func FromChatResponse(p Policy, resp *ChatResponse) (messages.Message, error) {
	if len(resp.Choices) == 0 {
		return messages.Message{}, &provider.MissingDataError{Provider: p.Provider, Field: "choices"}
	}
	msg, err := FromChatMessage(p, resp.Choices[0].Message)
	if err != nil {
		return messages.Message{}, err
	}
	if resp.ID != "" {
		if msg.Ext == nil {
			msg.Ext = messages.NewExt()
		}
		msg.Ext.Set("id", resp.ID)
	}
	return msg, nil
}

// FinishReason maps a wire finish_reason onto the canonical enum. Absent
// decodes to the empty value, never to a fabricated default.
func FinishReason(raw *string) messages.FinishReason {
	if raw == nil {
		return ""
	}
	switch *raw {
	case "stop":
		return messages.FinishStop
	case "length":
		return messages.FinishLength
	case "tool_calls", "function_call":
		return messages.FinishToolCalls
	case "content_filter":
		return messages.FinishContentFilter
	default:
		return messages.FinishOther
	}
}

// UsageToCanonical maps wire usage onto the canonical record, recomputing
// the total and keeping timing extras in the extension map.
func UsageToCanonical(p Policy, u *Usage) usage.Usage {
	if u == nil {
		return usage.Usage{}
	}
	out := usage.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
	if u.QueueTime != nil {
		out.SetExt("queue_time", *u.QueueTime)
	}
	if u.PromptTime != nil {
		out.SetExt("prompt_time", *u.PromptTime)
	}
	if u.CompletionTime != nil {
		out.SetExt("completion_time", *u.CompletionTime)
	}
	if u.TotalTime != nil {
		out.SetExt("total_time", *u.TotalTime)
	}
	out.Normalize(p.Provider)
	return out
}

// SanitizeSchemaForGoogle strips schema keywords Google-backed models reject
// ($schema, additionalProperties). Used by routing providers when the target
// model is detected as a Google one.
func SanitizeSchemaForGoogle(schema json.RawMessage) json.RawMessage {
	out := []byte(schema)
	for _, key := range []string{"$schema", "additionalProperties"} {
		if cleaned, err := sjson.DeleteBytes(out, key); err == nil {
			out = cleaned
		}
	}
	return json.RawMessage(out)
}
