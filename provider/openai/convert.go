// Package openai converts between the canonical model and the OpenAI chat
// completions API, using the official SDK types so the provider-facing JSON
// matches the documented schema bit for bit.
package openai

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"github.com/tidwall/gjson"

	"github.com/casualjim/babel/pkg/jsonx"
	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/pkg/usage"
	"github.com/casualjim/babel/provider"
	"github.com/casualjim/babel/tool"
)

// Name is the registry name of this converter.
const Name = "openai"

func init() {
	provider.Register(converter{})
}

type converter struct{}

func (converter) Provider() string { return Name }

func (converter) NewChunkAdapter() provider.ChunkAdapter { return NewStreamAdapter() }

// ToRequest maps a canonical request onto the SDK request params. Blobs,
// file references and executable code have no slot in this surface and fail
// with UnsupportedConversionError.
func ToRequest(req provider.Request) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}
	if req.MaxTokens != nil {
		params.MaxTokens = openai.Int(*req.MaxTokens)
	}

	if req.System != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(req.System))
	}
	for i, msg := range req.Messages {
		wire, err := toMessageParams(msg)
		if err != nil {
			return openai.ChatCompletionNewParams{}, fmt.Errorf("message %d: %w", i, err)
		}
		params.Messages = append(params.Messages, wire...)
	}

	tools, err := toToolParams(req.Tools)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	params.Tools = tools
	return params, nil
}

func toMessageParams(msg messages.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	var (
		out       []openai.ChatCompletionMessageParamUnion
		text      string
		hasText   bool
		toolCalls []openai.ChatCompletionMessageToolCallParam
	)

	flush := func() {
		if !hasText && toolCalls == nil {
			return
		}
		switch msg.Role {
		case messages.RoleAssistant:
			assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
			if hasText {
				assistant.Content.OfString = param.NewOpt(text)
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case messages.RoleSystem:
			out = append(out, openai.SystemMessage(text))
		default:
			out = append(out, openai.UserMessage(text))
		}
		text, hasText, toolCalls = "", false, nil
	}

	for _, part := range msg.Content {
		switch pt := part.(type) {
		case messages.TextPart:
			text += pt.Text
			hasText = true
		case messages.ToolCallPart:
			if msg.Role != messages.RoleAssistant {
				return nil, &provider.UnsupportedConversionError{
					Provider: Name, Kind: "tool_call",
					Reason: "tool calls are only representable on assistant messages in chat completions",
				}
			}
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
				ID: pt.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      pt.Name,
					Arguments: string(pt.Args),
				},
			})
		case messages.ToolResultPart:
			flush()
			content, err := messages.EncodeToolResultContent(pt.Name, pt.Content)
			if err != nil {
				return nil, &provider.ContentConversionError{Provider: Name, Detail: "tool result " + pt.CallID, Cause: err}
			}
			out = append(out, openai.ToolMessage(content, pt.CallID))
		case messages.BlobPart:
			return nil, &provider.UnsupportedConversionError{
				Provider: Name, Kind: "blob",
				Reason: "inline binary content is not representable in chat completions",
			}
		case messages.FileRefPart:
			return nil, &provider.UnsupportedConversionError{
				Provider: Name, Kind: "file_ref",
				Reason: "provider-managed file references are not representable in chat completions",
			}
		case messages.ExecutableCodePart:
			return nil, &provider.UnsupportedConversionError{
				Provider: Name, Kind: "executable_code",
				Reason: "executable code blocks are not representable in chat completions",
			}
		default:
			return nil, &provider.UnsupportedConversionError{Provider: Name, Kind: fmt.Sprintf("%T", part), Reason: "unknown part"}
		}
	}
	flush()
	return out, nil
}

func toToolParams(tools []tool.Definition) ([]openai.ChatCompletionToolParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, td := range tools {
		fn := openai.FunctionDefinitionParam{Name: td.Name}
		if td.Description != "" {
			fn.Description = openai.String(td.Description)
		}
		if td.Parameters != nil {
			schema, err := jsonx.ToDynamicJSON(td.Parameters)
			if err != nil {
				return nil, &provider.ContentConversionError{Provider: Name, Detail: "tool schema for " + td.Name, Cause: err}
			}
			fn.Parameters = openai.FunctionParameters(schema)
		}
		out = append(out, openai.ChatCompletionToolParam{Function: fn})
	}
	return out, nil
}

// FromResponse maps the first choice of a completion onto the canonical
// model. Wire fields with no canonical slot (the completion id, the exact
// finish reason) land in the extension map instead of failing ingestion.
func FromResponse(resp *openai.ChatCompletion) (messages.Message, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return messages.Message{}, &provider.MissingDataError{Provider: Name, Field: "choices"}
	}
	choice := resp.Choices[0]

	var parts messages.Parts
	if choice.Message.Content != "" {
		parts = append(parts, messages.Text(choice.Message.Content))
	}
	for _, call := range choice.Message.ToolCalls {
		part := messages.ToolCallPart{ID: call.ID, Name: call.Function.Name}
		if raw := call.Function.Arguments; raw != "" && gjson.Valid(raw) {
			part.Args = json.RawMessage(raw)
		} else if raw != "" {
			encoded, err := json.Marshal(raw)
			if err != nil {
				return messages.Message{}, &provider.ContentConversionError{Provider: Name, Detail: "tool call arguments", Cause: err}
			}
			part.Args = json.RawMessage(encoded)
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return messages.Message{}, &provider.MissingDataError{Provider: Name, Field: "message content"}
	}

	msg, err := messages.New(messages.RoleAssistant, parts...)
	if err != nil {
		return messages.Message{}, err
	}
	msg.Ext = messages.NewExt()
	if resp.ID != "" {
		msg.Ext.Set("id", resp.ID)
	}
	if choice.FinishReason != "" {
		msg.Ext.Set("finish_reason", choice.FinishReason)
	}
	return msg, nil
}

// FinishReason maps the wire finish_reason onto the canonical enum.
func FinishReason(raw string) messages.FinishReason {
	switch raw {
	case "":
		return ""
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

// UsageToCanonical maps the SDK usage onto the canonical record.
func UsageToCanonical(u openai.CompletionUsage) usage.Usage {
	out := usage.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		PromptTokensDetails: usage.PromptTokensDetails{
			AudioTokens:  u.PromptTokensDetails.AudioTokens,
			CachedTokens: u.PromptTokensDetails.CachedTokens,
		},
		CompletionTokensDetails: usage.CompletionTokensDetails{
			AcceptedPredictionTokens: u.CompletionTokensDetails.AcceptedPredictionTokens,
			AudioTokens:              u.CompletionTokensDetails.AudioTokens,
			ReasoningTokens:          u.CompletionTokensDetails.ReasoningTokens,
			RejectedPredictionTokens: u.CompletionTokensDetails.RejectedPredictionTokens,
		},
	}
	out.Normalize(Name)
	return out
}
