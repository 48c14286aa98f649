// Package anthropic converts between the canonical model and the Anthropic
// Messages API, using the official SDK types for the request and response
// surfaces and raw event records for the stream.
package anthropic

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	json "github.com/goccy/go-json"

	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/pkg/usage"
	"github.com/casualjim/babel/provider"
	"github.com/casualjim/babel/tool"
)

// Name is the registry name of this converter.
const Name = "anthropic"

// The Messages API requires max_tokens on every request.
const defaultMaxTokens = 1024

func init() {
	provider.Register(converter{})
}

type converter struct{}

func (converter) Provider() string { return Name }

func (converter) NewChunkAdapter() provider.ChunkAdapter { return NewStreamAdapter() }

// ToRequest maps a canonical request onto the SDK request params. System
// text, whether from the request field or from system-role messages, becomes
// request-level system blocks. Tool-role messages become user-role messages
// carrying tool_result blocks.
func ToRequest(req provider.Request) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: defaultMaxTokens,
	}
	if req.MaxTokens != nil {
		params.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = param.NewOpt(*req.TopP)
	}
	params.StopSequences = req.StopSequences

	if req.System != "" {
		params.System = append(params.System, anthropic.TextBlockParam{Text: req.System})
	}

	for i, msg := range req.Messages {
		if msg.Role == messages.RoleSystem {
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.TextContent()})
			continue
		}
		wire, err := toMessageParam(msg)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("message %d: %w", i, err)
		}
		params.Messages = append(params.Messages, wire)
	}

	tools, err := toToolParams(req.Tools)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	params.Tools = tools
	return params, nil
}

func toMessageParam(msg messages.Message) (anthropic.MessageParam, error) {
	out := anthropic.MessageParam{Role: anthropic.MessageParamRoleUser}
	if msg.Role == messages.RoleAssistant {
		out.Role = anthropic.MessageParamRoleAssistant
	}

	for _, part := range msg.Content {
		switch pt := part.(type) {
		case messages.TextPart:
			out.Content = append(out.Content, anthropic.ContentBlockParamUnion{
				OfText: &anthropic.TextBlockParam{Text: pt.Text},
			})
		case messages.BlobPart:
			block, err := toImageBlock(pt)
			if err != nil {
				return anthropic.MessageParam{}, err
			}
			out.Content = append(out.Content, block)
		case messages.ToolCallPart:
			out.Content = append(out.Content, anthropic.ContentBlockParamUnion{
				OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    pt.ID,
					Name:  pt.Name,
					Input: json.RawMessage(pt.Args),
				},
			})
		case messages.ToolResultPart:
			content, err := messages.EncodeToolResultContent(pt.Name, pt.Content)
			if err != nil {
				return anthropic.MessageParam{}, &provider.ContentConversionError{Provider: Name, Detail: "tool result " + pt.CallID, Cause: err}
			}
			out.Content = append(out.Content, anthropic.ContentBlockParamUnion{
				OfToolResult: &anthropic.ToolResultBlockParam{
					ToolUseID: pt.CallID,
					Content: []anthropic.ToolResultBlockParamContentUnion{
						{OfText: &anthropic.TextBlockParam{Text: content}},
					},
				},
			})
		case messages.FileRefPart:
			return anthropic.MessageParam{}, &provider.UnsupportedConversionError{
				Provider: Name, Kind: "file_ref",
				Reason: "provider-managed file references are not representable in the messages API",
			}
		case messages.ExecutableCodePart:
			return anthropic.MessageParam{}, &provider.UnsupportedConversionError{
				Provider: Name, Kind: "executable_code",
				Reason: "executable code blocks are not representable in the messages API",
			}
		default:
			return anthropic.MessageParam{}, &provider.UnsupportedConversionError{Provider: Name, Kind: fmt.Sprintf("%T", part), Reason: "unknown part"}
		}
	}
	return out, nil
}

func toImageBlock(pt messages.BlobPart) (anthropic.ContentBlockParamUnion, error) {
	source := anthropic.ImageBlockParamSourceUnion{}
	switch ref := pt.Ref.(type) {
	case messages.Base64Data:
		source.OfBase64 = &anthropic.Base64ImageSourceParam{
			Data:      ref.Data,
			MediaType: anthropic.Base64ImageSourceMediaType(pt.MimeType),
		}
	case messages.URIData:
		source.OfURL = &anthropic.URLImageSourceParam{URL: ref.URI}
	default:
		return anthropic.ContentBlockParamUnion{}, &provider.UnsupportedConversionError{
			Provider: Name, Kind: "blob",
			Reason: fmt.Sprintf("unknown data reference %T", pt.Ref),
		}
	}
	return anthropic.ContentBlockParamUnion{
		OfImage: &anthropic.ImageBlockParam{Source: source},
	}, nil
}

func toToolParams(tools []tool.Definition) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, td := range tools {
		wire := &anthropic.ToolParam{Name: td.Name}
		if td.Description != "" {
			wire.Description = param.NewOpt(td.Description)
		}
		if td.Parameters != nil {
			wire.InputSchema = anthropic.ToolInputSchemaParam{
				Properties: td.Parameters.Properties,
				Required:   td.Parameters.Required,
			}
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: wire})
	}
	return out, nil
}

// FromResponse maps an SDK message onto the canonical model. Content blocks
// with no canonical slot are kept verbatim in the extension map rather than
// failing ingestion.
func FromResponse(resp *anthropic.Message) (messages.Message, error) {
	if resp == nil {
		return messages.Message{}, &provider.MissingDataError{Provider: Name, Field: "message"}
	}

	var (
		parts   messages.Parts
		unknown []json.RawMessage
	)
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			parts = append(parts, messages.Text(b.Text))
		case anthropic.ToolUseBlock:
			parts = append(parts, messages.ToolCallPart{
				ID:   b.ID,
				Name: b.Name,
				Args: json.RawMessage(b.Input),
			})
		default:
			unknown = append(unknown, json.RawMessage(block.RawJSON()))
		}
	}
	if len(parts) == 0 {
		return messages.Message{}, &provider.MissingDataError{Provider: Name, Field: "content"}
	}

	msg, err := messages.New(messages.RoleAssistant, parts...)
	if err != nil {
		return messages.Message{}, err
	}
	msg.Ext = messages.NewExt()
	if resp.ID != "" {
		msg.Ext.Set("id", resp.ID)
	}
	if resp.Model != "" {
		msg.Ext.Set("model", string(resp.Model))
	}
	if resp.StopReason != "" {
		msg.Ext.Set("stop_reason", string(resp.StopReason))
	}
	if len(unknown) > 0 {
		msg.Ext.Set("unknown_blocks", unknown)
	}
	return msg, nil
}

// FinishReason maps the wire stop_reason onto the canonical enum.
func FinishReason(raw string) messages.FinishReason {
	switch raw {
	case "":
		return ""
	case "end_turn", "stop_sequence":
		return messages.FinishStop
	case "max_tokens":
		return messages.FinishLength
	case "tool_use":
		return messages.FinishToolCalls
	case "refusal":
		return messages.FinishContentFilter
	default:
		return messages.FinishOther
	}
}

// UsageToCanonical maps the SDK usage onto the canonical record. Cache reads
// map to the cached-tokens detail; cache creation has no canonical slot and
// lands in the extension map.
func UsageToCanonical(u anthropic.Usage) usage.Usage {
	out := usage.Usage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		PromptTokensDetails: usage.PromptTokensDetails{
			CachedTokens: u.CacheReadInputTokens,
		},
	}
	if u.CacheCreationInputTokens > 0 {
		out.SetExt("cache_creation_input_tokens", u.CacheCreationInputTokens)
	}
	out.Normalize(Name)
	return out
}
