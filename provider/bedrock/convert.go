// Package bedrock converts between the canonical model and the AWS Bedrock
// Converse API. The wire shapes are maintained here; moving onto the AWS SDK
// would pull the whole smithy runtime in for what is a plain JSON surface.
package bedrock

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/pkg/usage"
	"github.com/casualjim/babel/provider"
	"github.com/casualjim/babel/tool"
)

// Name is the registry name of this converter.
const Name = "bedrock"

// codeInterpreter is the tool name Converse responses use for managed code
// execution blocks. It arrives with an empty toolUseId and is ingested as
// executable code; it is never emitted.
const codeInterpreter = "code_interpreter"

func init() {
	provider.Register(converter{})
}

type converter struct{}

func (converter) Provider() string { return Name }

func (converter) NewChunkAdapter() provider.ChunkAdapter { return NewStreamAdapter() }

// ToRequest maps a canonical request onto the Converse request body. System
// text, whether from the request field or from system-role messages, becomes
// request-level system blocks. Tool-role messages become user-role messages
// carrying toolResult blocks.
func ToRequest(req provider.Request) (*ConverseRequest, error) {
	out := &ConverseRequest{}

	if req.System != "" {
		out.System = append(out.System, SystemBlock{Text: req.System})
	}

	for i, msg := range req.Messages {
		if msg.Role == messages.RoleSystem {
			out.System = append(out.System, SystemBlock{Text: msg.TextContent()})
			continue
		}
		wire, err := toMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out.Messages = append(out.Messages, wire)
	}

	if req.Temperature != nil || req.TopP != nil || req.MaxTokens != nil || len(req.StopSequences) > 0 {
		out.InferenceConfig = &InferenceConfig{
			MaxTokens:     req.MaxTokens,
			Temperature:   req.Temperature,
			TopP:          req.TopP,
			StopSequences: req.StopSequences,
		}
	}

	toolConfig, err := toToolConfig(req.Tools)
	if err != nil {
		return nil, err
	}
	out.ToolConfig = toolConfig
	return out, nil
}

func toMessage(msg messages.Message) (Message, error) {
	out := Message{Role: "user"}
	if msg.Role == messages.RoleAssistant {
		out.Role = "assistant"
	}

	for _, part := range msg.Content {
		switch pt := part.(type) {
		case messages.TextPart:
			text := pt.Text
			out.Content = append(out.Content, ContentBlock{Text: &text})
		case messages.BlobPart:
			block, err := toImageBlock(pt)
			if err != nil {
				return Message{}, err
			}
			out.Content = append(out.Content, block)
		case messages.ToolCallPart:
			out.Content = append(out.Content, ContentBlock{ToolUse: &ToolUseBlock{
				ToolUseID: pt.ID,
				Name:      pt.Name,
				Input:     json.RawMessage(pt.Args),
			}})
		case messages.ToolResultPart:
			content, err := messages.EncodeToolResultContent(pt.Name, pt.Content)
			if err != nil {
				return Message{}, &provider.ContentConversionError{Provider: Name, Detail: "tool result " + pt.CallID, Cause: err}
			}
			out.Content = append(out.Content, ContentBlock{ToolResult: &ToolResultBlock{
				ToolUseID: pt.CallID,
				Content:   []ToolResultContent{{Text: &content}},
			}})
		case messages.FileRefPart:
			return Message{}, &provider.UnsupportedConversionError{
				Provider: Name, Kind: "file_ref",
				Reason: "provider-managed file references are not representable in the converse API",
			}
		case messages.ExecutableCodePart:
			return Message{}, &provider.UnsupportedConversionError{
				Provider: Name, Kind: "executable_code",
				Reason: "executable code blocks are not representable in the converse API",
			}
		default:
			return Message{}, &provider.UnsupportedConversionError{Provider: Name, Kind: fmt.Sprintf("%T", part), Reason: "unknown part"}
		}
	}
	return out, nil
}

func toImageBlock(pt messages.BlobPart) (ContentBlock, error) {
	ref, ok := pt.Ref.(messages.Base64Data)
	if !ok {
		return ContentBlock{}, &provider.UnsupportedConversionError{
			Provider: Name, Kind: "blob",
			Reason: "the converse API takes inline image bytes only, not references",
		}
	}
	format, err := imageFormat(pt.MimeType)
	if err != nil {
		return ContentBlock{}, err
	}
	return ContentBlock{Image: &ImageBlock{
		Format: format,
		Source: ImageSource{Bytes: ref.Data},
	}}, nil
}

func imageFormat(mimeType string) (string, error) {
	switch mimeType {
	case "image/png":
		return "png", nil
	case "image/jpeg", "image/jpg":
		return "jpeg", nil
	case "image/gif":
		return "gif", nil
	case "image/webp":
		return "webp", nil
	default:
		return "", &provider.UnsupportedConversionError{
			Provider: Name, Kind: "blob",
			Reason: fmt.Sprintf("unsupported image media type %q", mimeType),
		}
	}
}

func toToolConfig(tools []tool.Definition) (*ToolConfig, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := &ToolConfig{Tools: make([]ToolEntry, 0, len(tools))}
	for _, td := range tools {
		spec := ToolSpec{Name: td.Name, Description: td.Description}
		if td.Parameters != nil {
			schema, err := json.Marshal(td.Parameters)
			if err != nil {
				return nil, &provider.ContentConversionError{Provider: Name, Detail: "tool schema for " + td.Name, Cause: err}
			}
			spec.InputSchema = InputSchema{JSON: schema}
		}
		out.Tools = append(out.Tools, ToolEntry{ToolSpec: spec})
	}
	return out, nil
}

// FromResponse maps a Converse response onto the canonical model. A toolUse
// block named code_interpreter with no id is the managed code-execution
// shape and ingests as executable code.
func FromResponse(resp *ConverseResponse) (messages.Message, error) {
	if resp == nil || resp.Output.Message == nil {
		return messages.Message{}, &provider.MissingDataError{Provider: Name, Field: "output.message"}
	}

	var parts messages.Parts
	for i, block := range resp.Output.Message.Content {
		part, err := fromContentBlock(block)
		if err != nil {
			return messages.Message{}, fmt.Errorf("content block %d: %w", i, err)
		}
		if part != nil {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return messages.Message{}, &provider.MissingDataError{Provider: Name, Field: "output.message.content"}
	}

	msg, err := messages.New(messages.RoleAssistant, parts...)
	if err != nil {
		return messages.Message{}, err
	}
	if resp.StopReason != "" {
		msg.Ext = messages.NewExt()
		msg.Ext.Set("stop_reason", resp.StopReason)
	}
	return msg, nil
}

func fromContentBlock(block ContentBlock) (messages.Part, error) {
	switch {
	case block.Text != nil:
		return messages.Text(*block.Text), nil

	case block.Image != nil:
		return messages.BlobBase64(block.Image.Source.Bytes, "image/"+block.Image.Format), nil

	case block.ToolUse != nil:
		use := block.ToolUse
		if use.Name == codeInterpreter && use.ToolUseID == "" {
			input := gjson.ParseBytes(use.Input)
			return messages.ExecutableCode(
				input.Get("language").String(),
				input.Get("code").String(),
			), nil
		}
		return messages.ToolCallPart{
			ID:   use.ToolUseID,
			Name: use.Name,
			Args: use.Input,
		}, nil

	case block.ToolResult != nil:
		return fromToolResult(block.ToolResult)

	default:
		return nil, nil
	}
}

func fromToolResult(result *ToolResultBlock) (messages.Part, error) {
	var text string
	for _, c := range result.Content {
		switch {
		case c.Text != nil:
			text += *c.Text
		case c.JSON != nil:
			text += string(c.JSON)
		}
	}
	name, content, ok := messages.DecodeToolResultContent(text)
	if !ok {
		content = messages.Parts{messages.Text(text)}
	}
	return messages.ToolResultPart{
		CallID:  result.ToolUseID,
		Name:    name,
		Content: content,
	}, nil
}

// FinishReason maps the wire stopReason onto the canonical enum.
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
	case "content_filtered", "guardrail_intervened":
		return messages.FinishContentFilter
	default:
		return messages.FinishOther
	}
}

// UsageToCanonical maps Converse token usage onto the canonical record.
func UsageToCanonical(u *TokenUsage) usage.Usage {
	if u == nil {
		return usage.Usage{}
	}
	out := usage.Usage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.TotalTokens,
	}
	out.Normalize(Name)
	return out
}
