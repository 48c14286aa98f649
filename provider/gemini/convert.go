// Package gemini converts between the canonical model and the Gemini
// generateContent API using the official genai types. Gemini is the one
// target here that can carry provider-managed file references and executable
// code natively, so those parts round-trip instead of failing.
package gemini

import (
	"encoding/base64"
	"fmt"

	json "github.com/goccy/go-json"
	"google.golang.org/genai"

	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/pkg/usage"
	"github.com/casualjim/babel/pkg/uuidx"
	"github.com/casualjim/babel/provider"
	"github.com/casualjim/babel/tool"
)

// Name is the registry name of this converter.
const Name = "gemini"

func init() {
	provider.Register(converter{})
}

type converter struct{}

func (converter) Provider() string { return Name }

func (converter) NewChunkAdapter() provider.ChunkAdapter { return NewStreamAdapter() }

// Request is the wire request for generateContent. The genai SDK passes
// model, contents and config as separate call arguments, so the converter
// returns them bundled.
type Request struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// ToRequest maps a canonical request onto genai contents and config. System
// text, whether from the request field or from system-role messages, becomes
// the system instruction. Tool-role messages ride as user-role contents
// carrying function responses.
func ToRequest(req provider.Request) (Request, error) {
	out := Request{Model: req.Model, Config: &genai.GenerateContentConfig{}}

	if req.Temperature != nil {
		t := float32(*req.Temperature)
		out.Config.Temperature = &t
	}
	if req.TopP != nil {
		p := float32(*req.TopP)
		out.Config.TopP = &p
	}
	if req.MaxTokens != nil {
		out.Config.MaxOutputTokens = int32(*req.MaxTokens)
	}
	out.Config.StopSequences = req.StopSequences

	systemParts := []*genai.Part{}
	if req.System != "" {
		systemParts = append(systemParts, &genai.Part{Text: req.System})
	}

	for i, msg := range req.Messages {
		if msg.Role == messages.RoleSystem {
			systemParts = append(systemParts, &genai.Part{Text: msg.TextContent()})
			continue
		}
		content, err := toContent(msg)
		if err != nil {
			return Request{}, fmt.Errorf("message %d: %w", i, err)
		}
		out.Contents = append(out.Contents, content)
	}
	if len(systemParts) > 0 {
		out.Config.SystemInstruction = &genai.Content{Parts: systemParts}
	}

	out.Config.Tools = toTools(req.Tools)
	return out, nil
}

func toContent(msg messages.Message) (*genai.Content, error) {
	content := &genai.Content{Role: genai.RoleUser}
	if msg.Role == messages.RoleAssistant {
		content.Role = genai.RoleModel
	}

	for _, part := range msg.Content {
		switch pt := part.(type) {
		case messages.TextPart:
			content.Parts = append(content.Parts, &genai.Part{Text: pt.Text})
		case messages.BlobPart:
			wire, err := toBlobPart(pt)
			if err != nil {
				return nil, err
			}
			content.Parts = append(content.Parts, wire)
		case messages.ToolCallPart:
			args := map[string]any{}
			if len(pt.Args) > 0 {
				if err := json.Unmarshal(pt.Args, &args); err != nil {
					return nil, &provider.ContentConversionError{Provider: Name, Detail: "tool call " + pt.ID + " arguments", Cause: err}
				}
			}
			content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   pt.ID,
				Name: pt.Name,
				Args: args,
			}})
		case messages.ToolResultPart:
			response, err := toFunctionResponse(pt.Content)
			if err != nil {
				return nil, &provider.ContentConversionError{Provider: Name, Detail: "tool result " + pt.CallID, Cause: err}
			}
			content.Parts = append(content.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       pt.CallID,
				Name:     pt.Name,
				Response: response,
			}})
		case messages.FileRefPart:
			content.Parts = append(content.Parts, &genai.Part{FileData: &genai.FileData{
				FileURI:  pt.URI,
				MIMEType: pt.MimeType,
			}})
		case messages.ExecutableCodePart:
			content.Parts = append(content.Parts, &genai.Part{ExecutableCode: &genai.ExecutableCode{
				Code:     pt.Code,
				Language: genai.Language(pt.Language),
			}})
		default:
			return nil, &provider.UnsupportedConversionError{Provider: Name, Kind: fmt.Sprintf("%T", part), Reason: "unknown part"}
		}
	}
	return content, nil
}

func toBlobPart(pt messages.BlobPart) (*genai.Part, error) {
	switch ref := pt.Ref.(type) {
	case messages.Base64Data:
		data, err := base64.StdEncoding.DecodeString(ref.Data)
		if err != nil {
			return nil, &provider.ContentConversionError{Provider: Name, Detail: "blob payload", Cause: err}
		}
		return &genai.Part{InlineData: &genai.Blob{MIMEType: pt.MimeType, Data: data}}, nil
	case messages.URIData:
		return &genai.Part{FileData: &genai.FileData{FileURI: ref.URI, MIMEType: pt.MimeType}}, nil
	default:
		return nil, &provider.UnsupportedConversionError{
			Provider: Name, Kind: "blob",
			Reason: fmt.Sprintf("unknown data reference %T", pt.Ref),
		}
	}
}

// toFunctionResponse projects tool-result parts into the response object the
// wire expects. The content key always holds an array, one element per part.
func toFunctionResponse(content messages.Parts) (map[string]any, error) {
	elems := make([]any, 0, len(content))
	for _, part := range content {
		data, err := json.Marshal(part)
		if err != nil {
			return nil, err
		}
		var elem any
		if err := json.Unmarshal(data, &elem); err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}
	return map[string]any{"content": elems}, nil
}

func toTools(tools []tool.Definition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, td := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        td.Name,
			Description: td.Description,
		}
		if td.Parameters != nil {
			decl.ParametersJsonSchema = td.Parameters
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// FromResponse maps the first candidate onto the canonical model. Gemini may
// omit function call IDs; a stable one is synthesized so results can be
// correlated downstream.
func FromResponse(resp *genai.GenerateContentResponse) (messages.Message, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return messages.Message{}, &provider.MissingDataError{Provider: Name, Field: "candidates"}
	}
	candidate := resp.Candidates[0]

	parts, err := fromParts(candidate.Content.Parts)
	if err != nil {
		return messages.Message{}, err
	}
	if len(parts) == 0 {
		return messages.Message{}, &provider.MissingDataError{Provider: Name, Field: "content parts"}
	}

	msg, err := messages.New(messages.RoleAssistant, parts...)
	if err != nil {
		return messages.Message{}, err
	}
	msg.Ext = messages.NewExt()
	if resp.ModelVersion != "" {
		msg.Ext.Set("model_version", resp.ModelVersion)
	}
	if candidate.FinishReason != "" {
		msg.Ext.Set("finish_reason", string(candidate.FinishReason))
	}
	return msg, nil
}

func fromParts(wire []*genai.Part) (messages.Parts, error) {
	var parts messages.Parts
	for _, part := range wire {
		switch {
		case part == nil:
		case part.Text != "":
			if part.Thought {
				continue
			}
			parts = append(parts, messages.Text(part.Text))
		case part.FunctionCall != nil:
			call, err := fromFunctionCall(part.FunctionCall)
			if err != nil {
				return nil, err
			}
			parts = append(parts, call)
		case part.InlineData != nil:
			parts = append(parts, messages.BlobBase64(
				base64.StdEncoding.EncodeToString(part.InlineData.Data),
				part.InlineData.MIMEType,
			))
		case part.FileData != nil:
			parts = append(parts, messages.FileRef(part.FileData.FileURI, part.FileData.MIMEType))
		case part.ExecutableCode != nil:
			parts = append(parts, messages.ExecutableCode(
				string(part.ExecutableCode.Language),
				part.ExecutableCode.Code,
			))
		}
	}
	return parts, nil
}

func fromFunctionCall(call *genai.FunctionCall) (messages.ToolCallPart, error) {
	id := call.ID
	if id == "" {
		id = "call_" + uuidx.NewString()
	}
	args, err := json.Marshal(call.Args)
	if err != nil {
		return messages.ToolCallPart{}, &provider.ContentConversionError{Provider: Name, Detail: "function call arguments", Cause: err}
	}
	return messages.ToolCallPart{ID: id, Name: call.Name, Args: args}, nil
}

// FinishReason maps the wire finish reason onto the canonical enum.
func FinishReason(raw genai.FinishReason) messages.FinishReason {
	switch raw {
	case "":
		return ""
	case genai.FinishReasonStop:
		return messages.FinishStop
	case genai.FinishReasonMaxTokens:
		return messages.FinishLength
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
		return messages.FinishContentFilter
	default:
		return messages.FinishOther
	}
}

// UsageToCanonical maps usage metadata onto the canonical record. Thought
// tokens count toward completion, mirroring how reasoning tokens are
// reported elsewhere, and are echoed in the reasoning detail.
func UsageToCanonical(md *genai.GenerateContentResponseUsageMetadata) usage.Usage {
	if md == nil {
		return usage.Usage{}
	}
	out := usage.Usage{
		PromptTokens:     int64(md.PromptTokenCount),
		CompletionTokens: int64(md.CandidatesTokenCount) + int64(md.ThoughtsTokenCount),
		TotalTokens:      int64(md.TotalTokenCount),
		PromptTokensDetails: usage.PromptTokensDetails{
			CachedTokens: int64(md.CachedContentTokenCount),
		},
		CompletionTokensDetails: usage.CompletionTokensDetails{
			ReasoningTokens: int64(md.ThoughtsTokenCount),
		},
	}
	if md.ToolUsePromptTokenCount > 0 {
		out.SetExt("tool_use_prompt_tokens", int64(md.ToolUsePromptTokenCount))
	}
	out.Normalize(Name)
	return out
}
