package gemini

import (
	json "github.com/goccy/go-json"
	"google.golang.org/genai"

	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/pkg/usage"
	"github.com/casualjim/babel/provider"
)

// StreamAdapter maps generateContent stream records onto canonical events.
// Gemini never fragments a function call across chunks, so every call
// arrives whole and takes the next canonical tool index. Usage metadata is
// cumulative per chunk; the last one observed wins. One adapter serves
// exactly one stream.
type StreamAdapter struct {
	roleSent bool
	nextTool int

	finish messages.FinishReason
	usage  *usage.Usage
}

// NewStreamAdapter creates an adapter for a single stream.
func NewStreamAdapter() *StreamAdapter {
	return &StreamAdapter{}
}

// Events maps one raw stream record. The wire signals completion with a
// finish reason on the last chunk rather than a dedicated stop record, so
// the end event comes from End.
func (a *StreamAdapter) Events(raw json.RawMessage) ([]messages.StreamEvent, error) {
	var chunk genai.GenerateContentResponse
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return nil, &provider.ContentConversionError{Provider: Name, Detail: "decode stream chunk", Cause: err}
	}

	if chunk.UsageMetadata != nil {
		u := UsageToCanonical(chunk.UsageMetadata)
		a.usage = &u
	}
	if len(chunk.Candidates) == 0 {
		return nil, nil
	}

	candidate := chunk.Candidates[0]
	if candidate.FinishReason != "" {
		a.finish = FinishReason(candidate.FinishReason)
	}
	if candidate.Content == nil {
		return nil, nil
	}

	delta := messages.MessageDelta{}
	if !a.roleSent {
		delta.Role = messages.RoleAssistant
		a.roleSent = true
	}
	for _, part := range candidate.Content.Parts {
		switch {
		case part == nil:
		case part.Text != "" && !part.Thought:
			delta.Content = append(delta.Content, messages.TextDelta{Text: part.Text})
		case part.FunctionCall != nil:
			call, err := fromFunctionCall(part.FunctionCall)
			if err != nil {
				return nil, err
			}
			delta.Content = append(delta.Content, messages.ToolCallDelta{
				Index: a.nextTool,
				ID:    call.ID,
				Name:  call.Name,
				Args:  string(call.Args),
			})
			a.nextTool++
		}
	}

	if delta.Role == "" && len(delta.Content) == 0 {
		return nil, nil
	}
	return []messages.StreamEvent{messages.DeltaEvent{Delta: delta}}, nil
}

// End assembles the end event from the finish reason and usage accumulated
// over the stream.
func (a *StreamAdapter) End() messages.EndEvent {
	return messages.EndEvent{Usage: a.usage, FinishReason: a.finish}
}
