package openai

import (
	json "github.com/goccy/go-json"
	"github.com/openai/openai-go"

	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/pkg/usage"
	"github.com/casualjim/babel/provider"
)

// StreamAdapter maps SDK stream chunks onto canonical events. The dialect
// keys tool-call deltas by position within the message, which matches the
// canonical index contract directly. One adapter serves exactly one stream.
type StreamAdapter struct {
	roleSent bool

	finish messages.FinishReason
	usage  *usage.Usage
}

// NewStreamAdapter creates an adapter for a single stream.
func NewStreamAdapter() *StreamAdapter {
	return &StreamAdapter{}
}

// Events maps one raw stream record. Termination is signalled by the frame
// sentinel, not by a chunk, so Events never emits the end event; see End.
func (a *StreamAdapter) Events(raw json.RawMessage) ([]messages.StreamEvent, error) {
	var chunk openai.ChatCompletionChunk
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return nil, &provider.ContentConversionError{Provider: Name, Detail: "decode stream chunk", Cause: err}
	}

	if chunk.Usage.TotalTokens > 0 || chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
		u := UsageToCanonical(chunk.Usage)
		a.usage = &u
	}
	if len(chunk.Choices) == 0 {
		return nil, nil
	}

	choice := chunk.Choices[0]
	if choice.FinishReason != "" {
		a.finish = FinishReason(choice.FinishReason)
	}

	delta := messages.MessageDelta{}
	if choice.Delta.Role != "" && !a.roleSent {
		delta.Role = canonicalRole(choice.Delta.Role)
		a.roleSent = true
	}
	if choice.Delta.Content != "" {
		delta.Content = append(delta.Content, messages.TextDelta{Text: choice.Delta.Content})
	}
	for _, call := range choice.Delta.ToolCalls {
		delta.Content = append(delta.Content, messages.ToolCallDelta{
			Index: int(call.Index),
			ID:    call.ID,
			Name:  call.Function.Name,
			Args:  call.Function.Arguments,
		})
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

func canonicalRole(wire string) messages.Role {
	switch wire {
	case "user":
		return messages.RoleUser
	case "system":
		return messages.RoleSystem
	case "tool":
		return messages.RoleTool
	default:
		return messages.RoleAssistant
	}
}
