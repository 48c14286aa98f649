package openaicompat

import (
	json "github.com/goccy/go-json"

	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/pkg/usage"
	"github.com/casualjim/babel/provider"
)

// StreamAdapter maps chat-completions stream chunks onto canonical events.
// The dialect keys tool-call deltas by position, but some compatible
// providers drop the index on continuation chunks and key by id instead, so
// the adapter keeps an id-to-index table and synthesizes stable canonical
// indices either way. One adapter serves exactly one stream.
type StreamAdapter struct {
	policy Policy

	roleSent  bool
	idToIndex map[string]int
	nextIndex int

	finish messages.FinishReason
	usage  *usage.Usage
}

// NewStreamAdapter creates an adapter for a single stream.
func NewStreamAdapter(p Policy) *StreamAdapter {
	return &StreamAdapter{policy: p, idToIndex: make(map[string]int)}
}

// Events maps one raw stream record. Termination is signalled by the frame
// sentinel, not by a chunk, so Events never emits the end event; see End.
func (a *StreamAdapter) Events(raw json.RawMessage) ([]messages.StreamEvent, error) {
	var chunk StreamChunk
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return nil, &provider.ContentConversionError{Provider: a.policy.Provider, Detail: "decode stream chunk", Cause: err}
	}

	if chunk.Usage != nil {
		u := UsageToCanonical(a.policy, chunk.Usage)
		a.usage = &u
	}
	if len(chunk.Choices) == 0 {
		return nil, nil
	}

	choice := chunk.Choices[0]
	if choice.FinishReason != nil {
		a.finish = FinishReason(choice.FinishReason)
	}

	delta := messages.MessageDelta{}
	if choice.Delta.Role != "" && !a.roleSent {
		delta.Role = canonicalRole(choice.Delta.Role)
		a.roleSent = true
	}
	if choice.Delta.Content != nil && *choice.Delta.Content != "" {
		delta.Content = append(delta.Content, messages.TextDelta{Text: *choice.Delta.Content})
	}
	for _, call := range choice.Delta.ToolCalls {
		delta.Content = append(delta.Content, a.toolCallDelta(call))
	}

	if delta.Role == "" && len(delta.Content) == 0 {
		return nil, nil
	}
	return []messages.StreamEvent{messages.DeltaEvent{Delta: delta}}, nil
}

func (a *StreamAdapter) toolCallDelta(call ToolCall) messages.ToolCallDelta {
	var idx int
	switch {
	case call.Index != nil:
		idx = *call.Index
		if call.ID != "" {
			a.idToIndex[call.ID] = idx
		}
	case call.ID != "":
		known, ok := a.idToIndex[call.ID]
		if !ok {
			known = a.nextIndex
			a.idToIndex[call.ID] = known
		}
		idx = known
	default:
		// continuation without index or id targets the open slot
		idx = a.nextIndex - 1
		if idx < 0 {
			idx = 0
		}
	}
	if idx >= a.nextIndex {
		a.nextIndex = idx + 1
	}
	return messages.ToolCallDelta{
		Index: idx,
		ID:    call.ID,
		Name:  call.Function.Name,
		Args:  call.Function.Arguments,
	}
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
