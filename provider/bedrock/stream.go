package bedrock

import (
	json "github.com/goccy/go-json"

	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/pkg/usage"
	"github.com/casualjim/babel/provider"
)

// StreamAdapter maps ConverseStream event bodies onto canonical events. The
// wire keys tool input fragments by content block index, which counts every
// block, while the canonical index counts tool calls only; the adapter keeps
// the translation table. The metadata event carrying usage arrives after
// messageStop, so the end event always comes from End, never from Events.
type StreamAdapter struct {
	roleSent    bool
	toolByBlock map[int64]int
	nextTool    int

	finish messages.FinishReason
	usage  *usage.Usage
}

// NewStreamAdapter creates an adapter for a single stream.
func NewStreamAdapter() *StreamAdapter {
	return &StreamAdapter{toolByBlock: make(map[int64]int)}
}

// Events maps one raw stream record.
func (a *StreamAdapter) Events(raw json.RawMessage) ([]messages.StreamEvent, error) {
	var chunk StreamChunk
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return nil, &provider.ContentConversionError{Provider: Name, Detail: "decode stream chunk", Cause: err}
	}

	if chunk.Usage != nil {
		u := UsageToCanonical(chunk.Usage)
		a.usage = &u
	}
	if chunk.StopReason != "" {
		a.finish = FinishReason(chunk.StopReason)
		return nil, nil
	}

	switch {
	case chunk.Role != "":
		if a.roleSent {
			return nil, nil
		}
		a.roleSent = true
		return []messages.StreamEvent{messages.DeltaEvent{
			Delta: messages.MessageDelta{Role: messages.RoleAssistant},
		}}, nil

	case chunk.Start != nil && chunk.Start.ToolUse != nil:
		idx := a.nextTool
		a.nextTool++
		if chunk.ContentBlockIndex != nil {
			a.toolByBlock[*chunk.ContentBlockIndex] = idx
		}
		return []messages.StreamEvent{messages.DeltaEvent{
			Delta: messages.MessageDelta{Content: []messages.PartDelta{
				messages.ToolCallDelta{
					Index: idx,
					ID:    chunk.Start.ToolUse.ToolUseID,
					Name:  chunk.Start.ToolUse.Name,
				},
			}},
		}}, nil

	case chunk.Delta != nil:
		return a.blockDelta(chunk), nil

	default:
		return nil, nil
	}
}

func (a *StreamAdapter) blockDelta(chunk StreamChunk) []messages.StreamEvent {
	switch {
	case chunk.Delta.Text != nil:
		return []messages.StreamEvent{messages.DeltaEvent{
			Delta: messages.MessageDelta{Content: []messages.PartDelta{
				messages.TextDelta{Text: *chunk.Delta.Text},
			}},
		}}
	case chunk.Delta.ToolUse != nil:
		idx := a.nextTool - 1
		if chunk.ContentBlockIndex != nil {
			if known, ok := a.toolByBlock[*chunk.ContentBlockIndex]; ok {
				idx = known
			}
		}
		if idx < 0 {
			return nil
		}
		return []messages.StreamEvent{messages.DeltaEvent{
			Delta: messages.MessageDelta{Content: []messages.PartDelta{
				messages.ToolCallDelta{Index: idx, Args: chunk.Delta.ToolUse.Input},
			}},
		}}
	default:
		return nil
	}
}

// End assembles the end event from the finish reason and usage accumulated
// over the stream.
func (a *StreamAdapter) End() messages.EndEvent {
	return messages.EndEvent{Usage: a.usage, FinishReason: a.finish}
}
