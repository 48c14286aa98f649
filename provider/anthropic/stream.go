package anthropic

import (
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/pkg/usage"
	"github.com/casualjim/babel/provider"
)

// StreamAdapter maps Messages API stream events onto canonical events. The
// wire keys tool input fragments by content block index, which counts every
// block in the message, while the canonical index counts tool calls only;
// the adapter keeps the block-to-tool translation table. One adapter serves
// exactly one stream.
type StreamAdapter struct {
	roleSent    bool
	toolByBlock map[int64]int
	nextTool    int

	finish        messages.FinishReason
	usage         usage.Usage
	cacheCreation int64
	haveUsage     bool
}

// NewStreamAdapter creates an adapter for a single stream.
func NewStreamAdapter() *StreamAdapter {
	return &StreamAdapter{toolByBlock: make(map[int64]int)}
}

// Events maps one raw stream record. The wire has an explicit message_stop
// record, so the end event is emitted from Events; End only covers streams
// that were cut off before it arrived.
func (a *StreamAdapter) Events(raw json.RawMessage) ([]messages.StreamEvent, error) {
	if !gjson.ValidBytes(raw) {
		return nil, &provider.ContentConversionError{Provider: Name, Detail: "malformed stream record"}
	}
	record := gjson.ParseBytes(raw)

	switch record.Get("type").String() {
	case "message_start":
		return a.messageStart(record), nil

	case "content_block_start":
		return a.blockStart(record), nil

	case "content_block_delta":
		return a.blockDelta(record), nil

	case "message_delta":
		if reason := record.Get("delta.stop_reason").String(); reason != "" {
			a.finish = FinishReason(reason)
		}
		if out := record.Get("usage.output_tokens"); out.Exists() {
			a.usage.CompletionTokens = out.Int()
			a.haveUsage = true
		}
		return nil, nil

	case "message_stop":
		return []messages.StreamEvent{a.End()}, nil

	case "error":
		return nil, provider.ParseAPIError(Name, 0, raw)

	default:
		// ping, content_block_stop, and anything newer than this adapter
		return nil, nil
	}
}

func (a *StreamAdapter) messageStart(record gjson.Result) []messages.StreamEvent {
	if u := record.Get("message.usage"); u.Exists() {
		a.usage.PromptTokens = u.Get("input_tokens").Int()
		a.usage.PromptTokensDetails.CachedTokens = u.Get("cache_read_input_tokens").Int()
		a.cacheCreation = u.Get("cache_creation_input_tokens").Int()
		a.haveUsage = true
	}
	if a.roleSent {
		return nil
	}
	a.roleSent = true
	return []messages.StreamEvent{messages.DeltaEvent{
		Delta: messages.MessageDelta{Role: messages.RoleAssistant},
	}}
}

func (a *StreamAdapter) blockStart(record gjson.Result) []messages.StreamEvent {
	block := record.Get("content_block")
	if block.Get("type").String() != "tool_use" {
		return nil
	}
	idx := a.nextTool
	a.nextTool++
	a.toolByBlock[record.Get("index").Int()] = idx
	return []messages.StreamEvent{messages.DeltaEvent{
		Delta: messages.MessageDelta{Content: []messages.PartDelta{
			messages.ToolCallDelta{
				Index: idx,
				ID:    block.Get("id").String(),
				Name:  block.Get("name").String(),
			},
		}},
	}}
}

func (a *StreamAdapter) blockDelta(record gjson.Result) []messages.StreamEvent {
	delta := record.Get("delta")
	switch delta.Get("type").String() {
	case "text_delta":
		return []messages.StreamEvent{messages.DeltaEvent{
			Delta: messages.MessageDelta{Content: []messages.PartDelta{
				messages.TextDelta{Text: delta.Get("text").String()},
			}},
		}}
	case "input_json_delta":
		idx, ok := a.toolByBlock[record.Get("index").Int()]
		if !ok {
			return nil
		}
		return []messages.StreamEvent{messages.DeltaEvent{
			Delta: messages.MessageDelta{Content: []messages.PartDelta{
				messages.ToolCallDelta{Index: idx, Args: delta.Get("partial_json").String()},
			}},
		}}
	default:
		return nil
	}
}

// End assembles the end event from the finish reason and usage accumulated
// over the stream.
func (a *StreamAdapter) End() messages.EndEvent {
	end := messages.EndEvent{FinishReason: a.finish}
	if a.haveUsage {
		u := a.usage
		if a.cacheCreation > 0 {
			u.SetExt("cache_creation_input_tokens", a.cacheCreation)
		}
		u.Normalize(Name)
		end.Usage = &u
	}
	return end
}
