package messages

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/casualjim/babel/pkg/usage"
)

// FinishReason is the canonical mapping of a provider's stop/finish signal.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishContentFilter FinishReason = "content_filter"
	FinishOther         FinishReason = "other"
)

// PartDelta is an incremental update to a part under construction.
// Implementations are TextDelta and ToolCallDelta.
type PartDelta interface {
	partDelta()
}

// TextDelta carries a text fragment. Fragments are concatenated in order,
// never replaced; an empty fragment is valid.
type TextDelta struct {
	Text string   `json:"text"`
	_    struct{} // require keyed usage
}

func (TextDelta) partDelta() {}

// ToolCallDelta carries an incremental update for the tool call at Index in
// the tool-call list under construction. ID and Name are seeded by the first
// delta for an index (empty means not present on this fragment); Args is a
// raw JSON-text fragment appended to the slot's argument buffer.
type ToolCallDelta struct {
	Index int      `json:"index"`
	ID    string   `json:"id,omitempty"`
	Name  string   `json:"name,omitempty"`
	Args  string   `json:"args,omitempty"`
	_     struct{} // require keyed usage
}

func (ToolCallDelta) partDelta() {}

// MessageDelta is one increment of a streaming message. Role is set at most
// once, by the first delta that carries it.
type MessageDelta struct {
	Role    Role        `json:"role,omitempty"`
	Content []PartDelta `json:"content,omitempty"`
	_       struct{}    // require keyed usage
}

// StreamEvent is the unit a provider stream adapter emits and the
// reassembler consumes, exactly once. It is never persisted.
// Implementations are DeltaEvent and EndEvent.
type StreamEvent interface {
	streamEvent()
}

// DeltaEvent wraps one message increment.
type DeltaEvent struct {
	Delta MessageDelta `json:"delta"`
	_     struct{}     // require keyed usage
}

func (DeltaEvent) streamEvent() {}

// EndEvent terminates a message stream, optionally carrying the provider's
// token accounting and finish signal.
type EndEvent struct {
	Usage        *usage.Usage `json:"usage,omitempty"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	_            struct{}     // require keyed usage
}

func (EndEvent) streamEvent() {}

var (
	textDeltaJSON     = []byte(`{"type":"text"}`)
	toolCallDeltaJSON = []byte(`{"type":"tool_call"}`)
	deltaEventJSON    = []byte(`{"type":"delta"}`)
	endEventJSON      = []byte(`{"type":"end"}`)
)

func (t TextDelta) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(textDeltaJSON, "text", t.Text)
}

func (t *TextDelta) UnmarshalJSON(input []byte) error {
	text := gjson.GetBytes(input, "text")
	if !text.Exists() {
		return errors.New("missing required field 'text'")
	}
	t.Text = text.String()
	return nil
}

func (t ToolCallDelta) MarshalJSON() ([]byte, error) {
	data, err := sjson.SetBytes(toolCallDeltaJSON, "index", t.Index)
	if err != nil {
		return nil, err
	}
	if t.ID != "" {
		if data, err = sjson.SetBytes(data, "id", t.ID); err != nil {
			return nil, err
		}
	}
	if t.Name != "" {
		if data, err = sjson.SetBytes(data, "name", t.Name); err != nil {
			return nil, err
		}
	}
	if t.Args != "" {
		if data, err = sjson.SetBytes(data, "args", t.Args); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (t *ToolCallDelta) UnmarshalJSON(input []byte) error {
	index := gjson.GetBytes(input, "index")
	if !index.Exists() {
		return errors.New("missing required field 'index'")
	}
	t.Index = int(index.Int())
	t.ID = gjson.GetBytes(input, "id").String()
	t.Name = gjson.GetBytes(input, "name").String()
	t.Args = gjson.GetBytes(input, "args").String()
	return nil
}

func (m MessageDelta) MarshalJSON() ([]byte, error) {
	data := []byte(`{}`)
	var err error
	if m.Role != "" {
		if data, err = sjson.SetBytes(data, "role", string(m.Role)); err != nil {
			return nil, err
		}
	}
	if m.Content != nil {
		content, err := json.Marshal(m.Content)
		if err != nil {
			return nil, err
		}
		if data, err = sjson.SetRawBytes(data, "content", content); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (m *MessageDelta) UnmarshalJSON(input []byte) error {
	if !gjson.ValidBytes(input) {
		return fmt.Errorf("invalid json: %s", input)
	}
	m.Role = Role(gjson.GetBytes(input, "role").String())
	content := gjson.GetBytes(input, "content")
	if !content.Exists() {
		m.Content = nil
		return nil
	}
	if !content.IsArray() {
		return errors.New("delta content must be an array")
	}
	aj := content.Array()
	deltas := make([]PartDelta, len(aj))
	for idx, ajv := range aj {
		switch tpe := ajv.Get("type").String(); tpe {
		case "text":
			var d TextDelta
			if err := d.UnmarshalJSON([]byte(ajv.Raw)); err != nil {
				return fmt.Errorf("invalid text delta at %d: %w", idx, err)
			}
			deltas[idx] = d
		case "tool_call":
			var d ToolCallDelta
			if err := d.UnmarshalJSON([]byte(ajv.Raw)); err != nil {
				return fmt.Errorf("invalid tool call delta at %d: %w", idx, err)
			}
			deltas[idx] = d
		default:
			return fmt.Errorf("part delta at %d has an unknown type %q", idx, tpe)
		}
	}
	m.Content = deltas
	return nil
}

func (d DeltaEvent) MarshalJSON() ([]byte, error) {
	delta, err := json.Marshal(d.Delta)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(deltaEventJSON, "delta", delta)
}

func (d *DeltaEvent) UnmarshalJSON(input []byte) error {
	delta := gjson.GetBytes(input, "delta")
	if !delta.Exists() {
		return errors.New("missing required field 'delta'")
	}
	return d.Delta.UnmarshalJSON([]byte(delta.Raw))
}

func (e EndEvent) MarshalJSON() ([]byte, error) {
	data := endEventJSON
	var err error
	if e.Usage != nil {
		u, err := json.Marshal(e.Usage)
		if err != nil {
			return nil, err
		}
		if data, err = sjson.SetRawBytes(data, "usage", u); err != nil {
			return nil, err
		}
	}
	if e.FinishReason != "" {
		if data, err = sjson.SetBytes(data, "finish_reason", string(e.FinishReason)); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (e *EndEvent) UnmarshalJSON(input []byte) error {
	if uv := gjson.GetBytes(input, "usage"); uv.Exists() && uv.IsObject() {
		var u usage.Usage
		if err := json.Unmarshal([]byte(uv.Raw), &u); err != nil {
			return fmt.Errorf("invalid usage: %w", err)
		}
		e.Usage = &u
	}
	e.FinishReason = FinishReason(gjson.GetBytes(input, "finish_reason").String())
	return nil
}

// UnmarshalStreamEvent decodes a tagged stream event ("delta" or "end").
func UnmarshalStreamEvent(input []byte) (StreamEvent, error) {
	switch tpe := gjson.GetBytes(input, "type").String(); tpe {
	case "delta":
		var ev DeltaEvent
		if err := ev.UnmarshalJSON(input); err != nil {
			return nil, err
		}
		return ev, nil
	case "end":
		var ev EndEvent
		if err := ev.UnmarshalJSON(input); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown stream event type %q", tpe)
	}
}
