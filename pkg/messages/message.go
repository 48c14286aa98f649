package messages

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/casualjim/babel/pkg/stdx"
)

// Role identifies the author of a message. It is fixed at construction and
// immutable afterwards.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Valid reports whether the role is one of the four canonical roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Message is the canonical conversation unit: a role, an ordered part
// sequence it exclusively owns, a timestamp, and a pass-through extension
// map. It holds no reference into provider-specific types; all provider
// coupling lives in the converter layer.
type Message struct {
	Role      Role            `json:"role"`
	Content   Parts           `json:"content"`
	Timestamp strfmt.DateTime `json:"timestamp"`
	Ext       *Ext            `json:"ext,omitempty"`
	_         struct{}        // require keyed usage
}

// New builds a validated message stamped with the current time. Content must
// be non-empty and must not consist solely of empty text; tool-call IDs must
// be non-empty.
func New(role Role, parts ...Part) (Message, error) {
	msg := Message{
		Role:      role,
		Content:   Parts(parts),
		Timestamp: strfmt.DateTime(time.Now().UTC()),
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// User builds a user message. It panics when the parts are invalid; use New
// for error returns.
func User(parts ...Part) Message { return stdx.Must1(New(RoleUser, parts...)) }

// Assistant builds an assistant message. It panics when the parts are
// invalid; use New for error returns.
func Assistant(parts ...Part) Message { return stdx.Must1(New(RoleAssistant, parts...)) }

// System builds a system message from plain text.
func System(text string) Message { return stdx.Must1(New(RoleSystem, Text(text))) }

// Tool builds a tool message carrying tool results.
func Tool(parts ...Part) Message { return stdx.Must1(New(RoleTool, parts...)) }

// Validate enforces the persisted-message invariants. An empty-content
// message is only a valid intermediate state during streaming and never
// passes here.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid role %q", m.Role)
	}
	if len(m.Content) == 0 {
		return errors.New("message content must not be empty")
	}
	onlyEmptyText := true
	for i, part := range m.Content {
		switch p := part.(type) {
		case TextPart:
			if strings.TrimSpace(p.Text) != "" {
				onlyEmptyText = false
			}
		case ToolCallPart:
			if p.ID == "" {
				return fmt.Errorf("tool call at %d has an empty id", i)
			}
			onlyEmptyText = false
		case ToolResultPart:
			if p.CallID == "" {
				return fmt.Errorf("tool result at %d has an empty call_id", i)
			}
			onlyEmptyText = false
		case nil:
			return fmt.Errorf("nil part at %d", i)
		default:
			onlyEmptyText = false
		}
	}
	if onlyEmptyText {
		return errors.New("message content consists solely of empty text")
	}
	return nil
}

// TextContent joins the text of all text parts, in order. Non-text parts are
// skipped.
func (m Message) TextContent() string {
	var sb strings.Builder
	for _, part := range m.Content {
		if t, ok := part.(TextPart); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

var messageJSON = []byte(`{}`)

// MarshalJSON serializes the message in the canonical wire form: role,
// tagged-part content array, RFC3339 timestamp, and the ext map when present.
func (m Message) MarshalJSON() ([]byte, error) {
	data, err := sjson.SetBytes(messageJSON, "role", string(m.Role))
	if err != nil {
		return nil, err
	}
	content, err := json.Marshal(m.Content)
	if err != nil {
		return nil, err
	}
	if data, err = sjson.SetRawBytes(data, "content", content); err != nil {
		return nil, err
	}
	if data, err = sjson.SetBytes(data, "timestamp", m.Timestamp.String()); err != nil {
		return nil, err
	}
	return marshalExt(data, m.Ext)
}

// UnmarshalJSON decodes the canonical wire form. Unknown top-level fields are
// ignored; unknown part types fail.
func (m *Message) UnmarshalJSON(input []byte) error {
	if !gjson.ValidBytes(input) {
		return fmt.Errorf("invalid json: %s", input)
	}
	role := gjson.GetBytes(input, "role")
	if !role.Exists() {
		return errors.New("missing required field 'role'")
	}
	content := gjson.GetBytes(input, "content")
	if !content.Exists() {
		return errors.New("missing required field 'content'")
	}
	var parts Parts
	if err := parts.UnmarshalJSON([]byte(content.Raw)); err != nil {
		return err
	}
	var ts strfmt.DateTime
	if tv := gjson.GetBytes(input, "timestamp"); tv.Exists() && tv.String() != "" {
		parsed, err := strfmt.ParseDateTime(tv.String())
		if err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
		ts = parsed
	}
	m.Role = Role(role.String())
	m.Content = parts
	m.Timestamp = ts
	m.Ext = unmarshalExt(input)
	return nil
}
