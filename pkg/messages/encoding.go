package messages

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Several provider formats only accept a string as tool output. The
// canonical-to-string projection wraps the result's part sequence in an
// envelope so the structure survives the round trip:
//
//	{"tool_result":{"name":"<tool name>","content":[<tagged parts...>]}}
//
// The content is always a JSON array, never a bare value, to keep the
// round-trip shape stable.

var toolResultEnvelopeJSON = []byte(`{"tool_result":{}}`)

// EncodeToolResultContent projects a tool result's part sequence onto a
// single string payload.
func EncodeToolResultContent(name string, content Parts) (string, error) {
	data, err := sjson.SetBytes(toolResultEnvelopeJSON, "tool_result.name", name)
	if err != nil {
		return "", err
	}
	if content == nil {
		content = Parts{}
	}
	parts, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("encode tool result content: %w", err)
	}
	if data, err = sjson.SetRawBytes(data, "tool_result.content", parts); err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeToolResultContent reverses EncodeToolResultContent. When s is not an
// envelope produced by it (a provider or tool returned a plain string), ok is
// false and the caller should treat s as a single text part.
func DecodeToolResultContent(s string) (name string, content Parts, ok bool) {
	if !gjson.Valid(s) {
		return "", nil, false
	}
	env := gjson.Get(s, "tool_result")
	if !env.Exists() || !env.IsObject() {
		return "", nil, false
	}
	raw := env.Get("content")
	if !raw.Exists() || !raw.IsArray() {
		return "", nil, false
	}
	var parts Parts
	if err := parts.UnmarshalJSON([]byte(raw.Raw)); err != nil {
		return "", nil, false
	}
	return env.Get("name").String(), parts, true
}
