package messages

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParts_MarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		parts Parts
		want  string
	}{
		{
			name:  "nil parts",
			parts: nil,
			want:  `null`,
		},
		{
			name:  "empty parts",
			parts: Parts{},
			want:  `[]`,
		},
		{
			name:  "single text part",
			parts: Parts{Text("hello")},
			want:  `[{"type":"text","text":"hello"}]`,
		},
		{
			name:  "empty text fragment",
			parts: Parts{Text("")},
			want:  `[{"type":"text","text":""}]`,
		},
		{
			name:  "base64 blob",
			parts: Parts{BlobBase64("aGVsbG8=", "image/png")},
			want:  `[{"type":"blob","data_ref":{"kind":"base64","data":"aGVsbG8="},"mime_type":"image/png"}]`,
		},
		{
			name:  "uri blob",
			parts: Parts{BlobURI("https://example.com/cat.png", "image/png")},
			want:  `[{"type":"blob","data_ref":{"kind":"uri","uri":"https://example.com/cat.png"},"mime_type":"image/png"}]`,
		},
		{
			name:  "tool call",
			parts: Parts{ToolCall("call_1", "search", json.RawMessage(`{"q":"cats"}`))},
			want:  `[{"type":"tool_call","id":"call_1","name":"search","args":{"q":"cats"}}]`,
		},
		{
			name:  "tool call without args",
			parts: Parts{ToolCall("call_1", "ping", nil)},
			want:  `[{"type":"tool_call","id":"call_1","name":"ping","args":null}]`,
		},
		{
			name:  "tool result with nested text",
			parts: Parts{ToolResult("call_1", "search", Text("42 results"))},
			want:  `[{"type":"tool_result","call_id":"call_1","name":"search","content":[{"type":"text","text":"42 results"}]}]`,
		},
		{
			name:  "file ref",
			parts: Parts{FileRef("files/abc-123", "video/mp4")},
			want:  `[{"type":"file_ref","uri":"files/abc-123","mime_type":"video/mp4"}]`,
		},
		{
			name:  "executable code",
			parts: Parts{ExecutableCode("python", "print(1)")},
			want:  `[{"type":"executable_code","language":"python","code":"print(1)"}]`,
		},
		{
			name: "mixed sequence keeps order",
			parts: Parts{
				Text("looking that up"),
				ToolCall("call_1", "search", json.RawMessage(`{}`)),
			},
			want: `[{"type":"text","text":"looking that up"},{"type":"tool_call","id":"call_1","name":"search","args":{}}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.parts)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestParts_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Parts
		wantErr string
	}{
		{
			name:  "text",
			input: `[{"type":"text","text":"hi"}]`,
			want:  Parts{Text("hi")},
		},
		{
			name:  "tool call with object args",
			input: `[{"type":"tool_call","id":"call_1","name":"search","args":{"q":"cats"}}]`,
			want:  Parts{ToolCall("call_1", "search", json.RawMessage(`{"q":"cats"}`))},
		},
		{
			name:  "tool call with null args decodes to absence",
			input: `[{"type":"tool_call","id":"call_1","name":"ping","args":null}]`,
			want:  Parts{ToolCall("call_1", "ping", nil)},
		},
		{
			name:  "blob with base64 ref",
			input: `[{"type":"blob","data_ref":{"kind":"base64","data":"aGk="},"mime_type":"audio/mp3"}]`,
			want:  Parts{BlobBase64("aGk=", "audio/mp3")},
		},
		{
			name:    "unknown part type",
			input:   `[{"type":"telepathy"}]`,
			wantErr: `unknown part type "telepathy"`,
		},
		{
			name:    "not an array",
			input:   `{"type":"text","text":"hi"}`,
			wantErr: "content must be an array",
		},
		{
			name:    "tool call missing id",
			input:   `[{"type":"tool_call","name":"search"}]`,
			wantErr: "missing required field 'id'",
		},
		{
			name:    "blob missing data ref",
			input:   `[{"type":"blob","mime_type":"image/png"}]`,
			wantErr: "missing required field 'data_ref'",
		},
		{
			name:    "unknown data ref kind",
			input:   `[{"type":"blob","data_ref":{"kind":"carrier-pigeon"},"mime_type":"image/png"}]`,
			wantErr: `unknown data ref kind "carrier-pigeon"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Parts
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParts_RoundTripPreservesExt(t *testing.T) {
	ext := NewExt()
	ext.Set("provider_field", "kept")
	ext.Set("weight", float64(3))

	parts := Parts{TextPart{Text: "hello", Ext: ext}}
	data, err := json.Marshal(parts)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"text","text":"hello","ext":{"provider_field":"kept","weight":3}}]`, string(data))

	var back Parts
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, 1)
	text, ok := back[0].(TextPart)
	require.True(t, ok)
	require.NotNil(t, text.Ext)
	v, _ := text.Ext.Get("provider_field")
	assert.Equal(t, "kept", v)
	w, _ := text.Ext.Get("weight")
	assert.Equal(t, float64(3), w)
}

func TestParts_RoundTrip(t *testing.T) {
	parts := Parts{
		Text("before"),
		BlobURI("s3://bucket/key", "application/pdf"),
		ToolCall("call_9", "lookup", json.RawMessage(`{"id":9}`)),
		ToolResult("call_9", "lookup", Text("found"), BlobBase64("eA==", "image/png")),
		FileRef("files/xyz", ""),
		ExecutableCode("go", `fmt.Println("hi")`),
	}
	data, err := json.Marshal(parts)
	require.NoError(t, err)

	var back Parts
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, parts, back)
}
