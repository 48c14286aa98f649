package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/provider"
	"github.com/casualjim/babel/tool"
)

type lookupArgs struct {
	City string `json:"city"`
}

func TestToRequest(t *testing.T) {
	temp := 0.5
	maxTokens := int64(2048)
	req := provider.Request{
		Model:       "claude-sonnet-4-20250514",
		System:      "be brief",
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Messages: []messages.Message{
			messages.System("and precise"),
			messages.User(messages.Text("weather in Oslo?")),
			messages.Assistant(
				messages.Text("let me check"),
				messages.ToolCall("toolu_1", "weather", json.RawMessage(`{"city":"Oslo"}`)),
			),
			messages.Tool(messages.ToolResult("toolu_1", "weather", messages.Text("sunny"))),
		},
		Tools: []tool.Definition{
			tool.Must("weather", tool.Description("city weather"), tool.Parameters(tool.ParametersFor[lookupArgs]())),
		},
	}

	params, err := ToRequest(req)
	require.NoError(t, err)

	assert.Equal(t, int64(2048), params.MaxTokens)
	assert.Equal(t, 0.5, params.Temperature.Value)

	// both the request field and system-role messages fold into system blocks
	require.Len(t, params.System, 2)
	assert.Equal(t, "be brief", params.System[0].Text)
	assert.Equal(t, "and precise", params.System[1].Text)

	require.Len(t, params.Messages, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, params.Messages[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, params.Messages[1].Role)

	asst := params.Messages[1].Content
	require.Len(t, asst, 2)
	assert.Equal(t, "let me check", asst[0].OfText.Text)
	require.NotNil(t, asst[1].OfToolUse)
	assert.Equal(t, "toolu_1", asst[1].OfToolUse.ID)
	assert.Equal(t, "weather", asst[1].OfToolUse.Name)

	// tool results ride user-role messages
	toolMsg := params.Messages[2]
	assert.Equal(t, anthropic.MessageParamRoleUser, toolMsg.Role)
	require.NotNil(t, toolMsg.Content[0].OfToolResult)
	result := toolMsg.Content[0].OfToolResult
	assert.Equal(t, "toolu_1", result.ToolUseID)
	require.Len(t, result.Content, 1)
	envelope := gjson.Parse(result.Content[0].OfText.Text)
	assert.Equal(t, "weather", envelope.Get("tool_result.name").String())
	assert.True(t, envelope.Get("tool_result.content").IsArray())

	require.Len(t, params.Tools, 1)
	assert.Equal(t, "weather", params.Tools[0].OfTool.Name)
	assert.NotNil(t, params.Tools[0].OfTool.InputSchema.Properties)
}

func TestToRequest_DefaultMaxTokens(t *testing.T) {
	params, err := ToRequest(provider.Request{
		Model:    "claude-sonnet-4-20250514",
		Messages: []messages.Message{messages.User(messages.Text("hi"))},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(defaultMaxTokens), params.MaxTokens)
}

func TestToRequest_Images(t *testing.T) {
	params, err := ToRequest(provider.Request{
		Model: "claude-sonnet-4-20250514",
		Messages: []messages.Message{
			messages.User(
				messages.BlobBase64("aGVsbG8=", "image/png"),
				messages.BlobURI("https://example.com/cat.jpg", "image/jpeg"),
			),
		},
	})
	require.NoError(t, err)

	content := params.Messages[0].Content
	require.Len(t, content, 2)

	inline := content[0].OfImage
	require.NotNil(t, inline)
	require.NotNil(t, inline.Source.OfBase64)
	assert.Equal(t, "aGVsbG8=", inline.Source.OfBase64.Data)
	assert.Equal(t, anthropic.Base64ImageSourceMediaType("image/png"), inline.Source.OfBase64.MediaType)

	linked := content[1].OfImage
	require.NotNil(t, linked)
	require.NotNil(t, linked.Source.OfURL)
	assert.Equal(t, "https://example.com/cat.jpg", linked.Source.OfURL.URL)
}

func TestToRequest_UnrepresentableParts(t *testing.T) {
	tests := []struct {
		name string
		part messages.Part
		kind string
	}{
		{"file ref", messages.FileRef("file-abc", "application/pdf"), "file_ref"},
		{"executable code", messages.ExecutableCode("python", "print(1)"), "executable_code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToRequest(provider.Request{
				Model:    "claude-sonnet-4-20250514",
				Messages: []messages.Message{messages.User(tt.part)},
			})
			var unsupported *provider.UnsupportedConversionError
			require.ErrorAs(t, err, &unsupported)
			assert.Equal(t, tt.kind, unsupported.Kind)
		})
	}
}

func TestRoundTrip_AssistantMessage(t *testing.T) {
	original := messages.Assistant(
		messages.Text("let me check"),
		messages.ToolCall("toolu_1", "weather", json.RawMessage(`{"city":"Oslo"}`)),
	)

	params, err := ToRequest(provider.Request{
		Model:    "claude-sonnet-4-20250514",
		Messages: []messages.Message{original},
	})
	require.NoError(t, err)
	require.Len(t, params.Messages, 1)

	// request content blocks marshal to the same shapes response blocks use
	content, err := json.Marshal(params.Messages[0].Content)
	require.NoError(t, err)

	var resp anthropic.Message
	require.NoError(t, json.Unmarshal([]byte(`{"id":"msg_rt","type":"message","role":"assistant","content":`+string(content)+`}`), &resp))

	got, err := FromResponse(&resp)
	require.NoError(t, err)
	assert.Equal(t, original.Role, got.Role)
	require.Len(t, got.Content, len(original.Content))
	assert.Equal(t, original.Content[0], got.Content[0])

	call := got.Content[1].(messages.ToolCallPart)
	want := original.Content[1].(messages.ToolCallPart)
	assert.Equal(t, want.ID, call.ID)
	assert.Equal(t, want.Name, call.Name)
	assert.JSONEq(t, string(want.Args), string(call.Args))

	unknown, ok := got.Ext.Get("unknown_blocks")
	assert.False(t, ok, "no block should fall through to the extension map: %v", unknown)
}

func TestFromResponse(t *testing.T) {
	var resp anthropic.Message
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "msg_01",
		"model": "claude-sonnet-4-20250514",
		"role": "assistant",
		"stop_reason": "tool_use",
		"content": [
			{"type": "text", "text": "checking"},
			{"type": "tool_use", "id": "toolu_1", "name": "weather", "input": {"city": "Oslo"}},
			{"type": "server_tool_use", "id": "srvtoolu_1", "name": "web_search", "input": {}}
		]
	}`), &resp))

	msg, err := FromResponse(&resp)
	require.NoError(t, err)
	assert.Equal(t, messages.RoleAssistant, msg.Role)
	require.Len(t, msg.Content, 2)
	assert.Equal(t, messages.Text("checking"), msg.Content[0])

	call, ok := msg.Content[1].(messages.ToolCallPart)
	require.True(t, ok)
	assert.Equal(t, "toolu_1", call.ID)
	assert.JSONEq(t, `{"city":"Oslo"}`, string(call.Args))

	id, _ := msg.Ext.Get("id")
	assert.Equal(t, "msg_01", id)
	stop, _ := msg.Ext.Get("stop_reason")
	assert.Equal(t, "tool_use", stop)

	// blocks with no canonical slot survive verbatim
	kept, ok := msg.Ext.Get("unknown_blocks")
	require.True(t, ok)
	blocks := kept.([]json.RawMessage)
	require.Len(t, blocks, 1)
	assert.Equal(t, "server_tool_use", gjson.GetBytes(blocks[0], "type").String())
}

func TestFromResponse_Errors(t *testing.T) {
	var missing *provider.MissingDataError

	_, err := FromResponse(nil)
	require.ErrorAs(t, err, &missing)

	_, err = FromResponse(&anthropic.Message{})
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "content", missing.Field)
}

func TestFinishReason(t *testing.T) {
	tests := []struct {
		raw  string
		want messages.FinishReason
	}{
		{"", ""},
		{"end_turn", messages.FinishStop},
		{"stop_sequence", messages.FinishStop},
		{"max_tokens", messages.FinishLength},
		{"tool_use", messages.FinishToolCalls},
		{"refusal", messages.FinishContentFilter},
		{"pause_turn", messages.FinishOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FinishReason(tt.raw))
	}
}

func TestUsageToCanonical(t *testing.T) {
	got := UsageToCanonical(anthropic.Usage{
		InputTokens:              100,
		OutputTokens:             40,
		CacheReadInputTokens:     30,
		CacheCreationInputTokens: 12,
	})
	assert.Equal(t, int64(100), got.PromptTokens)
	assert.Equal(t, int64(40), got.CompletionTokens)
	assert.Equal(t, int64(140), got.TotalTokens)
	assert.Equal(t, int64(30), got.PromptTokensDetails.CachedTokens)
	created, ok := got.Ext.Get("cache_creation_input_tokens")
	require.True(t, ok)
	assert.Equal(t, int64(12), created)
}
