package gemini

import (
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/provider"
	"github.com/casualjim/babel/tool"
)

type lookupArgs struct {
	City string `json:"city"`
}

func TestToRequest(t *testing.T) {
	temp := 0.7
	maxTokens := int64(300)
	req := provider.Request{
		Model:       "gemini-2.0-flash",
		System:      "be brief",
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Messages: []messages.Message{
			messages.System("and precise"),
			messages.User(messages.Text("weather in Oslo?")),
			messages.Assistant(messages.ToolCall("call_1", "weather", json.RawMessage(`{"city":"Oslo"}`))),
			messages.Tool(messages.ToolResult("call_1", "weather", messages.Text("sunny"))),
		},
		Tools: []tool.Definition{
			tool.Must("weather", tool.Description("city weather"), tool.Parameters(tool.ParametersFor[lookupArgs]())),
		},
	}

	out, err := ToRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", out.Model)

	require.NotNil(t, out.Config.Temperature)
	assert.InDelta(t, 0.7, float64(*out.Config.Temperature), 1e-6)
	assert.Equal(t, int32(300), out.Config.MaxOutputTokens)

	require.NotNil(t, out.Config.SystemInstruction)
	require.Len(t, out.Config.SystemInstruction.Parts, 2)
	assert.Equal(t, "be brief", out.Config.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "and precise", out.Config.SystemInstruction.Parts[1].Text)

	require.Len(t, out.Contents, 3)
	assert.Equal(t, genai.RoleUser, out.Contents[0].Role)
	assert.Equal(t, genai.RoleModel, out.Contents[1].Role)

	call := out.Contents[1].Parts[0].FunctionCall
	require.NotNil(t, call)
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "weather", call.Name)
	assert.Equal(t, map[string]any{"city": "Oslo"}, call.Args)

	// tool results ride user-role contents as function responses
	assert.Equal(t, genai.RoleUser, out.Contents[2].Role)
	response := out.Contents[2].Parts[0].FunctionResponse
	require.NotNil(t, response)
	assert.Equal(t, "call_1", response.ID)
	assert.Equal(t, "weather", response.Name)
	content, ok := response.Response["content"].([]any)
	require.True(t, ok)
	require.Len(t, content, 1)

	require.Len(t, out.Config.Tools, 1)
	decls := out.Config.Tools[0].FunctionDeclarations
	require.Len(t, decls, 1)
	assert.Equal(t, "weather", decls[0].Name)
	assert.NotNil(t, decls[0].ParametersJsonSchema)
}

func TestToRequest_RichParts(t *testing.T) {
	req := provider.Request{
		Model: "gemini-2.0-flash",
		Messages: []messages.Message{
			messages.User(
				messages.BlobBase64("aGVsbG8=", "image/png"),
				messages.BlobURI("gs://bucket/cat.jpg", "image/jpeg"),
				messages.FileRef("https://generativelanguage.googleapis.com/v1beta/files/abc", "application/pdf"),
				messages.ExecutableCode("PYTHON", "print(1)"),
			),
		},
	}

	out, err := ToRequest(req)
	require.NoError(t, err)
	parts := out.Contents[0].Parts
	require.Len(t, parts, 4)

	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, []byte("hello"), parts[0].InlineData.Data)
	assert.Equal(t, "image/png", parts[0].InlineData.MIMEType)

	require.NotNil(t, parts[1].FileData)
	assert.Equal(t, "gs://bucket/cat.jpg", parts[1].FileData.FileURI)

	require.NotNil(t, parts[2].FileData)
	assert.Equal(t, "application/pdf", parts[2].FileData.MIMEType)

	require.NotNil(t, parts[3].ExecutableCode)
	assert.Equal(t, genai.Language("PYTHON"), parts[3].ExecutableCode.Language)
	assert.Equal(t, "print(1)", parts[3].ExecutableCode.Code)
}

func TestRoundTrip_RepresentableParts(t *testing.T) {
	original := messages.Assistant(
		messages.Text("result below"),
		messages.BlobBase64("aGVsbG8=", "image/png"),
		messages.FileRef("gs://bucket/out.csv", "text/csv"),
		messages.ExecutableCode("PYTHON", "print(1)"),
		messages.ToolCall("call_1", "weather", json.RawMessage(`{"city":"Oslo"}`)),
	)

	content, err := toContent(original)
	require.NoError(t, err)
	back, err := fromParts(content.Parts)
	require.NoError(t, err)
	require.Len(t, back, len(original.Content))

	assert.Equal(t, original.Content[0], back[0])
	assert.Equal(t, original.Content[1], back[1])
	assert.Equal(t, original.Content[2], back[2])
	assert.Equal(t, original.Content[3], back[3])

	call := back[4].(messages.ToolCallPart)
	assert.Equal(t, "call_1", call.ID)
	assert.JSONEq(t, `{"city":"Oslo"}`, string(call.Args))
}

func TestToRequest_BadBase64(t *testing.T) {
	_, err := ToRequest(provider.Request{
		Model:    "gemini-2.0-flash",
		Messages: []messages.Message{messages.User(messages.BlobBase64("not base64!!", "image/png"))},
	})
	var conversion *provider.ContentConversionError
	require.ErrorAs(t, err, &conversion)
}

func TestFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		ModelVersion: "gemini-2.0-flash-001",
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{
				Role: genai.RoleModel,
				Parts: []*genai.Part{
					{Text: "internal reasoning", Thought: true},
					{Text: "checking"},
					{FunctionCall: &genai.FunctionCall{Name: "weather", Args: map[string]any{"city": "Oslo"}}},
					{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("hello")}},
					{FileData: &genai.FileData{FileURI: "gs://bucket/out.csv", MIMEType: "text/csv"}},
					{ExecutableCode: &genai.ExecutableCode{Language: "PYTHON", Code: "print(1)"}},
				},
			},
		}},
	}

	msg, err := FromResponse(resp)
	require.NoError(t, err)
	require.Len(t, msg.Content, 5)

	// thought parts are not surfaced
	assert.Equal(t, messages.Text("checking"), msg.Content[0])

	call, ok := msg.Content[1].(messages.ToolCallPart)
	require.True(t, ok)
	assert.Equal(t, "weather", call.Name)
	// missing wire IDs get a synthesized stable one
	assert.True(t, strings.HasPrefix(call.ID, "call_"))
	assert.JSONEq(t, `{"city":"Oslo"}`, string(call.Args))

	blob, ok := msg.Content[2].(messages.BlobPart)
	require.True(t, ok)
	assert.Equal(t, "aGVsbG8=", blob.Ref.(messages.Base64Data).Data)

	ref, ok := msg.Content[3].(messages.FileRefPart)
	require.True(t, ok)
	assert.Equal(t, "gs://bucket/out.csv", ref.URI)

	code, ok := msg.Content[4].(messages.ExecutableCodePart)
	require.True(t, ok)
	assert.Equal(t, "PYTHON", code.Language)

	version, _ := msg.Ext.Get("model_version")
	assert.Equal(t, "gemini-2.0-flash-001", version)
	finish, _ := msg.Ext.Get("finish_reason")
	assert.Equal(t, "STOP", finish)
}

func TestFromResponse_Errors(t *testing.T) {
	var missing *provider.MissingDataError

	_, err := FromResponse(nil)
	require.ErrorAs(t, err, &missing)

	_, err = FromResponse(&genai.GenerateContentResponse{})
	require.ErrorAs(t, err, &missing)

	_, err = FromResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{}}},
	})
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "content parts", missing.Field)
}

func TestFinishReason(t *testing.T) {
	tests := []struct {
		raw  genai.FinishReason
		want messages.FinishReason
	}{
		{"", ""},
		{genai.FinishReasonStop, messages.FinishStop},
		{genai.FinishReasonMaxTokens, messages.FinishLength},
		{genai.FinishReasonSafety, messages.FinishContentFilter},
		{genai.FinishReasonProhibitedContent, messages.FinishContentFilter},
		{genai.FinishReasonBlocklist, messages.FinishContentFilter},
		{genai.FinishReasonRecitation, messages.FinishOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FinishReason(tt.raw))
	}
}

func TestUsageToCanonical(t *testing.T) {
	assert.Zero(t, UsageToCanonical(nil).TotalTokens)

	got := UsageToCanonical(&genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:        100,
		CandidatesTokenCount:    40,
		ThoughtsTokenCount:      15,
		TotalTokenCount:         155,
		CachedContentTokenCount: 20,
		ToolUsePromptTokenCount: 5,
	})
	assert.Equal(t, int64(100), got.PromptTokens)
	// thought tokens count toward completion
	assert.Equal(t, int64(55), got.CompletionTokens)
	assert.Equal(t, int64(155), got.TotalTokens)
	assert.Equal(t, int64(15), got.CompletionTokensDetails.ReasoningTokens)
	assert.Equal(t, int64(20), got.PromptTokensDetails.CachedTokens)
	toolUse, ok := got.Ext.Get("tool_use_prompt_tokens")
	require.True(t, ok)
	assert.Equal(t, int64(5), toolUse)
}
