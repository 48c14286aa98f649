package openrouter

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/provider"
	"github.com/casualjim/babel/tool"
)

func TestIsGoogleModel(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"google/gemini-2.0-flash-001", true},
		{"gemini-pro", true},
		{"openai/gpt-4o", false},
		{"anthropic/claude-sonnet-4", false},
		{"mistralai/mistral-large", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsGoogleModel(tt.model), tt.model)
	}
}

func TestToRequest_SchemaSanitizedForGoogleModels(t *testing.T) {
	props := jsonschema.NewProperties()
	props.Set("query", &jsonschema.Schema{Type: "string"})
	schema := &jsonschema.Schema{
		Version:    "https://json-schema.org/draft/2020-12/schema",
		Type:       "object",
		Properties: props,
	}
	req := provider.Request{
		Messages: []messages.Message{messages.User(messages.Text("hi"))},
		Tools:    []tool.Definition{tool.Must("search", tool.Parameters(schema))},
	}

	req.Model = "google/gemini-2.0-flash-001"
	out, err := ToRequest(req)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(out.Tools[0].Function.Parameters, &doc))
	assert.NotContains(t, doc, "$schema")
	assert.Contains(t, doc, "properties")

	// non-Google routes keep the schema untouched
	req.Model = "openai/gpt-4o"
	out, err = ToRequest(req)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(out.Tools[0].Function.Parameters, &doc))
	assert.Contains(t, doc, "$schema")
}
