package messages

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/babel/pkg/usage"
)

func TestMessageDelta_JSONRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		delta MessageDelta
		want  string
	}{
		{
			name:  "role only",
			delta: MessageDelta{Role: RoleAssistant},
			want:  `{"role":"assistant"}`,
		},
		{
			name:  "text fragment",
			delta: MessageDelta{Content: []PartDelta{TextDelta{Text: "hel"}}},
			want:  `{"content":[{"type":"text","text":"hel"}]}`,
		},
		{
			name: "tool call opener",
			delta: MessageDelta{Content: []PartDelta{
				ToolCallDelta{Index: 0, ID: "call_1", Name: "search"},
			}},
			want: `{"content":[{"type":"tool_call","index":0,"id":"call_1","name":"search"}]}`,
		},
		{
			name: "tool call argument fragment",
			delta: MessageDelta{Content: []PartDelta{
				ToolCallDelta{Index: 0, Args: `{"q":`},
			}},
			want: `{"content":[{"type":"tool_call","index":0,"args":"{\"q\":"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.delta)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var back MessageDelta
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.delta, back)
		})
	}
}

func TestUnmarshalStreamEvent(t *testing.T) {
	t.Run("delta event", func(t *testing.T) {
		ev, err := UnmarshalStreamEvent([]byte(`{"type":"delta","delta":{"content":[{"type":"text","text":"hi"}]}}`))
		require.NoError(t, err)
		delta, ok := ev.(DeltaEvent)
		require.True(t, ok)
		assert.Equal(t, []PartDelta{TextDelta{Text: "hi"}}, delta.Delta.Content)
	})

	t.Run("end event with usage", func(t *testing.T) {
		ev, err := UnmarshalStreamEvent([]byte(`{"type":"end","finish_reason":"tool_calls","usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
		require.NoError(t, err)
		end, ok := ev.(EndEvent)
		require.True(t, ok)
		assert.Equal(t, FinishToolCalls, end.FinishReason)
		require.NotNil(t, end.Usage)
		assert.Equal(t, int64(10), end.Usage.PromptTokens)
		assert.Equal(t, int64(5), end.Usage.CompletionTokens)
	})

	t.Run("bare end event", func(t *testing.T) {
		ev, err := UnmarshalStreamEvent([]byte(`{"type":"end"}`))
		require.NoError(t, err)
		end, ok := ev.(EndEvent)
		require.True(t, ok)
		assert.Nil(t, end.Usage)
		assert.Empty(t, end.FinishReason)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := UnmarshalStreamEvent([]byte(`{"type":"heartbeat"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown stream event type")
	})
}

func TestEndEvent_MarshalJSON(t *testing.T) {
	end := EndEvent{
		Usage:        &usage.Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
		FinishReason: FinishStop,
	}
	data, err := json.Marshal(end)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "end",
		"finish_reason": "stop",
		"usage": {
			"prompt_tokens": 3,
			"completion_tokens": 4,
			"total_tokens": 7,
			"prompt_tokens_details": {},
			"completion_tokens_details": {}
		}
	}`, string(data))
}
