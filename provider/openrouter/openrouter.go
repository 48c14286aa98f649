// Package openrouter binds the chat-completions dialect to OpenRouter.
// OpenRouter fronts many upstream providers; requests routed to Google
// models need their tool schemas stripped of JSON Schema keywords the
// Gemini dialect rejects.
package openrouter

import (
	"strings"

	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/pkg/usage"
	"github.com/casualjim/babel/provider"
	"github.com/casualjim/babel/provider/openaicompat"

	json "github.com/goccy/go-json"
)

// Name is the registry name of this converter.
const Name = "openrouter"

func init() {
	provider.Register(converter{})
}

func policy() openaicompat.Policy {
	return openaicompat.Policy{
		Provider: Name,
		SanitizeSchema: func(model string, schema json.RawMessage) json.RawMessage {
			if !IsGoogleModel(model) {
				return schema
			}
			return openaicompat.SanitizeSchemaForGoogle(schema)
		},
	}
}

// IsGoogleModel reports whether an OpenRouter model slug routes to a Google
// model.
func IsGoogleModel(model string) bool {
	return strings.HasPrefix(model, "google/") || strings.Contains(model, "gemini")
}

type converter struct{}

func (converter) Provider() string { return Name }

func (converter) NewChunkAdapter() provider.ChunkAdapter {
	return openaicompat.NewStreamAdapter(policy())
}

// ToRequest maps a canonical request onto the wire shape.
func ToRequest(req provider.Request) (*openaicompat.ChatRequest, error) {
	return openaicompat.ToChatRequest(policy(), req)
}

// FromResponse maps a wire response onto the canonical model.
func FromResponse(resp *openaicompat.ChatResponse) (messages.Message, error) {
	return openaicompat.FromChatResponse(policy(), resp)
}

// UsageToCanonical maps wire usage onto the canonical record.
func UsageToCanonical(u *openaicompat.Usage) usage.Usage {
	return openaicompat.UsageToCanonical(policy(), u)
}
