// Package groq binds the chat-completions dialect to Groq's API. Groq
// reports request timing splits alongside token counts; those ride in the
// usage extension map.
package groq

import (
	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/pkg/usage"
	"github.com/casualjim/babel/provider"
	"github.com/casualjim/babel/provider/openaicompat"
)

// Name is the registry name of this converter.
const Name = "groq"

func init() {
	provider.Register(converter{})
}

func policy() openaicompat.Policy {
	return openaicompat.Policy{Provider: Name}
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

// UsageToCanonical maps wire usage onto the canonical record, timing fields
// included.
func UsageToCanonical(u *openaicompat.Usage) usage.Usage {
	return openaicompat.UsageToCanonical(policy(), u)
}
