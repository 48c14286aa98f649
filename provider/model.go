package provider

import (
	json "github.com/goccy/go-json"

	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/tool"
)

// Request is the provider-agnostic completion request every converter maps
// from. Optional tuning fields are pointers: absence means "not provided",
// which is distinct from an explicit zero.
type Request struct {
	// Model names the target model in the provider's own namespace.
	Model string

	// System carries the system/instruction text. Providers that model it as
	// a message role get a synthesized message; providers with a dedicated
	// slot use that.
	System string

	// Messages is the conversation, oldest first.
	Messages []messages.Message

	// Tools the model may invoke.
	Tools []tool.Definition

	Temperature   *float64
	TopP          *float64
	MaxTokens     *int64
	StopSequences []string

	// Prevents unkeyed literals
	_ struct{}
}

// ChunkAdapter maps provider-native stream chunks onto canonical stream
// events. An adapter serves exactly one stream: providers that key tool
// calls by a stable id rather than by position need per-stream state to
// synthesize canonical indices.
type ChunkAdapter interface {
	// Events decodes one raw record from the event stream parser and returns
	// zero or more canonical events for it. Providers with an explicit
	// stream-stop record may include the end event here.
	Events(raw json.RawMessage) ([]messages.StreamEvent, error)

	// End returns the end event assembled from accumulated usage and finish
	// state. Consumers push it after the transport closes when Events never
	// produced one (several providers signal termination only through the
	// frame sentinel).
	End() messages.EndEvent
}

// Converter is the provider-facing surface a stream consumer can resolve by
// name from the registry. The typed request/response mappings live on each
// provider package as plain functions; only the stream-adapter factory needs
// dynamic dispatch.
type Converter interface {
	// Provider returns the registry name, e.g. "anthropic".
	Provider() string

	// NewChunkAdapter returns a fresh adapter for a single stream.
	NewChunkAdapter() ChunkAdapter
}
