// Package provider defines the surface shared by all wire-format converters:
// the canonical completion Request, the ChunkAdapter contract for mapping
// provider stream records onto canonical events, the converter registry, and
// the error taxonomy conversions report failures with.
//
// Each provider package (anthropic, gemini, openai, bedrock, and the
// chat-completions dialects built on openaicompat) registers itself from
// init() and exposes plain functions for the typed request/response
// mappings; only the stream-adapter factory is resolved dynamically:
//
//	conv, ok := provider.Get("anthropic")
//	adapter := conv.NewChunkAdapter()
//
// Conversions never drop content silently. Canonical parts a target format
// cannot encode fail with UnsupportedConversionError, and provider wire
// fields with no canonical slot ride in extension maps instead of being
// discarded.
package provider
