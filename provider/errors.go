package provider

import (
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// UnsupportedConversionError reports canonical content that has no
// representation in the target format. It is always fatal to the conversion
// call that hit it; silently dropping the content is never acceptable.
type UnsupportedConversionError struct {
	Provider string
	Kind     string
	Reason   string
}

func (e *UnsupportedConversionError) Error() string {
	return fmt.Sprintf("%s: cannot convert %s: %s", e.Provider, e.Kind, e.Reason)
}

// MissingDataError reports a required field absent from the wire.
type MissingDataError struct {
	Provider string
	Field    string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("%s: missing required field %q", e.Provider, e.Field)
}

// ContentConversionError reports a shape mismatch while mapping content
// between the canonical model and a provider format.
type ContentConversionError struct {
	Provider string
	Detail   string
	Cause    error
}

func (e *ContentConversionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Detail)
}

func (e *ContentConversionError) Unwrap() error { return e.Cause }

// APIError is a non-2xx or provider-reported failure. It always keeps the
// raw body so a failure can be diagnosed without re-running the request.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string
	Type       string
	Message    string
	Raw        []byte
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, msg)
}

// ParseAPIError decodes a provider error body into an APIError. The wire
// shapes differ per provider:
//
//	{"error":{"message","type","code"}}           wrapped (OpenAI-style)
//	{"object":"error","message","type","code"}    flat (Mistral)
//	{"error":{"code":429,"message"}}              numeric code (OpenRouter)
//	{"type":"error","error":{"type","message"}}   Anthropic
//
// An unrecognized body still yields an APIError carrying the status and raw
// bytes.
func ParseAPIError(provider string, status int, body []byte) *APIError {
	apiErr := &APIError{Provider: provider, StatusCode: status, Raw: body}
	if !gjson.ValidBytes(body) {
		return apiErr
	}

	if wrapped := gjson.GetBytes(body, "error"); wrapped.IsObject() {
		apiErr.Message = wrapped.Get("message").String()
		apiErr.Type = wrapped.Get("type").String()
		apiErr.Code = wrapped.Get("code").String()
		return apiErr
	}

	if gjson.GetBytes(body, "object").String() == "error" {
		apiErr.Message = gjson.GetBytes(body, "message").String()
		apiErr.Type = gjson.GetBytes(body, "type").String()
		apiErr.Code = gjson.GetBytes(body, "code").String()
		return apiErr
	}

	if msg := gjson.GetBytes(body, "message"); msg.Exists() {
		apiErr.Message = msg.String()
		apiErr.Type = gjson.GetBytes(body, "type").String()
	}
	return apiErr
}
