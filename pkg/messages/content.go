// Package messages provides the provider-agnostic message and content-part
// model, its streaming-delta mirrors, and the canonical tagged-union JSON
// encoding shared by every provider converter.
package messages

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var jsonNull = []byte(`null`)

// Ext is an ordered mapping of string keys to opaque JSON values, carried but
// never interpreted by the core. Converters preserve it round-trip where the
// destination format allows.
type Ext = orderedmap.OrderedMap[string, any]

// NewExt creates an empty extension map.
func NewExt() *Ext { return orderedmap.New[string, any]() }

func marshalExt(data []byte, ext *Ext) ([]byte, error) {
	if ext == nil || ext.Len() == 0 {
		return data, nil
	}
	jj, err := json.Marshal(ext)
	if err != nil {
		return nil, fmt.Errorf("marshal ext: %w", err)
	}
	return sjson.SetRawBytes(data, "ext", jj)
}

func unmarshalExt(input []byte) *Ext {
	ev := gjson.GetBytes(input, "ext")
	if !ev.Exists() || !ev.IsObject() {
		return nil
	}
	ext := NewExt()
	ev.ForEach(func(key, value gjson.Result) bool {
		ext.Set(key.String(), value.Value())
		return true
	})
	return ext
}

// Part is a tagged content variant. Implementations are TextPart, BlobPart,
// ToolCallPart, ToolResultPart, FileRefPart and ExecutableCodePart. The last
// two are provider-only kinds: they are representable on ingestion but fail
// explicit conversion when a destination format cannot express them.
type Part interface {
	part()
}

// Parts is an ordered sequence of content parts owned by a single message
// (or by a single tool result).
type Parts []Part

// MarshalJSON serializes the sequence as a JSON array of tagged objects.
func (p Parts) MarshalJSON() ([]byte, error) {
	if p == nil {
		return jsonNull, nil
	}
	return json.Marshal([]Part(p))
}

// UnmarshalJSON decodes a JSON array of tagged part objects, dispatching on
// the "type" discriminator.
func (p *Parts) UnmarshalJSON(input []byte) error {
	if !gjson.ValidBytes(input) {
		return fmt.Errorf("invalid json: %s", input)
	}
	jv := gjson.ParseBytes(input)
	if !jv.IsArray() {
		return errors.New("content must be an array of parts")
	}
	aj := jv.Array()
	parts := make(Parts, len(aj))
	for idx, ajv := range aj {
		part, err := unmarshalPart([]byte(ajv.Raw))
		if err != nil {
			return fmt.Errorf("invalid part at %d: %w", idx, err)
		}
		parts[idx] = part
	}
	*p = parts
	return nil
}

func unmarshalPart(input []byte) (Part, error) {
	tpe := gjson.GetBytes(input, "type").String()
	switch tpe {
	case "text":
		var part TextPart
		if err := part.UnmarshalJSON(input); err != nil {
			return nil, err
		}
		return part, nil
	case "blob":
		var part BlobPart
		if err := part.UnmarshalJSON(input); err != nil {
			return nil, err
		}
		return part, nil
	case "tool_call":
		var part ToolCallPart
		if err := part.UnmarshalJSON(input); err != nil {
			return nil, err
		}
		return part, nil
	case "tool_result":
		var part ToolResultPart
		if err := part.UnmarshalJSON(input); err != nil {
			return nil, err
		}
		return part, nil
	case "file_ref":
		var part FileRefPart
		if err := part.UnmarshalJSON(input); err != nil {
			return nil, err
		}
		return part, nil
	case "executable_code":
		var part ExecutableCodePart
		if err := part.UnmarshalJSON(input); err != nil {
			return nil, err
		}
		return part, nil
	default:
		return nil, fmt.Errorf("unknown part type %q", tpe)
	}
}

// Text creates a text part. Empty strings are permitted: they are valid
// delimiter-only fragments during streaming, though a finalized message must
// not consist solely of empty text.
func Text(text string) TextPart {
	return TextPart{Text: text}
}

// TextPart is plain text content.
type TextPart struct {
	Text string   `json:"text"`
	Ext  *Ext     `json:"ext,omitempty"`
	_    struct{} // require keyed usage
}

func (TextPart) part() {}

var textJSON = []byte(`{"type":"text"}`)

func (t TextPart) MarshalJSON() ([]byte, error) {
	data, err := sjson.SetBytes(textJSON, "text", t.Text)
	if err != nil {
		return nil, err
	}
	return marshalExt(data, t.Ext)
}

func (t *TextPart) UnmarshalJSON(input []byte) error {
	text := gjson.GetBytes(input, "text")
	if !text.Exists() {
		return errors.New("missing required field 'text'")
	}
	t.Text = text.String()
	t.Ext = unmarshalExt(input)
	return nil
}

// DataRef locates the bytes of a blob part: either inline base64 data or an
// opaque external reference. Ownership of referenced bytes belongs to
// whichever message holds the part.
type DataRef interface {
	dataRef()
}

// Base64Data is inline blob content, already base64-encoded.
type Base64Data struct {
	Data string   `json:"data"`
	_    struct{} // require keyed usage
}

func (Base64Data) dataRef() {}

// URIData is an opaque external reference to blob content.
type URIData struct {
	URI string   `json:"uri"`
	_   struct{} // require keyed usage
}

func (URIData) dataRef() {}

var (
	base64RefJSON = []byte(`{"kind":"base64"}`)
	uriRefJSON    = []byte(`{"kind":"uri"}`)
)

func marshalDataRef(ref DataRef) ([]byte, error) {
	switch r := ref.(type) {
	case Base64Data:
		return sjson.SetBytes(base64RefJSON, "data", r.Data)
	case URIData:
		return sjson.SetBytes(uriRefJSON, "uri", r.URI)
	default:
		return nil, fmt.Errorf("unknown data ref %T", ref)
	}
}

func unmarshalDataRef(input []byte) (DataRef, error) {
	switch kind := gjson.GetBytes(input, "kind").String(); kind {
	case "base64":
		data := gjson.GetBytes(input, "data")
		if !data.Exists() {
			return nil, errors.New("base64 data ref requires 'data'")
		}
		return Base64Data{Data: data.String()}, nil
	case "uri":
		uri := gjson.GetBytes(input, "uri")
		if !uri.Exists() {
			return nil, errors.New("uri data ref requires 'uri'")
		}
		return URIData{URI: uri.String()}, nil
	default:
		return nil, fmt.Errorf("unknown data ref kind %q", kind)
	}
}

// BlobBase64 creates a blob part with inline base64 content.
func BlobBase64(data, mimeType string) BlobPart {
	return BlobPart{Ref: Base64Data{Data: data}, MimeType: mimeType}
}

// BlobURI creates a blob part referencing external content.
func BlobURI(uri, mimeType string) BlobPart {
	return BlobPart{Ref: URIData{URI: uri}, MimeType: mimeType}
}

// BlobPart is binary content (image, audio, documents) addressed by a DataRef.
type BlobPart struct {
	Ref         DataRef  `json:"data_ref"`
	MimeType    string   `json:"mime_type"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Ext         *Ext     `json:"ext,omitempty"`
	_           struct{} // require keyed usage
}

func (BlobPart) part() {}

var blobJSON = []byte(`{"type":"blob"}`)

func (b BlobPart) MarshalJSON() ([]byte, error) {
	if b.Ref == nil {
		return nil, errors.New("blob part requires a data ref")
	}
	ref, err := marshalDataRef(b.Ref)
	if err != nil {
		return nil, err
	}
	data, err := sjson.SetRawBytes(blobJSON, "data_ref", ref)
	if err != nil {
		return nil, err
	}
	if data, err = sjson.SetBytes(data, "mime_type", b.MimeType); err != nil {
		return nil, err
	}
	if b.Name != "" {
		if data, err = sjson.SetBytes(data, "name", b.Name); err != nil {
			return nil, err
		}
	}
	if b.Description != "" {
		if data, err = sjson.SetBytes(data, "description", b.Description); err != nil {
			return nil, err
		}
	}
	return marshalExt(data, b.Ext)
}

func (b *BlobPart) UnmarshalJSON(input []byte) error {
	refJSON := gjson.GetBytes(input, "data_ref")
	if !refJSON.Exists() || !refJSON.IsObject() {
		return errors.New("missing required field 'data_ref'")
	}
	ref, err := unmarshalDataRef([]byte(refJSON.Raw))
	if err != nil {
		return err
	}
	mime := gjson.GetBytes(input, "mime_type")
	if !mime.Exists() {
		return errors.New("missing required field 'mime_type'")
	}
	b.Ref = ref
	b.MimeType = mime.String()
	b.Name = gjson.GetBytes(input, "name").String()
	b.Description = gjson.GetBytes(input, "description").String()
	b.Ext = unmarshalExt(input)
	return nil
}

// ToolCall creates a tool-call part. The id is a caller-supplied token that
// must be unique within the owning message; args is the raw JSON value for
// the invocation arguments.
func ToolCall(id, name string, args json.RawMessage) ToolCallPart {
	return ToolCallPart{ID: id, Name: name, Args: args}
}

// ToolCallPart is a model-issued function invocation request.
type ToolCallPart struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
	Ext  *Ext            `json:"ext,omitempty"`
	_    struct{}        // require keyed usage
}

func (ToolCallPart) part() {}

var toolCallJSON = []byte(`{"type":"tool_call"}`)

func (t ToolCallPart) MarshalJSON() ([]byte, error) {
	data, err := sjson.SetBytes(toolCallJSON, "id", t.ID)
	if err != nil {
		return nil, err
	}
	if data, err = sjson.SetBytes(data, "name", t.Name); err != nil {
		return nil, err
	}
	args := []byte(t.Args)
	if len(args) == 0 {
		args = jsonNull
	}
	if data, err = sjson.SetRawBytes(data, "args", args); err != nil {
		return nil, err
	}
	return marshalExt(data, t.Ext)
}

func (t *ToolCallPart) UnmarshalJSON(input []byte) error {
	id := gjson.GetBytes(input, "id")
	if !id.Exists() || id.String() == "" {
		return errors.New("missing required field 'id'")
	}
	name := gjson.GetBytes(input, "name")
	if !name.Exists() {
		return errors.New("missing required field 'name'")
	}
	t.ID = id.String()
	t.Name = name.String()
	if args := gjson.GetBytes(input, "args"); args.Exists() && args.Type != gjson.Null {
		t.Args = json.RawMessage(args.Raw)
	} else {
		t.Args = nil
	}
	t.Ext = unmarshalExt(input)
	return nil
}

// ToolResult creates a tool-result part answering a prior tool call. The
// embedded parts are owned by this result, not shared.
func ToolResult(callID, name string, content ...Part) ToolResultPart {
	return ToolResultPart{CallID: callID, Name: name, Content: Parts(content)}
}

// ToolResultPart is the execution output for a prior ToolCallPart,
// correlated by CallID. Content is itself a part sequence so results can
// carry nested text or structured data.
type ToolResultPart struct {
	CallID  string   `json:"call_id"`
	Name    string   `json:"name"`
	Content Parts    `json:"content"`
	Ext     *Ext     `json:"ext,omitempty"`
	_       struct{} // require keyed usage
}

func (ToolResultPart) part() {}

var toolResultJSON = []byte(`{"type":"tool_result"}`)

func (t ToolResultPart) MarshalJSON() ([]byte, error) {
	data, err := sjson.SetBytes(toolResultJSON, "call_id", t.CallID)
	if err != nil {
		return nil, err
	}
	if data, err = sjson.SetBytes(data, "name", t.Name); err != nil {
		return nil, err
	}
	content, err := json.Marshal(t.Content)
	if err != nil {
		return nil, err
	}
	if data, err = sjson.SetRawBytes(data, "content", content); err != nil {
		return nil, err
	}
	return marshalExt(data, t.Ext)
}

func (t *ToolResultPart) UnmarshalJSON(input []byte) error {
	callID := gjson.GetBytes(input, "call_id")
	if !callID.Exists() || callID.String() == "" {
		return errors.New("missing required field 'call_id'")
	}
	content := gjson.GetBytes(input, "content")
	if !content.Exists() {
		return errors.New("missing required field 'content'")
	}
	var parts Parts
	if err := parts.UnmarshalJSON([]byte(content.Raw)); err != nil {
		return fmt.Errorf("tool result content: %w", err)
	}
	t.CallID = callID.String()
	t.Name = gjson.GetBytes(input, "name").String()
	t.Content = parts
	t.Ext = unmarshalExt(input)
	return nil
}

// FileRef creates a provider-managed file reference part.
func FileRef(uri, mimeType string) FileRefPart {
	return FileRefPart{URI: uri, MimeType: mimeType}
}

// FileRefPart references a provider-managed file handle. It survives
// ingestion but converting it to a provider that cannot express it is an
// explicit UnsupportedConversion failure, never a silent drop.
type FileRefPart struct {
	URI      string   `json:"uri"`
	MimeType string   `json:"mime_type,omitempty"`
	Ext      *Ext     `json:"ext,omitempty"`
	_        struct{} // require keyed usage
}

func (FileRefPart) part() {}

var fileRefJSON = []byte(`{"type":"file_ref"}`)

func (f FileRefPart) MarshalJSON() ([]byte, error) {
	data, err := sjson.SetBytes(fileRefJSON, "uri", f.URI)
	if err != nil {
		return nil, err
	}
	if f.MimeType != "" {
		if data, err = sjson.SetBytes(data, "mime_type", f.MimeType); err != nil {
			return nil, err
		}
	}
	return marshalExt(data, f.Ext)
}

func (f *FileRefPart) UnmarshalJSON(input []byte) error {
	uri := gjson.GetBytes(input, "uri")
	if !uri.Exists() || uri.String() == "" {
		return errors.New("missing required field 'uri'")
	}
	f.URI = uri.String()
	f.MimeType = gjson.GetBytes(input, "mime_type").String()
	f.Ext = unmarshalExt(input)
	return nil
}

// ExecutableCode creates a provider-generated executable-code part.
func ExecutableCode(language, code string) ExecutableCodePart {
	return ExecutableCodePart{Language: language, Code: code}
}

// ExecutableCodePart is provider-generated code (code-execution tooling).
// Like FileRefPart it is ingestion-only for most providers: conversion to a
// format without a code slot fails explicitly.
type ExecutableCodePart struct {
	Language string   `json:"language"`
	Code     string   `json:"code"`
	Ext      *Ext     `json:"ext,omitempty"`
	_        struct{} // require keyed usage
}

func (ExecutableCodePart) part() {}

var execCodeJSON = []byte(`{"type":"executable_code"}`)

func (e ExecutableCodePart) MarshalJSON() ([]byte, error) {
	data, err := sjson.SetBytes(execCodeJSON, "language", e.Language)
	if err != nil {
		return nil, err
	}
	if data, err = sjson.SetBytes(data, "code", e.Code); err != nil {
		return nil, err
	}
	return marshalExt(data, e.Ext)
}

func (e *ExecutableCodePart) UnmarshalJSON(input []byte) error {
	code := gjson.GetBytes(input, "code")
	if !code.Exists() {
		return errors.New("missing required field 'code'")
	}
	e.Language = gjson.GetBytes(input, "language").String()
	e.Code = code.String()
	e.Ext = unmarshalExt(input)
	return nil
}
