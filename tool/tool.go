package tool

import (
	"errors"

	"github.com/fogfish/opts"
	"github.com/invopop/jsonschema"

	"github.com/casualjim/babel/pkg/stdx"
)

// Definition declares a tool a model may invoke: a name, an optional
// description, and a JSON schema for the invocation arguments. Converters
// translate definitions into each provider's tool-declaration shape.
type Definition struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema

	// Prevents unkeyed literals
	_ struct{}
}

// Option configures a tool definition.
type Option = opts.Option[Definition]

// Description sets the human-readable purpose of the tool.
var Description = opts.ForName[Definition, string]("Description")

// Parameters sets the argument schema directly.
var Parameters = opts.ForName[Definition, *jsonschema.Schema]("Parameters")

var reflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// ParametersFor derives the argument schema from a Go struct type.
func ParametersFor[T any]() *jsonschema.Schema {
	var v T
	schema := reflector.Reflect(v)
	schema.Version = ""
	return schema
}

// New creates a tool definition. The name is required.
func New(name string, options ...Option) (Definition, error) {
	if name == "" {
		return Definition{}, errors.New("tool definition requires a name")
	}
	def := Definition{Name: name}
	if err := opts.Apply(&def, options); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Must wraps New and panics on error.
func Must(name string, options ...Option) Definition {
	return stdx.Must1(New(name, options...))
}

// EmptyParameters reports whether the definition carries no usable argument
// schema (nil, or an object schema with no properties). Some providers
// reject empty object schemas, so their converters omit the field instead.
func (td Definition) EmptyParameters() bool {
	if td.Parameters == nil {
		return true
	}
	if td.Parameters.Type != "" && td.Parameters.Type != "object" {
		return false
	}
	return td.Parameters.Properties == nil || td.Parameters.Properties.Len() == 0
}
