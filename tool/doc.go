/*
Package tool declares the tools a model may invoke during a completion.

A Definition carries a name, an optional description, and a JSON schema for
the invocation arguments. Provider converters translate definitions into
each provider's own tool-declaration shape; the definition itself is wire
neutral.

Schemas can be written by hand or derived from a Go struct:

	def := tool.Must("weather",
		tool.Description("Look up current weather for a city"),
		tool.Parameters(tool.ParametersFor[weatherArgs]()),
	)

A definition without a schema declares a tool that takes no arguments. Some
providers reject empty object schemas outright; their converters consult
EmptyParameters and omit the field instead of sending {}.
*/
package tool
