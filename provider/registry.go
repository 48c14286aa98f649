package provider

import "github.com/casualjim/babel/internal/registry"

var converters = registry.New[Converter]()

// Register makes a converter resolvable by its provider name. Provider
// packages call this from init().
func Register(c Converter) {
	converters.Add(c.Provider(), c)
}

// Get resolves a registered converter by provider name.
func Get(name string) (Converter, bool) {
	return converters.Get(name)
}

// Names lists the registered provider names.
func Names() []string {
	return converters.Names()
}
