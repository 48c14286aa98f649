// Package stdx holds tiny generic helpers with no better home.
package stdx

// Must0 panics if err is not nil.
func Must0(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 returns v, panicking if err is not nil. It turns a constructor's
// (value, error) pair into a bare value for call sites that treat the error
// as a programming mistake.
func Must1[T any](v T, err error) T {
	Must0(err)
	return v
}
