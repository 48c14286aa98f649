// Package slogx provides small slog.Attr helpers shared across the module.
package slogx

import "log/slog"

// Error returns an attribute with key "error" holding the error's message.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}
