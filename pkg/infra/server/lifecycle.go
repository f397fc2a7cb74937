// Package server runs the HTTP servers of the process under one lifecycle.
package server

import "context"

// Runnable is a named server. Start returns once the listener is bound;
// Stop drains in-flight requests until ctx expires.
type Runnable interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Failer is implemented by servers that can fail after Start returned.
// Err delivers at most one error.
type Failer interface {
	Err() <-chan error
}
