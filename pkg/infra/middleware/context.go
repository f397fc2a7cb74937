// Package middleware provides the gin middleware shared by the API and UI servers.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

// HeaderXRequestID is the default request ID header.
const HeaderXRequestID = "X-Request-ID"

// requestIDKey is the context key for the request ID.
type requestIDKey struct{}

// GetRequestID returns the request ID stored in ctx, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFrom returns the request ID of a gin request.
func RequestIDFrom(c *gin.Context) string {
	return GetRequestID(c.Request.Context())
}
