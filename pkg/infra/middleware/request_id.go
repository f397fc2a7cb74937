package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	mwopts "github.com/kart-io/contract-assistant/pkg/options/middleware"
)

var fallbackCounter uint64

// RequestID returns a middleware that tags every request with an ID.
// An incoming header value is kept; otherwise one is generated.
func RequestID(opts mwopts.RequestIDOptions) gin.HandlerFunc {
	header := opts.Header
	if header == "" {
		header = HeaderXRequestID
	}
	generate := generatorFor(opts.GeneratorType)

	return func(c *gin.Context) {
		id := c.GetHeader(header)
		if id == "" {
			id = generate()
		}
		c.Header(header, id)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func generatorFor(kind string) func() string {
	if kind == mwopts.GeneratorHex {
		return hexID
	}
	return ulidID
}

func ulidID() string {
	return ulid.Make().String()
}

func hexID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%x-%x", time.Now().Unix(), atomic.AddUint64(&fallbackCounter, 1))
	}
	return hex.EncodeToString(b)
}
