package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	mwopts "github.com/kart-io/contract-assistant/pkg/options/middleware"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
	"github.com/kart-io/contract-assistant/pkg/utils/response"
)

// PanicHandler is invoked after a panic has been logged.
type PanicHandler func(c *gin.Context, err interface{}, stack []byte)

// Recovery 将 panic 转换为 ErrPanic 响应，并记录完整堆栈。
// 客户端只会看到 panic 的值，不会看到堆栈。
func Recovery(opts mwopts.RecoveryOptions, onPanic PanicHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			stack := debug.Stack()

			fields := []interface{}{
				"panic", r,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"request_id", RequestIDFrom(c),
			}
			if opts.EnableStackTrace {
				fields = append(fields, "stack_trace", string(stack))
			}
			logger.Errorw("panic recovered", fields...)

			if onPanic != nil {
				onPanic(c, r, stack)
			}

			resp := response.Err(errors.ErrPanic.WithMessage(fmt.Sprintf("panic: %v", r))).
				WithRequestID(RequestIDFrom(c))
			c.AbortWithStatusJSON(resp.HTTPStatus(), resp)
		}()
		c.Next()
	}
}
