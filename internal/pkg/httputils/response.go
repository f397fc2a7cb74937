// Package httputils provides HTTP utility functions.
package httputils

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/contract-assistant/pkg/infra/middleware"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
	"github.com/kart-io/contract-assistant/pkg/utils/response"
)

// WriteResponse writes the unified envelope. A non-nil err wins over data.
func WriteResponse(c *gin.Context, err error, data interface{}) {
	if err != nil {
		WriteError(c, err)
		return
	}

	resp := response.Success(data).WithRequestID(middleware.RequestIDFrom(c))
	c.JSON(resp.HTTPStatus(), resp)
}

// WriteError maps err onto its errno and writes the error envelope.
// Errors outside the errno system are logged and reported as internal errors.
func WriteError(c *gin.Context, err error) {
	e := errors.FromError(err)
	if e.HTTPStatus() >= 500 {
		logger.Errorw("request failed",
			"path", c.FullPath(),
			"code", e.Code,
			"error", err.Error(),
			"request_id", middleware.RequestIDFrom(c),
		)
	}

	resp := response.ErrWithLang(e, language(c)).WithRequestID(middleware.RequestIDFrom(c))
	c.AbortWithStatusJSON(resp.HTTPStatus(), resp)
}

func language(c *gin.Context) string {
	if lang := c.GetHeader("Accept-Language"); len(lang) >= 2 && lang[:2] == "zh" {
		return "zh"
	}
	return "en"
}
