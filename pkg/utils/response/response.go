// Package response provides the envelope shared by the management endpoints
// and the UI. Chain invocation keeps its own {"output": ...} shape.
package response

import (
	"net/http"
	"time"

	"github.com/kart-io/contract-assistant/pkg/utils/errors"
)

// Response is the JSON envelope. Code 0 means success.
type Response struct {
	Code      int    `json:"code"`
	HTTPCode  int    `json:"http_code,omitempty"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// Timestamp in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

var now = time.Now

func newResponse(code, status int, message string, data any) *Response {
	return &Response{
		Code:      code,
		HTTPCode:  status,
		Message:   message,
		Data:      data,
		Timestamp: now().UnixMilli(),
	}
}

// Success wraps data in a success envelope.
func Success(data any) *Response {
	return newResponse(0, http.StatusOK, "success", data)
}

// Err builds an error envelope with the English message.
func Err(e *errors.Errno) *Response {
	return ErrWithLang(e, "en")
}

// ErrWithLang builds an error envelope; lang is "en" or "zh".
func ErrWithLang(e *errors.Errno, lang string) *Response {
	if e == nil {
		e = errors.ErrInternal
	}
	return newResponse(e.Code, e.HTTPStatus(), e.Message(lang), nil)
}

// FromError maps any error onto its errno. Foreign errors become ErrInternal
// and their text is not exposed.
func FromError(err error) *Response {
	return Err(errors.FromError(err))
}

func (r *Response) WithRequestID(requestID string) *Response {
	r.RequestID = requestID
	return r
}

func (r *Response) IsSuccess() bool {
	return r.Code == 0
}

// HTTPStatus prefers the explicit status, then a registered errno, then the
// code's category.
func (r *Response) HTTPStatus() int {
	switch {
	case r.HTTPCode != 0:
		return r.HTTPCode
	case r.Code == 0:
		return http.StatusOK
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}
	if status, ok := categoryStatus[errors.GetCategory(r.Code)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

var categoryStatus = map[int]int{
	errors.CategoryRequest:       http.StatusBadRequest,
	errors.CategoryResource:      http.StatusNotFound,
	errors.CategoryRateLimit:     http.StatusTooManyRequests,
	errors.CategoryUnprocessable: http.StatusUnprocessableEntity,
	errors.CategoryTimeout:       http.StatusGatewayTimeout,
	errors.CategoryNetwork:       http.StatusServiceUnavailable,
}
