package response

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/contract-assistant/pkg/utils/errors"
)

func TestSuccess(t *testing.T) {
	r := Success(map[string]int{"chunks": 3}).WithRequestID("req-1")
	assert.True(t, r.IsSuccess())
	assert.Equal(t, http.StatusOK, r.HTTPStatus())
	assert.Equal(t, "req-1", r.RequestID)
}

func TestErr(t *testing.T) {
	r := Err(errors.ErrNoDocuments)
	assert.False(t, r.IsSuccess())
	assert.Equal(t, errors.ErrNoDocuments.Code, r.Code)
	assert.Equal(t, http.StatusNotFound, r.HTTPStatus())
	assert.Nil(t, r.Data)
}

func TestErrWithLang(t *testing.T) {
	r := ErrWithLang(errors.ErrInvalidQuestion, "zh")
	assert.Equal(t, errors.ErrInvalidQuestion.MessageZH, r.Message)
}

func TestFromErrorHidesForeignErrors(t *testing.T) {
	r := FromError(fmt.Errorf("dial tcp 10.0.0.1: refused"))
	assert.Equal(t, errors.ErrInternal.Code, r.Code)
	assert.NotContains(t, r.Message, "10.0.0.1")

	wrapped := fmt.Errorf("wrap: %w", errors.ErrGenerationFailed.WithCause(fmt.Errorf("boom")))
	assert.Equal(t, errors.ErrGenerationFailed.Code, FromError(wrapped).Code)
}

func TestHTTPStatusFallsBackToCategory(t *testing.T) {
	r := &Response{Code: errors.MakeCode(errors.ServiceRAG, errors.CategoryRateLimit, 999)}
	assert.Equal(t, http.StatusTooManyRequests, r.HTTPStatus())

	r = &Response{Code: errors.MakeCode(errors.ServiceRAG, errors.CategoryInternal, 998)}
	assert.Equal(t, http.StatusInternalServerError, r.HTTPStatus())
}

func TestResponsesAreTimestamped(t *testing.T) {
	fixed := time.UnixMilli(1700000000123)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	assert.Equal(t, fixed.UnixMilli(), Success(nil).Timestamp)
	assert.Equal(t, fixed.UnixMilli(), Err(errors.ErrEmptyInput).Timestamp)
}
