package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mwopts "github.com/kart-io/contract-assistant/pkg/options/middleware"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
	"github.com/kart-io/contract-assistant/pkg/utils/json"
	"github.com/kart-io/contract-assistant/pkg/utils/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	return r
}

func TestRequestID_GeneratesULID(t *testing.T) {
	r := newEngine(RequestID(*mwopts.NewRequestIDOptions()))
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = RequestIDFrom(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	id := w.Header().Get(HeaderXRequestID)
	assert.Len(t, id, 26)
	assert.Equal(t, id, seen)
}

func TestRequestID_KeepsIncoming(t *testing.T) {
	opts := mwopts.NewRequestIDOptions()
	opts.GeneratorType = mwopts.GeneratorHex
	r := newEngine(RequestID(*opts))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(HeaderXRequestID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(HeaderXRequestID), 32)
}

func TestRecovery_ReturnsPanicEnvelope(t *testing.T) {
	var handled bool
	r := newEngine(
		RequestID(*mwopts.NewRequestIDOptions()),
		Recovery(*mwopts.NewRecoveryOptions(), func(*gin.Context, interface{}, []byte) { handled = true }),
	)
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.True(t, handled)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, errors.ErrPanic.Code, resp.Code)
	assert.Contains(t, resp.Message, "kaboom")
	assert.Equal(t, w.Header().Get(HeaderXRequestID), resp.RequestID)
}

func TestCORS_AllowsAnyOrigin(t *testing.T) {
	r := newEngine(CORS(*mwopts.NewCORSOptions()))
	r.POST("/contract-assistant/invoke", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/contract-assistant/invoke", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	r := newEngine(CORS(*mwopts.NewCORSOptions()))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "content-type", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestCORS_RejectsUnknownOrigin(t *testing.T) {
	opts := mwopts.NewCORSOptions()
	opts.AllowOrigins = []string{"https://contracts.example.com"}
	r := newEngine(CORS(*opts))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggerAndTracing_PassThrough(t *testing.T) {
	r := newEngine(
		RequestID(*mwopts.NewRequestIDOptions()),
		Tracing("/healthz"),
		Logger(*mwopts.NewLoggerOptions()),
	)
	var id string
	r.GET("/contract-assistant/stats", func(c *gin.Context) {
		id = GetRequestID(c.Request.Context())
		c.Status(http.StatusTeapot)
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/contract-assistant/stats", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.NotEmpty(t, id, "request id survives the tracing context swap")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBodyLimit(t *testing.T) {
	r := newEngine(BodyLimit(8))
	r.POST("/", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"input":"too long"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
