// Package handler provides HTTP handlers for the contract assistant API.
package handler

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/version"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/internal/pkg/httputils"
	"github.com/kart-io/contract-assistant/internal/rag/biz"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
)

// DefaultRequestTimeout bounds a single question or evaluation run.
const DefaultRequestTimeout = 120 * time.Second

// RAGHandler handles contract assistant HTTP requests.
type RAGHandler struct {
	service biz.Service
	cases   []model.EvaluationCase
	timeout time.Duration
}

// Option configures a RAGHandler.
type Option func(*RAGHandler)

// WithEvaluationCases sets the cases used when an evaluate request has none.
func WithEvaluationCases(cases []model.EvaluationCase) Option {
	return func(h *RAGHandler) {
		h.cases = cases
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(h *RAGHandler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// NewRAGHandler creates a new RAGHandler.
func NewRAGHandler(service biz.Service, opts ...Option) *RAGHandler {
	h := &RAGHandler{
		service: service,
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InvokeRequest is the chain invocation body.
type InvokeRequest struct {
	Input string `json:"input"`
}

// InvokeOutput mirrors the chain output: the question, the retrieved chunks and the answer.
type InvokeOutput struct {
	Input   string        `json:"input"`
	Context []model.Chunk `json:"context"`
	Answer  string        `json:"answer"`
}

// InvokeResponse wraps the chain output.
type InvokeResponse struct {
	Output InvokeOutput `json:"output"`
}

// Invoke runs the retrieval-generation chain for one question.
func (h *RAGHandler) Invoke(c *gin.Context) {
	var req InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteError(c, errors.ErrInvalidParam.WithCause(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.service.Answer(ctx, req.Input)
	if err != nil {
		httputils.WriteError(c, h.timeoutAware(ctx, err))
		return
	}

	chunks := result.RetrievedChunks
	if chunks == nil {
		chunks = []model.Chunk{}
	}
	c.JSON(200, InvokeResponse{Output: InvokeOutput{
		Input:   result.Question,
		Context: chunks,
		Answer:  result.Answer,
	}})
}

// QueryRequest is the body of a formatted question.
type QueryRequest struct {
	Question string `json:"question"`
}

// Query answers a question and returns the answer with its citations.
func (h *RAGHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteError(c, errors.ErrInvalidParam.WithCause(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	answer, err := h.service.Ask(ctx, req.Question)
	httputils.WriteResponse(c, h.timeoutAware(ctx, err), answer)
}

// EvaluateRequest optionally carries custom cases.
type EvaluateRequest struct {
	Cases []model.EvaluationCase `json:"cases"`
}

// Evaluate runs the keyword evaluation. An empty body uses the configured cases.
func (h *RAGHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		httputils.WriteError(c, errors.ErrInvalidParam.WithCause(err))
		return
	}

	cases := req.Cases
	if len(cases) == 0 {
		cases = h.cases
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	report, err := h.service.Evaluate(ctx, cases)
	httputils.WriteResponse(c, h.timeoutAware(ctx, err), report)
}

// Stats returns index, cache and provider statistics.
func (h *RAGHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	httputils.WriteResponse(c, err, stats)
}

// ClearCache drops every cached answer.
func (h *RAGHandler) ClearCache(c *gin.Context) {
	n, err := h.service.ClearCache(c.Request.Context())
	httputils.WriteResponse(c, err, gin.H{"deleted": n})
}

// Healthz reports liveness.
func Healthz(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"version": version.Get().GitVersion,
	})
}

func (h *RAGHandler) timeoutAware(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) && errors.FromError(err).HTTPStatus() >= 500 {
		return errors.ErrRequestTimeout.WithCause(err)
	}
	return err
}
