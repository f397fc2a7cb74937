// Package ui serves the browser front end: document upload and chat.
package ui

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"

	"github.com/kart-io/contract-assistant/internal/pkg/httputils"
	"github.com/kart-io/contract-assistant/internal/rag/biz"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
)

//go:embed static/index.html
var indexHTML []byte

// Handler serves the UI page and its JSON endpoints.
type Handler struct {
	service   biz.Service
	uploadDir string
	maxUpload int64
	timeout   time.Duration
}

// NewHandler creates a UI handler that stores uploads under uploadDir. One
// upload request may carry at most maxUpload bytes.
func NewHandler(service biz.Service, uploadDir string, timeout time.Duration, maxUpload int64) *Handler {
	return &Handler{
		service:   service,
		uploadDir: uploadDir,
		maxUpload: maxUpload,
		timeout:   timeout,
	}
}

// Register registers the UI routes on engine.
func (h *Handler) Register(engine *gin.Engine) {
	engine.GET("/", h.Index)
	engine.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := engine.Group("/api")
	{
		api.POST("/ingest", h.Ingest)
		api.POST("/chat", h.Chat)
	}
}

// Index renders the single page front end.
func (h *Handler) Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

// IngestResponse summarizes an upload.
type IngestResponse struct {
	Message string `json:"message"`
	Report  any    `json:"report"`
}

// Ingest saves the uploaded files and rebuilds the index from them.
func (h *Handler) Ingest(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	form, err := c.MultipartForm()
	if err != nil {
		httputils.WriteError(c, errors.ErrInvalidParam.WithCause(err))
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		httputils.WriteError(c, errors.ErrNoFiles.WithMessage("Please upload files first"))
		return
	}

	// 每次上传使用独立目录，保留原始文件名以便引用显示。
	dir := filepath.Join(h.uploadDir, ulid.Make().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		httputils.WriteError(c, errors.ErrInternal.WithCause(err))
		return
	}

	paths := make([]string, 0, len(files))
	for _, fh := range files {
		dst := filepath.Join(dir, filepath.Base(fh.Filename))
		if err := c.SaveUploadedFile(fh, dst); err != nil {
			httputils.WriteError(c, errors.ErrInternal.WithCause(fmt.Errorf("save %s: %w", fh.Filename, err)))
			return
		}
		paths = append(paths, dst)
	}
	logger.Infow("UI upload stored", "files", len(paths), "dir", dir)

	ctx, cancel := h.context(c)
	defer cancel()

	report, err := h.service.Ingest(ctx, paths)
	if err != nil {
		httputils.WriteError(c, err)
		return
	}

	httputils.WriteResponse(c, nil, IngestResponse{
		Message: fmt.Sprintf("Successfully ingested %d files. Index saved to disk.", report.Loaded),
		Report:  report,
	})
}

// ChatRequest is a chat message.
type ChatRequest struct {
	Message string `json:"message"`
}

// Chat answers a message with citations.
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteError(c, errors.ErrInvalidParam.WithCause(err))
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	answer, err := h.service.Ask(ctx, req.Message)
	if errors.IsCode(err, errors.ErrNoDocuments.Code) {
		err = errors.ErrNoDocuments.WithMessage("Please upload and ingest documents first")
	}
	httputils.WriteResponse(c, err, answer)
}

func (h *Handler) context(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}
