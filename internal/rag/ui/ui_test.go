package ui

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
	"github.com/kart-io/contract-assistant/pkg/utils/json"
)

type stubService struct {
	ingested []string
	askErr   error
}

func (s *stubService) Ingest(_ context.Context, paths []string) (*model.IngestReport, error) {
	s.ingested = paths
	return &model.IngestReport{Files: len(paths), Loaded: len(paths), Chunks: 3}, nil
}

func (s *stubService) Answer(context.Context, string) (*model.QueryResult, error) {
	return nil, s.askErr
}

func (s *stubService) Ask(_ context.Context, q string) (*model.FormattedAnswer, error) {
	if s.askErr != nil {
		return nil, s.askErr
	}
	return &model.FormattedAnswer{Answer: "a", Formatted: "a\n\n**Sources:**\n- c.txt (Page N/A)"}, nil
}

func (s *stubService) Evaluate(context.Context, []model.EvaluationCase) (*model.EvaluationReport, error) {
	return &model.EvaluationReport{}, nil
}

func (s *stubService) GetStats(context.Context) (map[string]any, error) { return nil, nil }

func (s *stubService) ClearCache(context.Context) (int, error) { return 0, nil }

func newEngine(svc *stubService, dir string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewHandler(svc, dir, time.Second, 1<<20).Register(engine)
	return engine
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestIndex(t *testing.T) {
	w := httptest.NewRecorder()
	newEngine(&stubService{}, t.TempDir()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Smart Contract Assistant")
}

func TestIngest_SavesUploadsAndIngests(t *testing.T) {
	svc := &stubService{}
	dir := t.TempDir()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range map[string]string{"a.txt": "alpha", "../b.txt": "beta"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	newEngine(svc, dir).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, svc.ingested, 2)
	for _, p := range svc.ingested {
		assert.True(t, strings.HasPrefix(p, dir), "upload escaped %s: %s", dir, p)
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
	bases := []string{filepath.Base(svc.ingested[0]), filepath.Base(svc.ingested[1])}
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, bases)

	out := decode(t, w)
	assert.Contains(t, out["data"].(map[string]any)["message"], "Successfully ingested 2 files")
}

func TestIngest_NoFiles(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	newEngine(&stubService{}, t.TempDir()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, errors.ErrNoFiles.Code, decode(t, w)["code"])
}

func TestChat(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"termination?"}`))
	req.Header.Set("Content-Type", "application/json")
	newEngine(&stubService{}, t.TempDir()).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["data"].(map[string]any)["formatted"], "**Sources:**")
}

func TestChat_NoDocuments(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"q"}`))
	req.Header.Set("Content-Type", "application/json")
	newEngine(&stubService{askErr: errors.ErrNoDocuments}, t.TempDir()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode(t, w)["message"], "upload and ingest documents first")
}
