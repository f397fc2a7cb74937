package ragsvc

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/contract-assistant/pkg/infra/tracing"
	cacheopts "github.com/kart-io/contract-assistant/pkg/options/cache"
	indexopts "github.com/kart-io/contract-assistant/pkg/options/index"
	llmopts "github.com/kart-io/contract-assistant/pkg/options/llm"
	mwopts "github.com/kart-io/contract-assistant/pkg/options/middleware"
	milvusopts "github.com/kart-io/contract-assistant/pkg/options/milvus"
	poolopts "github.com/kart-io/contract-assistant/pkg/options/pool"
	ragopts "github.com/kart-io/contract-assistant/pkg/options/rag"
	httpopts "github.com/kart-io/contract-assistant/pkg/options/server/http"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
	"github.com/kart-io/contract-assistant/pkg/utils/json"
)

var vocabulary = []string{"terminat", "payment", "penalt"}

// fakeOpenAI serves keyword-count embeddings and echoes the first context
// paragraph of the system prompt as the chat answer.
func fakeOpenAI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasSuffix(r.URL.Path, "/embeddings"):
			var req struct {
				Input []string `json:"input"`
			}
			require.NoError(t, json.Unmarshal(body, &req))
			data := make([]map[string]any, len(req.Input))
			for i, text := range req.Input {
				lower := strings.ToLower(text)
				vec := make([]float32, len(vocabulary)+1)
				for j, w := range vocabulary {
					vec[j] = float32(strings.Count(lower, w))
				}
				vec[len(vocabulary)] = 0.1
				data[i] = map[string]any{"embedding": vec, "index": i}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "model": "fake-embed"})

		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			var req struct {
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			require.NoError(t, json.Unmarshal(body, &req))
			system := req.Messages[0].Content
			ctxText := system[strings.LastIndex(system, "concise.\n\n")+len("concise.\n\n"):]
			answer := strings.SplitN(ctxText, "\n\n", 2)[0]
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": answer}, "finish_reason": "stop"}},
			})

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func providerOptions(base *llmopts.ProviderOptions, url string) *llmopts.ProviderOptions {
	base.BaseURL = url
	base.APIKey = "test-key"
	base.MaxAttempts = 1
	base.CallTimeout = 5 * time.Second
	return base
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	srv := fakeOpenAI(t)
	dir := t.TempDir()

	idx := indexopts.NewOptions()
	idx.Path = filepath.Join(dir, "index.json")
	rag := ragopts.NewOptions()
	rag.UploadDir = filepath.Join(dir, "uploads")
	rag.ChunkSize = 120
	rag.ChunkOverlap = 20

	return &Config{
		Tracing:    tracing.NewOptions(),
		Embedding:  providerOptions(llmopts.NewEmbeddingOptions(), srv.URL),
		Chat:       providerOptions(llmopts.NewChatOptions(), srv.URL),
		RAG:        rag,
		Index:      idx,
		Milvus:     milvusopts.NewOptions(),
		Cache:      cacheopts.NewOptions(),
		Pool:       poolopts.NewOptions(),
		Middleware: mwopts.NewOptions(),
	}
}

func writeContract(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "contract.txt")
	content := "Payment is due within 30 days of invoice.\n\n" +
		"Either party may terminate this agreement with 60 days written notice. Termination is effective at month end.\n\n" +
		"Late delivery incurs a penalty of 1% per week."
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestBuild_RequireIndexFailsWhenMissing(t *testing.T) {
	cfg := testConfig(t)
	cfg.RequireIndex = true

	_, err := cfg.Build(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrIndexNotFound.Code))
	assert.Contains(t, err.Error(), "ingest")
}

func TestBuild_IngestThenAnswer(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	rt, err := cfg.Build(ctx)
	require.NoError(t, err)
	defer rt.Close(ctx)

	_, err = rt.Service.Answer(ctx, "What is the termination clause?")
	assert.True(t, errors.IsCode(err, errors.ErrNoDocuments.Code))

	report, err := rt.Service.Ingest(ctx, []string{writeContract(t, t.TempDir())})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Loaded)
	assert.FileExists(t, cfg.Index.Path)

	res, err := rt.Service.Answer(ctx, "What is the termination clause?")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(res.Answer), "terminat")
	require.NotEmpty(t, res.RetrievedChunks)
	assert.Contains(t, res.RetrievedChunks[0].Content, "terminate")
	assert.Len(t, rt.Cases, 3)

	// 重新启动后从文件恢复
	cfg.RequireIndex = true
	rt2, err := cfg.Build(ctx)
	require.NoError(t, err)
	defer rt2.Close(ctx)
	assert.Equal(t, rt.Handle.Load().ID(), rt2.Handle.Load().ID())
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestServer_ServesInvoke(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP = httpopts.NewOptions()
	cfg.HTTP.Addr = freeAddr(t)
	cfg.ShutdownTimeout = time.Second

	s, err := cfg.NewServer(context.Background())
	require.NoError(t, err)
	_, err = s.Runtime().Service.Ingest(context.Background(), []string{writeContract(t, t.TempDir())})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	url := "http://" + cfg.HTTP.Addr + "/contract-assistant/invoke"
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Post(url, "application/json", strings.NewReader(`{"input":"What is the termination clause?"}`))
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var out struct {
		Output struct {
			Input   string           `json:"input"`
			Context []map[string]any `json:"context"`
			Answer  string           `json:"answer"`
		} `json:"output"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "What is the termination clause?", out.Output.Input)
	assert.NotEmpty(t, out.Output.Context)
	assert.Contains(t, strings.ToLower(out.Output.Answer), "terminat")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewServer_RequiresAServer(t *testing.T) {
	_, err := testConfig(t).NewServer(context.Background())
	assert.Error(t, err)
}
