package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/contract-assistant/pkg/llm"
	"github.com/kart-io/contract-assistant/pkg/utils/httpclient"
)

const testAPIKey = "test-key"

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = testAPIKey
	cfg.MaxRetries = 0
	return NewProviderWithConfig(cfg)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbedModel)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.Nil(t, cfg.Temperature)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(map[string]any{})
	assert.Error(t, err)

	p, err := NewProvider(map[string]any{
		"api_key":     testAPIKey,
		"base_url":    "http://localhost:8000/v1/",
		"embed_model": "text-embedding-3-large",
		"temperature": 0.0,
		"timeout":     "5s",
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, p.Name())
	assert.Equal(t, "text-embedding-3-large", p.Model())

	op := p.(*Provider)
	assert.Equal(t, "http://localhost:8000/v1", op.config.BaseURL)
	require.NotNil(t, op.config.Temperature)
	assert.Equal(t, 5*time.Second, op.config.Timeout)
}

func TestEmbedOrdersByIndex(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Input)

		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[2,2]},{"index":0,"embedding":[1,1]}]}`))
	})

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {2, 2}}, vecs)

	empty, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestEmbedMissingVector(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	})
	_, err := p.Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestGenerateSendsExplicitZeroTemperature(t *testing.T) {
	var raw map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"30 days"}}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`))
	})

	resp, err := p.Generate(context.Background(), "question", "system", llm.WithTemperature(0))
	require.NoError(t, err)
	assert.Equal(t, "30 days", resp.Content)
	assert.Equal(t, 7, resp.TokenUsage.TotalTokens)

	temp, ok := raw["temperature"]
	require.True(t, ok, "temperature must be present")
	assert.Equal(t, 0.0, temp)

	msgs := raw["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestChatOmitsUnsetTemperature(t *testing.T) {
	var raw map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	_, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	_, ok := raw["temperature"]
	assert.False(t, ok)
}

func TestChatNoChoices(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	_, err := p.Generate(context.Background(), "q", "")
	assert.Error(t, err)
}

func TestStatusErrorSurfaces(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	})
	_, err := p.Generate(context.Background(), "q", "")
	assert.Equal(t, http.StatusUnauthorized, httpclient.StatusCode(err))
}

func TestOrganizationHeader(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "org-1", r.Header.Get("OpenAI-Organization"))
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o"}]}`))
	})
	p.config.Organization = "org-1"

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o"}, models)
}

func TestPresetsRegistered(t *testing.T) {
	c, err := llm.NewChatProvider("deepseek", map[string]any{"api_key": testAPIKey})
	require.NoError(t, err)
	assert.Equal(t, "deepseek", c.Name())

	_, err = llm.NewEmbeddingProvider("deepseek", map[string]any{"api_key": testAPIKey})
	assert.Error(t, err, "deepseek has no embedding endpoint")

	e, err := llm.NewEmbeddingProvider("siliconflow", map[string]any{"api_key": testAPIKey})
	require.NoError(t, err)
	assert.Equal(t, "siliconflow/BAAI/bge-m3", llm.ModelID(e))
}
