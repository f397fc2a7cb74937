package biz

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/internal/rag/store"
	"github.com/kart-io/contract-assistant/pkg/llm"
)

var vocabulary = []string{"terminat", "penalt", "payment", "confidential"}

// keywordEmbedder 按词表计数生成向量。
type keywordEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (e *keywordEmbedder) Name() string  { return "fake" }
func (e *keywordEmbedder) Model() string { return "kw-1" }

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.fail != nil {
		return nil, e.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		v := make([]float32, len(vocabulary)+1)
		for j, w := range vocabulary {
			v[j] = float32(strings.Count(lower, w))
		}
		v[len(vocabulary)] = 0.1
		out[i] = v
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

// echoChat 回显系统提示词中上下文的第一段。
type echoChat struct {
	mu          sync.Mutex
	calls       int
	lastPrompt  string
	lastSystem  string
	temperature *float64
	reply       string
	err         error
}

func (c *echoChat) Name() string  { return "fake" }
func (c *echoChat) Model() string { return "echo-1" }

func (c *echoChat) Chat(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (*llm.GenerateResponse, error) {
	var system, prompt string
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			system = m.Content
		case llm.RoleUser:
			prompt = m.Content
		}
	}
	return c.Generate(ctx, prompt, system, opts...)
}

func (c *echoChat) Generate(_ context.Context, prompt, system string, opts ...llm.GenerateOption) (*llm.GenerateResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.lastPrompt = prompt
	c.lastSystem = system
	c.temperature = llm.ApplyGenerateOptions(opts...).Temperature
	if c.err != nil {
		return nil, c.err
	}
	if c.reply != "" {
		return &llm.GenerateResponse{Content: c.reply}, nil
	}
	ctxText := system
	if i := strings.LastIndex(system, "concise.\n\n"); i >= 0 {
		ctxText = system[i+len("concise.\n\n"):]
	}
	first := strings.SplitN(ctxText, "\n\n", 2)[0]
	return &llm.GenerateResponse{
		Content:    "According to the contract: " + first,
		TokenUsage: &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (c *echoChat) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// staticSearcher 返回固定结果。
type staticSearcher struct {
	results []model.ScoredChunk
	err     error
	lastK   int
}

func (s *staticSearcher) Search(_ context.Context, _ string, k int) ([]model.ScoredChunk, error) {
	s.lastK = k
	if s.err != nil {
		return nil, s.err
	}
	if k < len(s.results) {
		return s.results[:k], nil
	}
	return s.results, nil
}

func scored(id, content, source string, page *int, score float64) model.ScoredChunk {
	return model.ScoredChunk{
		Chunk: model.Chunk{ID: id, Content: content, Metadata: model.Metadata{Source: source, Page: page}},
		Score: score,
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type recordingPublisher struct {
	published []string
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, idx *store.Index) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, idx.ID())
	return nil
}
