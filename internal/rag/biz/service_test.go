package biz

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/internal/rag/chunker"
	"github.com/kart-io/contract-assistant/internal/rag/store"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
)

type serviceFixture struct {
	svc       *RAGService
	chat      *echoChat
	handle    *store.Handle
	indexPath string
}

func newServiceFixture(t *testing.T, cache *QueryCache) *serviceFixture {
	t.Helper()
	embedder := &keywordEmbedder{}
	chat := &echoChat{}
	indexPath := filepath.Join(t.TempDir(), "contract_index.json")

	idx, err := store.Open(indexPath, embedder)
	require.NoError(t, err)
	handle := store.NewHandle(idx)

	ingestor, err := NewIngestor(&IngestorConfig{
		Chunker:   chunker.DefaultConfig(),
		IndexPath: indexPath,
	}, embedder, handle)
	require.NoError(t, err)

	chain, err := NewChain(NewHandleSearcher(handle), chat, nil)
	require.NoError(t, err)

	return &serviceFixture{
		svc:       NewRAGService(handle, ingestor, chain, cache, embedder, chat),
		chat:      chat,
		handle:    handle,
		indexPath: indexPath,
	}
}

func TestService_TerminationClauseEndToEnd(t *testing.T) {
	f := newServiceFixture(t, nil)
	dir := t.TempDir()
	contract := writeFile(t, dir, "service_agreement.txt",
		"Either party may terminate this agreement with 30 days written notice.\n\n"+
			"The client shall pay all invoices within 15 days.")
	other := writeFile(t, dir, "nda.md", "All confidential information must remain confidential for five years.")

	ctx := context.Background()
	report, err := f.svc.Ingest(ctx, []string{contract, other})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Loaded)

	answer, err := f.svc.Ask(ctx, "What is the termination clause?")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(answer.Answer), "terminate")
	require.NotEmpty(t, answer.Citations)
	assert.Equal(t, "- service_agreement.txt (Page N/A)", answer.Citations[0])
	assert.Contains(t, answer.Formatted, "\n\n**Sources:**\n- service_agreement.txt (Page N/A)")

	// 重新打开持久化的索引后检索结果一致
	restored, err := store.Open(f.indexPath, &keywordEmbedder{})
	require.NoError(t, err)
	assert.Equal(t, f.handle.Load().ID(), restored.ID())
	hits, err := restored.Search(ctx, "termination", 1)
	require.NoError(t, err)
	assert.Contains(t, hits[0].Content, "terminate")
}

func TestService_NoDocuments(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, err := f.svc.Answer(context.Background(), "What is the termination clause?")
	assert.True(t, stderrors.Is(err, errors.ErrNoDocuments))
	assert.Zero(t, f.chat.callCount())
}

func TestService_CacheHitSkipsChain(t *testing.T) {
	client, _ := setupTestRedis(t)
	f := newServiceFixture(t, enabledCache(client))
	dir := t.TempDir()
	path := writeFile(t, dir, "c.txt", "Termination needs notice.")

	ctx := context.Background()
	_, err := f.svc.Ingest(ctx, []string{path})
	require.NoError(t, err)

	first, err := f.svc.Answer(ctx, "termination?")
	require.NoError(t, err)
	second, err := f.svc.Answer(ctx, "termination?")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.chat.callCount())

	// 重新导入后索引 ID 变化，缓存不再命中
	_, err = f.svc.Ingest(ctx, []string{path})
	require.NoError(t, err)
	_, err = f.svc.Answer(ctx, "termination?")
	require.NoError(t, err)
	assert.Equal(t, 2, f.chat.callCount())

	n, err := f.svc.ClearCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestService_Evaluate(t *testing.T) {
	f := newServiceFixture(t, nil)
	dir := t.TempDir()
	path := writeFile(t, dir, "c.txt", "Either party may terminate with notice.")

	ctx := context.Background()
	_, err := f.svc.Ingest(ctx, []string{path})
	require.NoError(t, err)

	report, err := f.svc.Evaluate(ctx, []model.EvaluationCase{
		{Question: "termination?", Keywords: []string{"TERMINATE"}},
		{Question: "payment?", Keywords: []string{"invoice"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 0.5, report.Score)

	empty, err := f.svc.Evaluate(ctx, []model.EvaluationCase{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.Score)

	defaults, err := f.svc.Evaluate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, defaults.Total)
}

func TestService_GetStats(t *testing.T) {
	f := newServiceFixture(t, nil)
	path := writeFile(t, t.TempDir(), "c.txt", "Payment terms.")
	_, err := f.svc.Ingest(context.Background(), []string{path})
	require.NoError(t, err)

	stats, err := f.svc.GetStats(context.Background())
	require.NoError(t, err)
	idx := stats["index"].(map[string]any)
	assert.Equal(t, 1, idx["chunks"])
	assert.Equal(t, []string{path}, idx["sources"])
	assert.WithinDuration(t, time.Now(), idx["created_at"].(time.Time), time.Minute)
	assert.Equal(t, "fake/echo-1", stats["chat_provider"])
	assert.Equal(t, map[string]interface{}{"enabled": false}, stats["cache"])
}

func TestService_GetStatsIncludesHealthChecks(t *testing.T) {
	f := newServiceFixture(t, nil)

	stats, err := f.svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, stats, "dependencies")

	f.svc.AddHealthCheck("redis", func(context.Context) any {
		return map[string]bool{"healthy": true}
	})
	stats, err = f.svc.GetStats(context.Background())
	require.NoError(t, err)
	deps := stats["dependencies"].(map[string]any)
	assert.Equal(t, map[string]bool{"healthy": true}, deps["redis"])
}
