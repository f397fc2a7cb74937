// Package store 管理向量索引的生命周期：构建、检索、持久化、恢复与原子切换。
package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/internal/pkg/rag/textutil"
	"github.com/kart-io/contract-assistant/pkg/infra/pool"
	"github.com/kart-io/contract-assistant/pkg/llm"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
)

// DefaultBatchSize 每批嵌入的文本块数量。
const DefaultBatchSize = 64

// Entry 索引中的一条记录。
type Entry struct {
	Chunk  model.Chunk `json:"chunk"`
	Vector []float32   `json:"vector"`
}

// Index 内存中的精确检索索引，构建后不可变。
type Index struct {
	id        string
	modelID   string
	dimension int
	createdAt time.Time
	entries   []Entry
	embedder  llm.EmbeddingProvider
}

// ID 返回索引标识（ULID）。
func (idx *Index) ID() string { return idx.id }

// Model 返回构建索引所用的嵌入模型标识。
func (idx *Index) Model() string { return idx.modelID }

// Dimension 返回向量维度，空索引为 0。
func (idx *Index) Dimension() int { return idx.dimension }

// Len 返回条目数量。
func (idx *Index) Len() int { return len(idx.entries) }

// CreatedAt 返回构建时间。
func (idx *Index) CreatedAt() time.Time { return idx.createdAt }

// Entries 返回条目的只读视图。
func (idx *Index) Entries() []Entry { return idx.entries }

// Chunks 按插入顺序返回所有文本块。
func (idx *Index) Chunks() []model.Chunk {
	out := make([]model.Chunk, len(idx.entries))
	for i, e := range idx.entries {
		out[i] = e.Chunk
	}
	return out
}

// Sources 返回索引涉及的来源文件（按首次出现顺序）。
func (idx *Index) Sources() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range idx.entries {
		if _, ok := seen[e.Chunk.Metadata.Source]; ok {
			continue
		}
		seen[e.Chunk.Metadata.Source] = struct{}{}
		out = append(out, e.Chunk.Metadata.Source)
	}
	return out
}

// Search 返回与 query 最相似的 min(k, Len()) 个文本块。
// k <= 0 或索引为空时不调用嵌入服务，直接返回空结果。
// 分数相同时保持插入顺序。
func (idx *Index) Search(ctx context.Context, query string, k int) ([]model.ScoredChunk, error) {
	if k <= 0 || len(idx.entries) == 0 {
		return []model.ScoredChunk{}, nil
	}
	if idx.embedder == nil {
		return nil, errors.ErrConfiguration.WithMessage("index has no embedding provider attached")
	}

	vec, err := idx.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, errors.ErrEmbeddingFailed.WithCause(err)
	}
	if len(vec) != idx.dimension {
		return nil, errors.ErrIndexModelMismatch.WithMessagef(
			"query vector has dimension %d, index has %d", len(vec), idx.dimension)
	}
	return rank(idx.entries, vec, k), nil
}

func rank(entries []Entry, query []float32, k int) []model.ScoredChunk {
	scored := make([]model.ScoredChunk, len(entries))
	for i, e := range entries {
		scored[i] = model.ScoredChunk{
			Chunk: e.Chunk,
			Score: textutil.CosineSimilarity(query, e.Vector),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}

// BuildOptions 构建参数。
type BuildOptions struct {
	// BatchSize 每次嵌入调用的文本块数量，<= 0 时使用 DefaultBatchSize。
	BatchSize int
	// Pool 并发执行嵌入批次，nil 时串行。
	Pool *pool.Pool
}

// Build 为 chunks 生成向量并构建新索引。
// 任一批次失败则整体失败，不产生部分索引。
func Build(ctx context.Context, chunks []model.Chunk, embedder llm.EmbeddingProvider, opts BuildOptions) (*Index, error) {
	if len(chunks) == 0 {
		return nil, errors.ErrEmptyInput
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	batches := (len(chunks) + batchSize - 1) / batchSize
	vectors := make([][]float32, len(chunks))

	embedBatch := func(ctx context.Context, b int) error {
		start := b * batchSize
		end := min(start+batchSize, len(chunks))

		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = chunks[start+i].Content
		}
		out, err := embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("batch %d: %w", b, err)
		}
		if len(out) != len(texts) {
			return fmt.Errorf("batch %d: got %d vectors for %d texts", b, len(out), len(texts))
		}
		copy(vectors[start:end], out)
		return nil
	}

	var err error
	if opts.Pool != nil {
		err = opts.Pool.Run(ctx, batches, embedBatch)
	} else {
		for b := 0; b < batches && err == nil; b++ {
			if err = ctx.Err(); err == nil {
				err = embedBatch(ctx, b)
			}
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.ErrEmbeddingFailed.WithCause(err)
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, errors.ErrEmbeddingFailed.WithMessage("embedding provider returned empty vectors")
	}
	entries := make([]Entry, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != dim {
			return nil, errors.ErrEmbeddingFailed.WithMessagef(
				"chunk %d has dimension %d, expected %d", i, len(vectors[i]), dim)
		}
		c.ID = strconv.Itoa(i)
		entries[i] = Entry{Chunk: c, Vector: vectors[i]}
	}

	idx := &Index{
		id:        newID(),
		modelID:   llm.ModelID(embedder),
		dimension: dim,
		createdAt: time.Now().UTC(),
		entries:   entries,
		embedder:  embedder,
	}
	logger.Infow("vector index built",
		"index_id", idx.id,
		"model", idx.modelID,
		"chunks", len(entries),
		"dimension", dim,
		"batches", batches,
	)
	return idx, nil
}

// FallbackEmpty 返回一个零条目的索引，用于尚未导入文档时启动服务。
func FallbackEmpty(embedder llm.EmbeddingProvider) *Index {
	return &Index{
		id:        newID(),
		modelID:   llm.ModelID(embedder),
		createdAt: time.Now().UTC(),
		embedder:  embedder,
	}
}

func newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
