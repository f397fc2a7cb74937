package store

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/kart-io/logger"
	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/pkg/component/milvus"
	"github.com/kart-io/contract-assistant/pkg/llm"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
)

const (
	fieldChunkID = "chunk_id"
	fieldOrdinal = "ordinal"
	fieldSource  = "source"
	fieldPage    = "page"
	fieldContent = "content"
	fieldModel   = "model"

	// noPage 表示无页码。
	noPage int64 = -1

	maxContentLen = 65535

	defaultInsertBatch = 512
)

var outputFields = []string{fieldChunkID, fieldOrdinal, fieldSource, fieldPage, fieldContent}

// MilvusClient MilvusStore 用到的集合与别名操作，由 *milvus.Client 实现。
type MilvusClient interface {
	HasCollection(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, schema *milvus.CollectionSchema) error
	DropCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context, prefix string) ([]string, error)
	Insert(ctx context.Context, collection string, data *milvus.InsertData) ([]int64, error)
	Search(ctx context.Context, collection string, vector []float32, topK int, outputFields []string) ([]milvus.SearchResult, error)
	RowCount(ctx context.Context, collection string) (int64, error)
	Aliases(ctx context.Context, collection string) ([]string, error)
	CreateAlias(ctx context.Context, alias, collection string) error
	AlterAlias(ctx context.Context, alias, collection string) error
	DropAlias(ctx context.Context, alias string) error
}

var _ MilvusClient = (*milvus.Client)(nil)

// MilvusStore 把本地索引镜像到 Milvus，本地索引文件仍是权威数据。
//
// 每个索引写入独立的版本集合 <collection>_v_<索引ID>，检索经由别名
// <collection> 进行；别名只在版本集合写满后切换，读者看不到半成品。
type MilvusStore struct {
	client     MilvusClient
	collection string
	batch      int
	embedder   llm.EmbeddingProvider
}

// NewMilvusStore 创建 Milvus 存储，batch 为每次写入的条目数，非正数时取 512。
func NewMilvusStore(client MilvusClient, collection string, batch int, embedder llm.EmbeddingProvider) *MilvusStore {
	if batch <= 0 {
		batch = defaultInsertBatch
	}
	return &MilvusStore{client: client, collection: collection, batch: batch, embedder: embedder}
}

func (s *MilvusStore) versionPrefix() string {
	return s.collection + "_v_"
}

func (s *MilvusStore) versionName(indexID string) string {
	return s.versionPrefix() + strings.ToLower(indexID)
}

// Publish 写入新的版本集合，切换别名后删除旧版本。
// 写入或切换失败时别名仍指向旧版本，新集合被清理。
// 调用方需保证同一集合上的 Publish 串行执行。
func (s *MilvusStore) Publish(ctx context.Context, idx *Index) error {
	current, err := s.target(ctx)
	if err != nil {
		return err
	}

	if idx.Len() == 0 {
		if current != "" {
			if err := s.client.DropAlias(ctx, s.collection); err != nil {
				return errors.ErrVectorStore.WithCause(err)
			}
		}
		s.prune(ctx, "")
		return nil
	}

	name := s.versionName(idx.ID())
	if err := s.fill(ctx, name, idx); err != nil {
		s.discard(ctx, name)
		return err
	}

	if current == "" {
		err = s.createAlias(ctx, name)
	} else {
		err = s.client.AlterAlias(ctx, s.collection, name)
	}
	if err != nil {
		s.discard(ctx, name)
		return errors.ErrVectorStore.WithCause(err)
	}

	logger.Infow("vector index mirrored to milvus",
		"alias", s.collection,
		"collection", name,
		"previous", current,
		"index_id", idx.ID(),
		"rows", idx.Len(),
	)
	s.prune(ctx, name)
	return nil
}

// createAlias 首次建立别名。旧版本布局下同名的普通集合先被删除。
func (s *MilvusStore) createAlias(ctx context.Context, name string) error {
	legacy, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return err
	}
	if legacy {
		if err := s.client.DropCollection(ctx, s.collection); err != nil {
			return err
		}
	}
	return s.client.CreateAlias(ctx, s.collection, name)
}

func (s *MilvusStore) fill(ctx context.Context, name string, idx *Index) error {
	schema := &milvus.CollectionSchema{
		Name:        name,
		Description: "contract chunks " + idx.ID(),
		Dimension:   idx.Dimension(),
		Metric:      entity.COSINE,
		MetaFields: []milvus.MetaField{
			{Name: fieldChunkID, DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: fieldOrdinal, DataType: entity.FieldTypeInt64},
			{Name: fieldSource, DataType: entity.FieldTypeVarChar, MaxLen: 1024},
			{Name: fieldPage, DataType: entity.FieldTypeInt64},
			{Name: fieldContent, DataType: entity.FieldTypeVarChar, MaxLen: maxContentLen},
			{Name: fieldModel, DataType: entity.FieldTypeVarChar, MaxLen: 256},
		},
	}
	if err := s.client.CreateCollection(ctx, schema); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}

	entries := idx.Entries()
	for start := 0; start < len(entries); start += s.batch {
		end := min(start+s.batch, len(entries))
		if _, err := s.client.Insert(ctx, name, toInsertData(entries[start:end], start, idx.Model())); err != nil {
			return errors.ErrVectorStore.WithCause(err)
		}
	}
	return nil
}

// target 返回别名当前指向的版本集合，没有别名时为空。
func (s *MilvusStore) target(ctx context.Context) (string, error) {
	versions, err := s.client.ListCollections(ctx, s.versionPrefix())
	if err != nil {
		return "", errors.ErrVectorStore.WithCause(err)
	}
	for _, name := range versions {
		aliases, err := s.client.Aliases(ctx, name)
		if err != nil {
			return "", errors.ErrVectorStore.WithCause(err)
		}
		if slices.Contains(aliases, s.collection) {
			return name, nil
		}
	}
	return "", nil
}

// prune 删除 keep 以外的版本集合，失败只记录日志。
func (s *MilvusStore) prune(ctx context.Context, keep string) {
	versions, err := s.client.ListCollections(ctx, s.versionPrefix())
	if err != nil {
		logger.Warnw("failed to list milvus collections", "prefix", s.versionPrefix(), "error", err.Error())
		return
	}
	for _, name := range versions {
		if name != keep {
			s.discard(ctx, name)
		}
	}
}

func (s *MilvusStore) discard(ctx context.Context, name string) {
	if err := s.client.DropCollection(context.WithoutCancel(ctx), name); err != nil {
		logger.Warnw("failed to drop milvus collection", "collection", name, "error", err.Error())
	}
}

func toInsertData(entries []Entry, offset int, modelID string) *milvus.InsertData {
	n := len(entries)
	data := &milvus.InsertData{
		Embeddings: make([][]float32, n),
		Metadata: map[string][]any{
			fieldChunkID: make([]any, n),
			fieldOrdinal: make([]any, n),
			fieldSource:  make([]any, n),
			fieldPage:    make([]any, n),
			fieldContent: make([]any, n),
			fieldModel:   make([]any, n),
		},
	}
	for i, e := range entries {
		page := noPage
		if e.Chunk.Metadata.Page != nil {
			page = int64(*e.Chunk.Metadata.Page)
		}
		data.Embeddings[i] = e.Vector
		data.Metadata[fieldChunkID][i] = e.Chunk.ID
		data.Metadata[fieldOrdinal][i] = int64(offset + i)
		data.Metadata[fieldSource][i] = e.Chunk.Metadata.Source
		data.Metadata[fieldPage][i] = page
		data.Metadata[fieldContent][i] = e.Chunk.Content
		data.Metadata[fieldModel][i] = modelID
	}
	return data
}

// Len 返回别名指向的集合行数，尚未发布时为 0。
func (s *MilvusStore) Len(ctx context.Context) (int, error) {
	name, err := s.target(ctx)
	if err != nil {
		return 0, err
	}
	if name == "" {
		return 0, nil
	}
	n, err := s.client.RowCount(ctx, name)
	if err != nil {
		return 0, errors.ErrVectorStore.WithCause(err)
	}
	return int(n), nil
}

// Search 在 Milvus 中检索，结果按分数降序、同分按插入序排列。
func (s *MilvusStore) Search(ctx context.Context, query string, k int) ([]model.ScoredChunk, error) {
	if k <= 0 {
		return []model.ScoredChunk{}, nil
	}
	n, err := s.Len(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []model.ScoredChunk{}, nil
	}

	vec, err := s.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, errors.ErrEmbeddingFailed.WithCause(err)
	}

	// 别名由服务端解析到当前版本集合
	results, err := s.client.Search(ctx, s.collection, vec, k, outputFields)
	if err != nil {
		return nil, errors.ErrVectorStore.WithCause(err)
	}
	return fromSearchResults(results), nil
}

func fromSearchResults(results []milvus.SearchResult) []model.ScoredChunk {
	type ranked struct {
		model.ScoredChunk
		ordinal int64
	}
	rows := make([]ranked, 0, len(results))
	for _, r := range results {
		var md model.Metadata
		md.Source, _ = r.Metadata[fieldSource].(string)
		if page, ok := r.Metadata[fieldPage].(int64); ok && page != noPage {
			md.Page = model.IntPtr(int(page))
		}
		id, _ := r.Metadata[fieldChunkID].(string)
		content, _ := r.Metadata[fieldContent].(string)
		ordinal, _ := r.Metadata[fieldOrdinal].(int64)
		if id == "" {
			id = strconv.FormatInt(ordinal, 10)
		}
		rows = append(rows, ranked{
			ScoredChunk: model.ScoredChunk{
				Chunk: model.Chunk{ID: id, Content: content, Metadata: md},
				Score: float64(r.Score),
			},
			ordinal: ordinal,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].ordinal < rows[j].ordinal
	})

	out := make([]model.ScoredChunk, len(rows))
	for i, r := range rows {
		out[i] = r.ScoredChunk
	}
	return out
}
