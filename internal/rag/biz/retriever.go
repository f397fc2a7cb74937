package biz

import (
	"context"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/internal/rag/store"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
)

// Searcher 在某个索引上做近邻检索，结果按相似度降序。
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]model.ScoredChunk, error)
}

// HandleSearcher 每次检索时读取 Handle 中的当前索引。
type HandleSearcher struct {
	handle *store.Handle
}

// NewHandleSearcher 创建基于本地索引的检索器。
func NewHandleSearcher(handle *store.Handle) *HandleSearcher {
	return &HandleSearcher{handle: handle}
}

// Search 在当前索引上检索，索引为空时返回 ErrNoDocuments。
func (s *HandleSearcher) Search(ctx context.Context, query string, k int) ([]model.ScoredChunk, error) {
	idx := s.handle.Load()
	if idx == nil || idx.Len() == 0 {
		return nil, errors.ErrNoDocuments
	}
	return idx.Search(ctx, query, k)
}

// MilvusSearcher 使用 Milvus 集合检索，集合为空时返回 ErrNoDocuments。
type MilvusSearcher struct {
	store *store.MilvusStore
}

// NewMilvusSearcher 创建基于 Milvus 的检索器。
func NewMilvusSearcher(s *store.MilvusStore) *MilvusSearcher {
	return &MilvusSearcher{store: s}
}

// Search 实现 Searcher。
func (s *MilvusSearcher) Search(ctx context.Context, query string, k int) ([]model.ScoredChunk, error) {
	n, err := s.store.Len(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.ErrNoDocuments
	}
	return s.store.Search(ctx, query, k)
}
