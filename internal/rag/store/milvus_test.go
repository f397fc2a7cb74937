package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/pkg/component/milvus"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
)

func fromSearchResultsFixture() []model.ScoredChunk {
	return fromSearchResults([]milvus.SearchResult{
		{Score: 0.5, Metadata: map[string]any{fieldChunkID: "2", fieldOrdinal: int64(2), fieldPage: int64(4), fieldSource: "a.pdf"}},
		{Score: 0.9, Metadata: map[string]any{fieldChunkID: "1", fieldOrdinal: int64(1), fieldPage: noPage, fieldSource: "b.txt"}},
		{Score: 0.5, Metadata: map[string]any{fieldOrdinal: int64(3), fieldPage: noPage}},
	})
}

func TestToInsertData(t *testing.T) {
	entries := []Entry{
		{Chunk: model.Chunk{ID: "5", Content: "x", Metadata: model.Metadata{Source: "a.pdf", Page: model.IntPtr(2)}}, Vector: []float32{1, 0}},
		{Chunk: model.Chunk{ID: "6", Content: "y", Metadata: model.Metadata{Source: "b.txt"}}, Vector: []float32{0, 1}},
	}
	data := toInsertData(entries, 5, "fake/kw-1")

	require.Len(t, data.Embeddings, 2)
	assert.Equal(t, []any{int64(2), noPage}, data.Metadata[fieldPage])
	assert.Equal(t, []any{int64(5), int64(6)}, data.Metadata[fieldOrdinal])
	assert.Equal(t, []any{"fake/kw-1", "fake/kw-1"}, data.Metadata[fieldModel])
}

// fakeMilvus 内存中的集合与别名，记录别名切换时目标集合的行数。
type fakeMilvus struct {
	mu          sync.Mutex
	rows        map[string]int
	aliases     map[string]string
	failInsert  bool
	rowsAtAlias []int
}

func newFakeMilvus() *fakeMilvus {
	return &fakeMilvus{rows: map[string]int{}, aliases: map[string]string{}}
}

func (f *fakeMilvus) HasCollection(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[name]
	return ok, nil
}

func (f *fakeMilvus) CreateCollection(_ context.Context, schema *milvus.CollectionSchema) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[schema.Name]; !ok {
		f.rows[schema.Name] = 0
	}
	return nil
}

func (f *fakeMilvus) DropCollection(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for alias, target := range f.aliases {
		if target == name {
			return fmt.Errorf("collection %s still has alias %s", name, alias)
		}
	}
	delete(f.rows, name)
	return nil
}

func (f *fakeMilvus) ListCollections(_ context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for name := range f.rows {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeMilvus) Insert(_ context.Context, collection string, data *milvus.InsertData) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert {
		return nil, fmt.Errorf("insert rejected")
	}
	f.rows[collection] += len(data.Embeddings)
	return nil, nil
}

func (f *fakeMilvus) Search(context.Context, string, []float32, int, []string) ([]milvus.SearchResult, error) {
	return nil, nil
}

func (f *fakeMilvus) RowCount(_ context.Context, collection string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.rows[collection]
	if !ok {
		return 0, fmt.Errorf("collection %s not found", collection)
	}
	return int64(n), nil
}

func (f *fakeMilvus) Aliases(_ context.Context, collection string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for alias, target := range f.aliases {
		if target == collection {
			out = append(out, alias)
		}
	}
	return out, nil
}

func (f *fakeMilvus) CreateAlias(_ context.Context, alias, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.aliases[alias]; ok {
		return fmt.Errorf("alias %s exists", alias)
	}
	if _, ok := f.rows[alias]; ok {
		return fmt.Errorf("alias %s collides with a collection", alias)
	}
	f.aliases[alias] = collection
	f.rowsAtAlias = append(f.rowsAtAlias, f.rows[collection])
	return nil
}

func (f *fakeMilvus) AlterAlias(_ context.Context, alias, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.aliases[alias]; !ok {
		return fmt.Errorf("alias %s not found", alias)
	}
	f.aliases[alias] = collection
	f.rowsAtAlias = append(f.rowsAtAlias, f.rows[collection])
	return nil
}

func (f *fakeMilvus) DropAlias(_ context.Context, alias string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.aliases, alias)
	return nil
}

func (f *fakeMilvus) collections() []string {
	out, _ := f.ListCollections(context.Background(), "")
	return out
}

func buildSample(t *testing.T, n int) *Index {
	t.Helper()
	chunks := make([]model.Chunk, n)
	for i := range chunks {
		chunks[i] = chunk(fmt.Sprintf("payment clause %d", i), "/docs/a.pdf", model.IntPtr(i))
	}
	idx, err := Build(context.Background(), chunks, &keywordEmbedder{}, BuildOptions{})
	require.NoError(t, err)
	return idx
}

func TestMilvusPublishSwitchesAliasToFullCollection(t *testing.T) {
	ctx := context.Background()
	fake := newFakeMilvus()
	ms := NewMilvusStore(fake, "contracts", 2, &keywordEmbedder{})

	first := buildSample(t, 5)
	require.NoError(t, ms.Publish(ctx, first))
	assert.Equal(t, "contracts_v_"+strings.ToLower(first.ID()), fake.aliases["contracts"])
	n, err := ms.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	second := buildSample(t, 3)
	require.NoError(t, ms.Publish(ctx, second))
	assert.Equal(t, "contracts_v_"+strings.ToLower(second.ID()), fake.aliases["contracts"])
	assert.Equal(t, []string{"contracts_v_" + strings.ToLower(second.ID())}, fake.collections())
	// 别名切换时目标集合已写满
	assert.Equal(t, []int{5, 3}, fake.rowsAtAlias)

	n, err = ms.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMilvusPublishFailureKeepsServingPreviousIndex(t *testing.T) {
	ctx := context.Background()
	fake := newFakeMilvus()
	ms := NewMilvusStore(fake, "contracts", 2, &keywordEmbedder{})

	first := buildSample(t, 4)
	require.NoError(t, ms.Publish(ctx, first))

	fake.failInsert = true
	err := ms.Publish(ctx, buildSample(t, 6))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrVectorStore.Code))

	live := "contracts_v_" + strings.ToLower(first.ID())
	assert.Equal(t, live, fake.aliases["contracts"])
	assert.Equal(t, []string{live}, fake.collections())
	n, err := ms.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestMilvusPublishReplacesPlainCollection(t *testing.T) {
	ctx := context.Background()
	fake := newFakeMilvus()
	fake.rows["contracts"] = 7
	ms := NewMilvusStore(fake, "contracts", 0, &keywordEmbedder{})

	idx := buildSample(t, 2)
	require.NoError(t, ms.Publish(ctx, idx))
	assert.Equal(t, []string{"contracts_v_" + strings.ToLower(idx.ID())}, fake.collections())
	assert.Equal(t, "contracts_v_"+strings.ToLower(idx.ID()), fake.aliases["contracts"])
}

func TestMilvusLenWithoutPublish(t *testing.T) {
	ms := NewMilvusStore(newFakeMilvus(), "contracts", 0, &keywordEmbedder{})
	n, err := ms.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	res, err := ms.Search(context.Background(), "payment", 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}
