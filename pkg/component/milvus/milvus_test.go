package milvus

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	milvusopts "github.com/kart-io/contract-assistant/pkg/options/milvus"
)

func TestToColumn(t *testing.T) {
	col, err := toColumn("source", []any{"a.pdf", "b.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, col.(*column.ColumnVarChar).Data())

	col, err = toColumn("page", []any{int64(0), int64(-1)})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, -1}, col.(*column.ColumnInt64).Data())

	_, err = toColumn("page", []any{int64(0), "x"})
	assert.Error(t, err)

	_, err = toColumn("score", []any{1.5})
	assert.Error(t, err)
}

func TestNewRequiresOptions(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)
}

func TestRoundTripAgainstServer(t *testing.T) {
	opts := milvusopts.NewOptions()
	conn, err := net.DialTimeout("tcp", opts.Address, time.Second)
	if err != nil {
		t.Skipf("milvus not reachable at %s", opts.Address)
	}
	_ = conn.Close()

	ctx := context.Background()
	c, err := New(ctx, opts)
	require.NoError(t, err)
	defer func() { _ = c.Close(ctx) }()

	name := "component_test_" + time.Now().Format("150405")
	require.NoError(t, c.CreateCollection(ctx, &CollectionSchema{Name: name, Dimension: 2}))
	defer func() { _ = c.DropCollection(ctx, name) }()

	_, err = c.Insert(ctx, name, &InsertData{Embeddings: [][]float32{{1, 0}, {0, 1}}})
	require.NoError(t, err)

	res, err := c.Search(ctx, name, []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, res, 1)
}
