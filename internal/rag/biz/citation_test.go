package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/contract-assistant/internal/model"
)

func TestFormatCitations(t *testing.T) {
	result := &model.QueryResult{
		Answer: "Thirty days notice.",
		RetrievedChunks: []model.Chunk{
			{Content: "a", Metadata: model.Metadata{Source: "/data/x.pdf", Page: model.IntPtr(3)}},
			{Content: "b", Metadata: model.Metadata{Source: "/other/y.txt"}},
			{Content: "c", Metadata: model.Metadata{Source: "/data/x.pdf", Page: model.IntPtr(3)}},
			{Content: "d", Metadata: model.Metadata{Source: "/data/x.pdf", Page: model.IntPtr(0)}},
		},
	}

	got := FormatCitations(result)
	assert.Equal(t, []string{
		"- x.pdf (Page 3)",
		"- y.txt (Page N/A)",
		"- x.pdf (Page 0)",
	}, got.Citations)
	assert.Equal(t, "Thirty days notice.\n\n**Sources:**\n- x.pdf (Page 3)\n- y.txt (Page N/A)\n- x.pdf (Page 0)", got.Formatted)
	assert.Equal(t, "Thirty days notice.", got.Answer)
}

func TestFormatCitations_SameBasenameDifferentDirs(t *testing.T) {
	result := &model.QueryResult{
		Answer: "ok",
		RetrievedChunks: []model.Chunk{
			{Metadata: model.Metadata{Source: "/a/contract.txt"}},
			{Metadata: model.Metadata{Source: "/b/contract.txt"}},
		},
	}
	assert.Equal(t, []string{"- contract.txt (Page N/A)"}, FormatCitations(result).Citations)
}

func TestFormatCitations_NoChunks(t *testing.T) {
	got := FormatCitations(&model.QueryResult{Answer: "I don't know."})
	assert.Empty(t, got.Citations)
	assert.Equal(t, "I don't know.", got.Formatted)
}
