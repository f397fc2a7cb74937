package biz

import (
	"fmt"
	"strings"

	"github.com/kart-io/contract-assistant/internal/model"
)

// SourcesHeader 引用列表的标题。
const SourcesHeader = "**Sources:**"

// Citation 返回单个文本块的引用行。
func Citation(md model.Metadata) string {
	return fmt.Sprintf("- %s (Page %s)", md.Basename(), md.PageLabel())
}

// FormatCitations 为回答追加引用来源。引用按首次检索到的顺序排列并去重，
// 没有检索结果时 Formatted 即回答本身。
func FormatCitations(result *model.QueryResult) *model.FormattedAnswer {
	seen := make(map[string]struct{}, len(result.RetrievedChunks))
	citations := make([]string, 0, len(result.RetrievedChunks))
	for _, ch := range result.RetrievedChunks {
		c := Citation(ch.Metadata)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		citations = append(citations, c)
	}

	formatted := result.Answer
	if len(citations) > 0 {
		formatted += "\n\n" + SourcesHeader + "\n" + strings.Join(citations, "\n")
	}

	return &model.FormattedAnswer{
		Answer:    result.Answer,
		Citations: citations,
		Formatted: formatted,
	}
}
