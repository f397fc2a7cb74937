// Package model provides the data models shared by the contract assistant.
package model

import (
	"path/filepath"
	"strconv"
	"time"
)

// Metadata 描述文本片段的来源。
type Metadata struct {
	// Source 原始文件路径。
	Source string `json:"source"`
	// Page 页码（从 0 开始），无分页的格式为 nil。
	Page *int `json:"page,omitempty"`
}

// PageLabel 返回页码文本，无页码时为 "N/A"。
func (m Metadata) PageLabel() string {
	if m.Page == nil {
		return "N/A"
	}
	return strconv.Itoa(*m.Page)
}

// Basename 返回来源文件名（不含目录）。
func (m Metadata) Basename() string {
	if m.Source == "" {
		return ""
	}
	return filepath.Base(m.Source)
}

// IntPtr 返回 v 的指针，用于构造页码。
func IntPtr(v int) *int {
	return &v
}

// Segment 是加载器产出的一段原始文本。
type Segment struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Chunk 是可被索引的文本块。
type Chunk struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// ScoredChunk 是检索命中的文本块及其相似度。
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// QueryResult 一次问答的结果，回答绑定到实际检索到的文本块。
type QueryResult struct {
	Question        string  `json:"question"`
	RetrievedChunks []Chunk `json:"retrieved_chunks"`
	Answer          string  `json:"answer"`
}

// FormattedAnswer 带引用来源的回答。
type FormattedAnswer struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
	Formatted string   `json:"formatted"`
}

// FileFailure 记录导入时单个文件的失败原因。
type FileFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// IngestReport 一次导入的汇总信息。
type IngestReport struct {
	Files     int           `json:"files"`
	Loaded    int           `json:"loaded"`
	Failed    []FileFailure `json:"failed,omitempty"`
	Segments  int           `json:"segments"`
	Chunks    int           `json:"chunks"`
	IndexID   string        `json:"index_id"`
	Model     string        `json:"model"`
	Dimension int           `json:"dimension"`
	Duration  time.Duration `json:"duration"`
}
