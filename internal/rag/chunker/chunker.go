// Package chunker 将文本片段递归切分为有界大小、相邻重叠的文本块。
//
// 切分策略：先用优先级最高且存在的分隔符把文本拆成不超过
// ChunkSize-ChunkOverlap 的小块，过大的小块用更低优先级的分隔符递归拆分，
// 分隔符用尽时按字符硬切；再贪心合并小块直到 ChunkSize，
// 每个新块以前一块至少 ChunkOverlap 个字符的尾部开头。长度以 Unicode 字符计。
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
)

const (
	// DefaultChunkSize 默认块大小。
	DefaultChunkSize = 1000
	// DefaultChunkOverlap 默认重叠大小。
	DefaultChunkOverlap = 200
)

// DefaultSeparators 默认分隔符，按优先级从高到低。
func DefaultSeparators() []string {
	return []string{"\n\n", "\n", ".", " "}
}

// Config 切分配置。
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// DefaultConfig 返回默认切分配置。
func DefaultConfig() Config {
	return Config{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separators:   DefaultSeparators(),
	}
}

// Validate 校验配置，overlap 必须小于 size。
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.ErrConfiguration.WithMessagef("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return errors.ErrConfiguration.WithMessagef("chunk overlap must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return errors.ErrConfiguration.WithMessagef("chunk overlap (%d) must be smaller than chunk size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	for _, sep := range c.Separators {
		if sep == "" {
			return errors.ErrConfiguration.WithMessage("separators must not be empty strings")
		}
	}
	return nil
}

// Chunker 递归字符切分器，创建后只读，可并发使用。
type Chunker struct {
	size       int
	overlap    int
	separators []string
}

// New 校验配置并创建切分器，配置非法时返回 errors.ErrConfiguration。
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seps := make([]string, len(cfg.Separators))
	copy(seps, cfg.Separators)
	return &Chunker{
		size:       cfg.ChunkSize,
		overlap:    cfg.ChunkOverlap,
		separators: seps,
	}, nil
}

// Size 返回块大小上限。
func (c *Chunker) Size() int { return c.size }

// Overlap 返回相邻块至少共享的字符数。
func (c *Chunker) Overlap() int { return c.overlap }

// Split 切分所有片段，块继承所属片段的元数据，顺序与输入一致。
func (c *Chunker) Split(segments []model.Segment) []model.Chunk {
	var chunks []model.Chunk
	for _, seg := range segments {
		for _, text := range c.SplitText(seg.Content) {
			chunks = append(chunks, model.Chunk{
				Content:  text,
				Metadata: seg.Metadata,
			})
		}
	}
	return chunks
}

// SplitText 切分单段文本。文本先去除首尾空白，空白块被丢弃。
// 相邻块中后一块以前一块末尾的至少 overlap 个字符开头。
func (c *Chunker) SplitText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if runeLen(text) <= c.size {
		return []string{text}
	}

	var out []string
	for _, chunk := range c.merge(c.pieces(text, c.separators)) {
		if strings.TrimSpace(chunk) != "" {
			out = append(out, chunk)
		}
	}
	return out
}

// pieces 将文本拆成不超过 size-overlap 的小块，拼接后即为原文，
// 为每块前面的重叠尾部留出空间。
func (c *Chunker) pieces(text string, separators []string) []string {
	limit := c.size - c.overlap
	if runeLen(text) <= limit {
		return []string{text}
	}

	separator := ""
	var next []string
	for i, sep := range separators {
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}
	if separator == "" {
		return hardCut(text, limit)
	}

	var out []string
	// 分隔符保留在前一块末尾
	for _, piece := range strings.SplitAfter(text, separator) {
		if piece == "" {
			continue
		}
		if runeLen(piece) <= limit {
			out = append(out, piece)
			continue
		}
		out = append(out, c.pieces(piece, next)...)
	}
	return out
}

// merge 贪心合并小块，每块不超过 size；输出新块时保留尾部作为下一块的开头。
func (c *Chunker) merge(pieces []string) []string {
	var (
		docs []string
		buf  []rune
	)
	for _, piece := range pieces {
		p := []rune(piece)
		if len(buf) > 0 && len(buf)+len(p) > c.size {
			docs = append(docs, string(buf))
			buf = c.carry(buf, c.size-len(p))
		}
		buf = append(buf, p...)
	}
	if len(buf) > 0 {
		docs = append(docs, string(buf))
	}
	return docs
}

// carry 返回 buf 末尾的 overlap 个字符，预算允许时向左扩展到单词开头。
// budget 为下一小块加入前可用的空间，不小于 overlap。
func (c *Chunker) carry(buf []rune, budget int) []rune {
	if c.overlap == 0 {
		return nil
	}
	start := len(buf) - c.overlap
	wordStart := func(i int) bool {
		return !unicode.IsSpace(buf[i]) && (i == 0 || unicode.IsSpace(buf[i-1]))
	}
	ext := start
	for !wordStart(ext) && ext > 0 && len(buf)-ext < budget {
		ext--
	}
	if wordStart(ext) {
		start = ext
	}
	tail := make([]rune, len(buf)-start, c.size)
	copy(tail, buf[start:])
	return tail
}

// hardCut 按 limit 个字符硬切，重叠由 merge 负责。
func hardCut(text string, limit int) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/limit+1)
	for start := 0; start < len(runes); start += limit {
		end := min(start+limit, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
