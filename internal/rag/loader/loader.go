// Package loader 将不同格式的文件转换为带来源元数据的文本片段。
//
// 加载器按扩展名（大小写不敏感）从静态表中选择，未登记的扩展名
// 使用通用文本加载器。无法解析的文件返回 errors.ErrLoadFailure，
// 由调用方记录并跳过。
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/internal/pkg/rag/textutil"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
)

// Loader 将单个文件读取为若干文本片段。
type Loader interface {
	Load(ctx context.Context, path string) ([]model.Segment, error)
	Name() string
}

// Registry 扩展名到加载器的映射。
type Registry struct {
	loaders  map[string]Loader
	fallback Loader
}

// NewRegistry 创建包含内置加载器的注册表。
func NewRegistry() *Registry {
	text := NewTextLoader()
	r := &Registry{
		loaders:  make(map[string]Loader),
		fallback: NewGenericLoader(),
	}
	for _, ext := range []string{".txt", ".text", ".md", ".markdown", ".csv"} {
		r.Register(ext, text)
	}
	r.Register(".pdf", NewPDFLoader())
	r.Register(".docx", NewDocxLoader())
	html := NewHTMLLoader()
	r.Register(".html", html)
	r.Register(".htm", html)
	return r
}

// Register 为扩展名登记加载器，已有登记会被覆盖。
func (r *Registry) Register(ext string, l Loader) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.loaders[ext] = l
}

// For 返回处理 path 的加载器。
func (r *Registry) For(path string) Loader {
	if l, ok := r.loaders[strings.ToLower(filepath.Ext(path))]; ok {
		return l
	}
	return r.fallback
}

// Extensions 返回已登记的扩展名，按字母序排列。
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Load 使用匹配的加载器读取文件。
func (r *Registry) Load(ctx context.Context, path string) ([]model.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.For(path).Load(ctx, path)
}

func loadFailure(path string, err error) error {
	return errors.ErrLoadFailure.WithMessagef("failed to load %s", filepath.Base(path)).WithCause(err)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadFailure(path, err)
	}
	return data, nil
}

// single 将整篇文本包装为一个无页码片段，空文本视为加载失败。
func single(path, content string) ([]model.Segment, error) {
	if textutil.IsBlank(content) {
		return nil, loadFailure(path, fmt.Errorf("no extractable text"))
	}
	return []model.Segment{{
		Content:  content,
		Metadata: model.Metadata{Source: path},
	}}, nil
}
