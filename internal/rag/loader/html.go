package loader

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/internal/pkg/rag/textutil"
)

// HTMLLoader 提取 HTML 正文文本。
type HTMLLoader struct{}

// NewHTMLLoader 创建 HTML 加载器。
func NewHTMLLoader() *HTMLLoader {
	return &HTMLLoader{}
}

// Name 返回加载器名称。
func (l *HTMLLoader) Name() string {
	return "html"
}

// Load 去掉脚本与样式后读取 body 文本。
func (l *HTMLLoader) Load(_ context.Context, path string) ([]model.Segment, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, loadFailure(path, err)
	}
	doc.Find("script, style, noscript, template").Remove()

	var parts []string
	doc.Find("body").Find("h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		// 只取最内层的块，避免嵌套元素重复
		if s.Find("p, li, pre, blockquote").Length() > 0 {
			return
		}
		if text := strings.TrimSpace(textutil.CollapseSpaces(s.Text())); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		parts = append(parts, strings.TrimSpace(textutil.CollapseSpaces(doc.Find("body").Text())))
	}
	return single(path, strings.Join(parts, "\n\n"))
}
