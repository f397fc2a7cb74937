package loader

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/logger"
	"github.com/ledongthuc/pdf"
)

// PDFLoader 按页提取 PDF 文本，页码从 0 开始。
type PDFLoader struct{}

// NewPDFLoader 创建 PDF 加载器。
func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

// Name 返回加载器名称。
func (l *PDFLoader) Name() string {
	return "pdf"
}

// Load 每个有文本的页面生成一个片段，空白页跳过。
func (l *PDFLoader) Load(ctx context.Context, path string) (segments []model.Segment, err error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	// 损坏的文件可能让解析库 panic
	defer func() {
		if r := recover(); r != nil {
			segments, err = nil, loadFailure(path, fmt.Errorf("parse pdf: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, loadFailure(path, err)
	}

	pageCount := reader.NumPage()
	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text := pageText(path, i-1, func() (string, error) { return page.GetPlainText(nil) })
		if text == "" {
			continue
		}
		segments = append(segments, model.Segment{
			Content:  text,
			Metadata: model.Metadata{Source: path, Page: model.IntPtr(i - 1)},
		})
	}

	if len(segments) == 0 {
		return nil, loadFailure(path, fmt.Errorf("no extractable text in %d pages", pageCount))
	}
	return segments, nil
}

// pageText 提取单页文本，失败的页面记录日志后按空白页处理。
func pageText(path string, page int, extract func() (string, error)) string {
	text, err := extract()
	if err != nil {
		logger.Debugw("pdf page skipped", "path", path, "page", page, "error", err.Error())
		return ""
	}
	return strings.TrimSpace(text)
}
