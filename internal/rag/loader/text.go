package loader

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/internal/pkg/rag/textutil"
)

// TextLoader 读取 UTF-8 纯文本文件。
type TextLoader struct{}

// NewTextLoader 创建纯文本加载器。
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Name 返回加载器名称。
func (l *TextLoader) Name() string {
	return "text"
}

// Load 读取整个文件为一个片段。
func (l *TextLoader) Load(_ context.Context, path string) ([]model.Segment, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	// 去掉 UTF-8 BOM
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}
	if !utf8.Valid(data) {
		return nil, loadFailure(path, fmt.Errorf("file is not valid UTF-8"))
	}
	return single(path, string(data))
}

// GenericLoader 未知格式的尽力而为加载器，只接受大部分可打印的 UTF-8 内容。
type GenericLoader struct {
	// MinPrintable 可打印字符的最小比例。
	MinPrintable float64
}

// NewGenericLoader 创建通用加载器。
func NewGenericLoader() *GenericLoader {
	return &GenericLoader{MinPrintable: 0.95}
}

// Name 返回加载器名称。
func (l *GenericLoader) Name() string {
	return "generic"
}

// Load 将文件按文本读取，二进制内容返回加载失败。
func (l *GenericLoader) Load(_ context.Context, path string) ([]model.Segment, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	content := string(data)
	if !textutil.IsMostlyPrintable(content, l.MinPrintable) {
		return nil, loadFailure(path, fmt.Errorf("unsupported binary content"))
	}
	return single(path, content)
}
