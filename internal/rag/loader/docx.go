package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/kart-io/contract-assistant/internal/model"
)

const docxBody = "word/document.xml"

// DocxLoader 读取 Office Open XML 文档的段落文本。
type DocxLoader struct{}

// NewDocxLoader 创建 docx 加载器。
func NewDocxLoader() *DocxLoader {
	return &DocxLoader{}
}

// Name 返回加载器名称。
func (l *DocxLoader) Name() string {
	return "docx"
}

// Load 段落之间以空行分隔，整篇为一个片段。
func (l *DocxLoader) Load(_ context.Context, path string) ([]model.Segment, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, loadFailure(path, err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return nil, loadFailure(path, fmt.Errorf("missing %s", docxBody))
	}

	rc, err := body.Open()
	if err != nil {
		return nil, loadFailure(path, err)
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(rc)
	if err != nil {
		return nil, loadFailure(path, err)
	}
	return single(path, strings.Join(paragraphs, "\n\n"))
}

// docxParagraphs 遍历 w:p / w:t 元素收集段落。
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if p := strings.TrimSpace(current.String()); p != "" {
					paragraphs = append(paragraphs, p)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
