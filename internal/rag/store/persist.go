package store

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/contract-assistant/pkg/llm"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
	"github.com/kart-io/contract-assistant/pkg/utils/json"
)

// FormatVersion 索引文件格式版本。
const FormatVersion = 1

type document struct {
	FormatVersion int       `json:"format_version"`
	ID            string    `json:"id"`
	Model         string    `json:"model"`
	Dimension     int       `json:"dimension"`
	CreatedAt     time.Time `json:"created_at"`
	Entries       []Entry   `json:"entries"`
}

// Persist 将索引写入 path。
// 先写同目录临时文件并 fsync，再 rename 覆盖，读者不会看到半写的文件。
func Persist(idx *Index, path string) (err error) {
	if idx == nil {
		return errors.ErrIndexPersist.WithMessage("nil index")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.ErrIndexPersist.WithCause(err)
	}

	data, err := json.Marshal(document{
		FormatVersion: FormatVersion,
		ID:            idx.id,
		Model:         idx.modelID,
		Dimension:     idx.dimension,
		CreatedAt:     idx.createdAt,
		Entries:       idx.entries,
	})
	if err != nil {
		return errors.ErrIndexPersist.WithCause(err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.ErrIndexPersist.WithCause(err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.ErrIndexPersist.WithCause(err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.ErrIndexPersist.WithCause(err)
	}
	if err = tmp.Close(); err != nil {
		return errors.ErrIndexPersist.WithCause(err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.ErrIndexPersist.WithCause(err)
	}

	logger.Infow("vector index persisted", "path", path, "index_id", idx.id, "bytes", len(data))
	return nil
}

// Restore 从 path 读取索引并绑定 embedder。
// 文件缺失、不可读或格式无效时返回 ErrIndexNotFound；
// 模型标识与 embedder 不一致时返回 ErrIndexModelMismatch。
func Restore(path string, embedder llm.EmbeddingProvider) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.ErrIndexNotFound.WithMessagef("index not found at %s", path)
		}
		return nil, errors.ErrIndexNotFound.WithMessagef("index at %s is unreadable", path).WithCause(err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.ErrIndexNotFound.WithMessagef("index at %s is corrupt", path).WithCause(err)
	}
	if err := doc.validate(); err != nil {
		return nil, errors.ErrIndexNotFound.WithMessagef("index at %s is invalid", path).WithCause(err)
	}

	want := llm.ModelID(embedder)
	if doc.Model != want {
		return nil, errors.ErrIndexModelMismatch.WithMessagef(
			"index was built with %q but the configured embedding model is %q; re-run ingest", doc.Model, want)
	}

	return &Index{
		id:        doc.ID,
		modelID:   doc.Model,
		dimension: doc.Dimension,
		createdAt: doc.CreatedAt,
		entries:   doc.Entries,
		embedder:  embedder,
	}, nil
}

func (d *document) validate() error {
	if d.FormatVersion != FormatVersion {
		return fmt.Errorf("unsupported format version %d", d.FormatVersion)
	}
	if d.ID == "" || d.Model == "" {
		return fmt.Errorf("missing id or model")
	}
	for i, e := range d.Entries {
		if len(e.Vector) != d.Dimension {
			return fmt.Errorf("entry %d has dimension %d, expected %d", i, len(e.Vector), d.Dimension)
		}
	}
	return nil
}

// Open 恢复 path 处的索引；索引不存在时记录警告并返回空索引。
// 模型不一致等配置错误仍然返回错误。
func Open(path string, embedder llm.EmbeddingProvider) (*Index, error) {
	idx, err := Restore(path, embedder)
	if err == nil {
		logger.Infow("vector index restored", "path", path, "index_id", idx.ID(), "chunks", idx.Len())
		return idx, nil
	}
	if errors.IsCode(err, errors.ErrIndexNotFound.Code) {
		logger.Warnw("no usable index, starting empty; run ingest to add documents", "path", path, "reason", err.Error())
		return FallbackEmpty(embedder), nil
	}
	return nil, err
}
