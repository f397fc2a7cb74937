package biz

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/internal/pkg/rag/docutil"
	"github.com/kart-io/contract-assistant/internal/rag/chunker"
	"github.com/kart-io/contract-assistant/internal/rag/loader"
	"github.com/kart-io/contract-assistant/internal/rag/metrics"
	"github.com/kart-io/contract-assistant/internal/rag/store"
	"github.com/kart-io/contract-assistant/pkg/infra/pool"
	"github.com/kart-io/contract-assistant/pkg/infra/tracing"
	"github.com/kart-io/contract-assistant/pkg/llm"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
	"github.com/kart-io/logger"
)

// Publisher 将新建索引同步到外部向量库。
type Publisher interface {
	Publish(ctx context.Context, idx *store.Index) error
}

// IngestorConfig 导入配置。
type IngestorConfig struct {
	// Chunker 分块参数。
	Chunker chunker.Config
	// BatchSize 嵌入批大小。
	BatchSize int
	// IndexPath 索引文件路径。
	IndexPath string
}

// Ingestor 构建并发布索引。每次导入生成全新索引，成功后原子替换当前索引。
type Ingestor struct {
	loaders   *loader.Registry
	chunker   *chunker.Chunker
	embedder  llm.EmbeddingProvider
	handle    *store.Handle
	pool      *pool.Pool
	publisher Publisher
	config    *IngestorConfig
	metrics   *metrics.RAGMetrics

	// publishMu 保证外部向量库、磁盘文件与内存句柄按同一顺序更新。
	publishMu sync.Mutex
}

// IngestorOption 配置 Ingestor。
type IngestorOption func(*Ingestor)

// WithPool 使用工作池并发加载文件与嵌入。
func WithPool(p *pool.Pool) IngestorOption {
	return func(in *Ingestor) {
		in.pool = p
	}
}

// WithPublisher 在持久化前将索引同步到外部向量库。
func WithPublisher(p Publisher) IngestorOption {
	return func(in *Ingestor) {
		in.publisher = p
	}
}

// WithLoaders 替换默认加载器注册表。
func WithLoaders(r *loader.Registry) IngestorOption {
	return func(in *Ingestor) {
		in.loaders = r
	}
}

// NewIngestor 创建导入器，分块配置非法时返回 ErrConfiguration。
func NewIngestor(config *IngestorConfig, embedder llm.EmbeddingProvider, handle *store.Handle, opts ...IngestorOption) (*Ingestor, error) {
	ch, err := chunker.New(config.Chunker)
	if err != nil {
		return nil, err
	}
	in := &Ingestor{
		loaders:  loader.NewRegistry(),
		chunker:  ch,
		embedder: embedder,
		handle:   handle,
		config:   config,
		metrics:  metrics.GetRAGMetrics(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

// Ingest 加载 paths 中的文件（目录递归展开），构建索引，持久化并替换当前索引。
// 单个文件加载失败只记录在报告中；没有任何可索引内容时返回 ErrEmptyInput。
func (in *Ingestor) Ingest(ctx context.Context, paths []string) (report *model.IngestReport, err error) {
	if len(paths) == 0 {
		return nil, errors.ErrNoFiles
	}

	ctx, span := tracing.Start(ctx, tracerName, "ingest", tracing.Files.Int(len(paths)))
	defer span.End()

	start := time.Now()
	report = &model.IngestReport{}
	defer func() {
		report.Duration = time.Since(start)
		in.metrics.RecordIngest(report.Duration, report.Loaded, len(report.Failed), report.Chunks, err)
		if err != nil {
			tracing.Fail(ctx, err)
		}
	}()

	files, err := docutil.ExpandPaths(paths, in.loaders.Extensions())
	if err != nil {
		return report, errors.ErrNoFiles.WithCause(err)
	}
	if len(files) == 0 {
		return report, errors.ErrNoFiles
	}
	report.Files = len(files)

	segments, err := in.load(ctx, files, report)
	if err != nil {
		return report, err
	}
	report.Segments = len(segments)

	chunks := in.chunker.Split(segments)
	report.Chunks = len(chunks)

	idx, err := store.Build(ctx, chunks, in.embedder, store.BuildOptions{
		BatchSize: in.config.BatchSize,
		Pool:      in.pool,
	})
	if err != nil {
		return report, err
	}

	if err = in.publish(ctx, idx); err != nil {
		return report, err
	}

	report.IndexID = idx.ID()
	report.Model = idx.Model()
	report.Dimension = idx.Dimension()
	tracing.Annotate(ctx, tracing.IndexID.String(idx.ID()), tracing.Chunks.Int(report.Chunks))
	logger.Infow("index published",
		"index_id", idx.ID(),
		"files", report.Files,
		"loaded", report.Loaded,
		"failed", len(report.Failed),
		"chunks", report.Chunks,
		"path", in.config.IndexPath,
	)
	return report, nil
}

// load 并发加载文件，结果保持输入顺序。
func (in *Ingestor) load(ctx context.Context, files []string, report *model.IngestReport) ([]model.Segment, error) {
	loaded := make([][]model.Segment, len(files))
	failures := make([]error, len(files))

	task := func(ctx context.Context, i int) error {
		loaded[i], failures[i] = in.loaders.Load(ctx, files[i])
		return nil
	}

	if in.pool != nil {
		if err := in.pool.Run(ctx, len(files), task); err != nil {
			return nil, err
		}
	} else {
		for i := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			_ = task(ctx, i)
		}
	}

	var segments []model.Segment
	for i, f := range files {
		if failures[i] != nil {
			logger.Warnw("skipping file", "path", f, "error", failures[i].Error())
			report.Failed = append(report.Failed, model.FileFailure{Path: f, Error: failures[i].Error()})
			continue
		}
		report.Loaded++
		segments = append(segments, loaded[i]...)
	}
	return segments, nil
}

// publish 依次同步向量库、持久化并切换句柄，并发的 Ingest 在此串行。
func (in *Ingestor) publish(ctx context.Context, idx *store.Index) error {
	in.publishMu.Lock()
	defer in.publishMu.Unlock()

	if in.publisher != nil {
		if err := in.publisher.Publish(ctx, idx); err != nil {
			return err
		}
	}
	if err := store.Persist(idx, in.config.IndexPath); err != nil {
		return err
	}
	in.handle.Swap(idx)
	return nil
}
