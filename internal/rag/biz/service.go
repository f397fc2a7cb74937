package biz

import (
	"context"
	stderrors "errors"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/internal/pkg/rag/evaluator"
	"github.com/kart-io/contract-assistant/internal/rag/metrics"
	"github.com/kart-io/contract-assistant/internal/rag/store"
	"github.com/kart-io/contract-assistant/pkg/llm"
	"github.com/kart-io/contract-assistant/pkg/llm/resilience"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
)

// Service 定义合同问答服务接口。
type Service interface {
	// Ingest 导入文件并替换当前索引。
	Ingest(ctx context.Context, paths []string) (*model.IngestReport, error)
	// Answer 回答问题，结果绑定检索到的文本块。
	Answer(ctx context.Context, question string) (*model.QueryResult, error)
	// Ask 回答问题并附带引用来源。
	Ask(ctx context.Context, question string) (*model.FormattedAnswer, error)
	// Evaluate 执行关键词评估。
	Evaluate(ctx context.Context, cases []model.EvaluationCase) (*model.EvaluationReport, error)
	// GetStats 获取索引与运行统计。
	GetStats(ctx context.Context) (map[string]any, error)
	// ClearCache 清空问答缓存，返回删除的键数量。
	ClearCache(ctx context.Context) (int, error)
}

// RAGService 组合 Ingestor、Chain 与 QueryCache。
type RAGService struct {
	handle        *store.Handle
	ingestor      *Ingestor
	chain         *Chain
	cache         *QueryCache
	embedProvider llm.EmbeddingProvider
	chatProvider  llm.ChatProvider
	metrics       *metrics.RAGMetrics
	checks        map[string]HealthCheck
}

// HealthCheck 返回外部依赖（如 Redis）的健康信息，结果原样写入统计。
type HealthCheck func(ctx context.Context) any

// NewRAGService 创建服务实例。cache 可为 nil。
func NewRAGService(
	handle *store.Handle,
	ingestor *Ingestor,
	chain *Chain,
	cache *QueryCache,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
) *RAGService {
	return &RAGService{
		handle:        handle,
		ingestor:      ingestor,
		chain:         chain,
		cache:         cache,
		embedProvider: embedProvider,
		chatProvider:  chatProvider,
		metrics:       metrics.GetRAGMetrics(),
		checks:        make(map[string]HealthCheck),
	}
}

// AddHealthCheck 注册依赖健康检查，同名覆盖。需在服务对外提供前调用。
func (s *RAGService) AddHealthCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

// Ingest 导入文件并替换当前索引。
func (s *RAGService) Ingest(ctx context.Context, paths []string) (*model.IngestReport, error) {
	return s.ingestor.Ingest(ctx, paths)
}

// Answer 先查缓存，未命中时运行问答链并回写缓存。
func (s *RAGService) Answer(ctx context.Context, question string) (*model.QueryResult, error) {
	indexID := s.handle.Load().ID()

	if cached, err := s.cache.Get(ctx, indexID, question); err == nil && cached != nil {
		s.metrics.RecordQuery(true, false, nil)
		return cached, nil
	}

	result, err := s.chain.Answer(ctx, question)
	if err != nil {
		s.metrics.RecordQuery(false, stderrors.Is(err, errors.ErrNoDocuments), err)
		return nil, err
	}

	// 写入失败已记录日志，不影响返回
	_ = s.cache.Set(ctx, indexID, result)
	s.metrics.RecordQuery(false, false, nil)
	return result, nil
}

// Ask 回答问题并格式化引用。
func (s *RAGService) Ask(ctx context.Context, question string) (*model.FormattedAnswer, error) {
	result, err := s.Answer(ctx, question)
	if err != nil {
		return nil, err
	}
	return FormatCitations(result), nil
}

// Evaluate 执行评估，cases 为空时使用内置用例。
func (s *RAGService) Evaluate(ctx context.Context, cases []model.EvaluationCase) (*model.EvaluationReport, error) {
	if cases == nil {
		cases = evaluator.DefaultCases()
	}
	report, err := evaluator.New(s).Evaluate(ctx, cases)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordEvaluation(report.Total, report.Passed)
	return report, nil
}

// ClearCache 清空问答缓存。
func (s *RAGService) ClearCache(ctx context.Context) (int, error) {
	return s.cache.Clear(ctx)
}

// GetStats 获取索引、缓存、指标与模型韧性统计。
func (s *RAGService) GetStats(ctx context.Context) (map[string]any, error) {
	idx := s.handle.Load()
	stats := map[string]any{
		"index": map[string]any{
			"id":         idx.ID(),
			"model":      idx.Model(),
			"dimension":  idx.Dimension(),
			"chunks":     idx.Len(),
			"sources":    idx.Sources(),
			"created_at": idx.CreatedAt(),
		},
		"embed_provider": llm.ModelID(s.embedProvider),
		"chat_provider":  llm.ModelID(s.chatProvider),
		"metrics":        s.metrics.Stats(),
	}

	cacheStats, err := s.cache.GetStats(ctx)
	if err == nil {
		stats["cache"] = cacheStats
	}

	if rs := resilience.StatsOf(s.embedProvider); rs != nil {
		stats["embed_resilience"] = rs
	}
	if rs := resilience.ChatStatsOf(s.chatProvider); rs != nil {
		stats["chat_resilience"] = rs
	}

	if len(s.checks) > 0 {
		deps := make(map[string]any, len(s.checks))
		for name, check := range s.checks {
			deps[name] = check(ctx)
		}
		stats["dependencies"] = deps
	}
	return stats, nil
}

// 确保 RAGService 实现了 Service 接口。
var _ Service = (*RAGService)(nil)
