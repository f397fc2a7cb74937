// Package metrics 提供合同问答服务的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// RAGMetrics 业务指标。计数器均为原子操作，可并发记录。
type RAGMetrics struct {
	// 查询
	queriesTotal       atomic.Uint64
	queriesCacheHits   atomic.Uint64
	queriesCacheMisses atomic.Uint64
	queriesErrors      atomic.Uint64
	queriesNoDocuments atomic.Uint64

	// 检索
	retrievalTotal  atomic.Uint64
	retrievalErrors atomic.Uint64
	chunksRetrieved atomic.Uint64

	// 生成
	llmCallsTotal       atomic.Uint64
	llmCallsErrors      atomic.Uint64
	llmTokensPrompt     atomic.Uint64
	llmTokensCompletion atomic.Uint64

	// 导入
	ingestRuns    atomic.Uint64
	ingestErrors  atomic.Uint64
	filesLoaded   atomic.Uint64
	filesFailed   atomic.Uint64
	chunksIndexed atomic.Uint64

	// 评估
	evaluationRuns   atomic.Uint64
	evaluationCases  atomic.Uint64
	evaluationPassed atomic.Uint64

	durationMu        sync.Mutex
	retrievalDuration float64
	llmDuration       float64
	ingestDuration    float64
	startTime         time.Time
}

var (
	globalRAGMetrics *RAGMetrics
	ragMetricsOnce   sync.Once
)

// New 创建独立的指标实例。
func New() *RAGMetrics {
	return &RAGMetrics{startTime: time.Now()}
}

// GetRAGMetrics 获取全局指标实例。
func GetRAGMetrics() *RAGMetrics {
	ragMetricsOnce.Do(func() {
		globalRAGMetrics = New()
	})
	return globalRAGMetrics
}

// RecordQuery 记录一次问答。noDocuments 表示索引为空导致的失败。
func (m *RAGMetrics) RecordQuery(cacheHit bool, noDocuments bool, err error) {
	m.queriesTotal.Add(1)
	switch {
	case noDocuments:
		m.queriesNoDocuments.Add(1)
	case err != nil:
		m.queriesErrors.Add(1)
	case cacheHit:
		m.queriesCacheHits.Add(1)
	default:
		m.queriesCacheMisses.Add(1)
	}
}

// RecordRetrieval 记录检索操作。
func (m *RAGMetrics) RecordRetrieval(duration time.Duration, chunks int, err error) {
	m.retrievalTotal.Add(1)
	if err != nil {
		m.retrievalErrors.Add(1)
		return
	}
	m.chunksRetrieved.Add(uint64(chunks))
	m.addDuration(&m.retrievalDuration, duration)
}

// RecordLLMCall 记录生成调用。
func (m *RAGMetrics) RecordLLMCall(duration time.Duration, promptTokens, completionTokens int, err error) {
	m.llmCallsTotal.Add(1)
	if err != nil {
		m.llmCallsErrors.Add(1)
		return
	}
	m.addDuration(&m.llmDuration, duration)
	if promptTokens > 0 {
		m.llmTokensPrompt.Add(uint64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokensCompletion.Add(uint64(completionTokens))
	}
}

// RecordIngest 记录一次导入。
func (m *RAGMetrics) RecordIngest(duration time.Duration, loaded, failed, chunks int, err error) {
	m.ingestRuns.Add(1)
	m.filesLoaded.Add(uint64(loaded))
	m.filesFailed.Add(uint64(failed))
	if err != nil {
		m.ingestErrors.Add(1)
		return
	}
	m.chunksIndexed.Add(uint64(chunks))
	m.addDuration(&m.ingestDuration, duration)
}

// RecordEvaluation 记录一次评估运行。
func (m *RAGMetrics) RecordEvaluation(total, passed int) {
	m.evaluationRuns.Add(1)
	m.evaluationCases.Add(uint64(total))
	m.evaluationPassed.Add(uint64(passed))
}

func (m *RAGMetrics) addDuration(dst *float64, d time.Duration) {
	m.durationMu.Lock()
	*dst += d.Seconds()
	m.durationMu.Unlock()
}

type sample struct {
	name  string
	help  string
	kind  string
	value string
}

func (m *RAGMetrics) samples() []sample {
	m.durationMu.Lock()
	retrieval, llmDur, ingest, start := m.retrievalDuration, m.llmDuration, m.ingestDuration, m.startTime
	m.durationMu.Unlock()

	counter := func(name, help string, v uint64) sample {
		return sample{name, help, "counter", fmt.Sprintf("%d", v)}
	}
	seconds := func(name, help string, v float64) sample {
		return sample{name, help, "counter", fmt.Sprintf("%.6f", v)}
	}

	return []sample{
		counter("queries_total", "Total number of questions answered or attempted.", m.queriesTotal.Load()),
		counter("queries_cache_hits_total", "Questions served from the query cache.", m.queriesCacheHits.Load()),
		counter("queries_cache_misses_total", "Questions that ran the chain.", m.queriesCacheMisses.Load()),
		counter("queries_errors_total", "Questions that failed.", m.queriesErrors.Load()),
		counter("queries_no_documents_total", "Questions rejected because nothing was ingested.", m.queriesNoDocuments.Load()),
		counter("retrieval_total", "Total number of retrievals.", m.retrievalTotal.Load()),
		counter("retrieval_errors_total", "Number of retrieval errors.", m.retrievalErrors.Load()),
		counter("retrieval_chunks_total", "Chunks returned by retrieval.", m.chunksRetrieved.Load()),
		seconds("retrieval_duration_seconds_total", "Total retrieval duration.", retrieval),
		counter("llm_calls_total", "Total number of generation calls.", m.llmCallsTotal.Load()),
		counter("llm_calls_errors_total", "Number of failed generation calls.", m.llmCallsErrors.Load()),
		seconds("llm_calls_duration_seconds_total", "Total generation duration.", llmDur),
		counter("llm_tokens_prompt_total", "Total prompt tokens.", m.llmTokensPrompt.Load()),
		counter("llm_tokens_completion_total", "Total completion tokens.", m.llmTokensCompletion.Load()),
		counter("ingest_runs_total", "Total ingest runs.", m.ingestRuns.Load()),
		counter("ingest_errors_total", "Ingest runs that failed.", m.ingestErrors.Load()),
		counter("ingest_files_loaded_total", "Files loaded successfully.", m.filesLoaded.Load()),
		counter("ingest_files_failed_total", "Files skipped after a load failure.", m.filesFailed.Load()),
		counter("ingest_chunks_total", "Chunks written to published indexes.", m.chunksIndexed.Load()),
		seconds("ingest_duration_seconds_total", "Total ingest duration.", ingest),
		counter("evaluation_runs_total", "Evaluation runs.", m.evaluationRuns.Load()),
		counter("evaluation_cases_total", "Evaluation cases executed.", m.evaluationCases.Load()),
		counter("evaluation_passed_total", "Evaluation cases passed.", m.evaluationPassed.Load()),
		{"uptime_seconds", "Service uptime in seconds.", "gauge", fmt.Sprintf("%.2f", time.Since(start).Seconds())},
	}
}

// Export 导出 Prometheus 文本格式指标。
func (m *RAGMetrics) Export(namespace, subsystem string) string {
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	var sb strings.Builder
	for _, s := range m.samples() {
		name := prefix + "_" + s.name
		fmt.Fprintf(&sb, "# HELP %s %s\n", name, s.help)
		fmt.Fprintf(&sb, "# TYPE %s %s\n", name, s.kind)
		fmt.Fprintf(&sb, "%s %s\n\n", name, s.value)
	}
	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *RAGMetrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	retrieval, llmDur := m.retrievalDuration, m.llmDuration
	m.durationMu.Unlock()

	hits, misses := m.queriesCacheHits.Load(), m.queriesCacheMisses.Load()
	retrievals, llmCalls := m.retrievalTotal.Load(), m.llmCallsTotal.Load()
	cases := m.evaluationCases.Load()

	return map[string]interface{}{
		"queries": map[string]interface{}{
			"total":          m.queriesTotal.Load(),
			"cache_hits":     hits,
			"cache_misses":   misses,
			"cache_hit_rate": ratio(float64(hits), float64(hits+misses)),
			"errors":         m.queriesErrors.Load(),
			"no_documents":   m.queriesNoDocuments.Load(),
		},
		"retrieval": map[string]interface{}{
			"total":             retrievals,
			"errors":            m.retrievalErrors.Load(),
			"chunks":            m.chunksRetrieved.Load(),
			"avg_duration_secs": ratio(retrieval, float64(retrievals-m.retrievalErrors.Load())),
		},
		"llm": map[string]interface{}{
			"calls_total":       llmCalls,
			"errors":            m.llmCallsErrors.Load(),
			"avg_duration_secs": ratio(llmDur, float64(llmCalls-m.llmCallsErrors.Load())),
			"tokens_prompt":     m.llmTokensPrompt.Load(),
			"tokens_completion": m.llmTokensCompletion.Load(),
		},
		"ingest": map[string]interface{}{
			"runs":         m.ingestRuns.Load(),
			"errors":       m.ingestErrors.Load(),
			"files_loaded": m.filesLoaded.Load(),
			"files_failed": m.filesFailed.Load(),
			"chunks":       m.chunksIndexed.Load(),
		},
		"evaluation": map[string]interface{}{
			"runs":      m.evaluationRuns.Load(),
			"cases":     cases,
			"pass_rate": ratio(float64(m.evaluationPassed.Load()), float64(cases)),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}
