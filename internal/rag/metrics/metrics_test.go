package metrics

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetRAGMetricsSingleton(t *testing.T) {
	assert.Same(t, GetRAGMetrics(), GetRAGMetrics())
}

func TestRecordQuery(t *testing.T) {
	m := New()
	m.RecordQuery(false, false, nil)
	m.RecordQuery(true, false, nil)
	m.RecordQuery(false, false, errors.New("boom"))
	m.RecordQuery(false, true, errors.New("empty"))

	q := m.Stats()["queries"].(map[string]interface{})
	assert.Equal(t, uint64(4), q["total"])
	assert.Equal(t, uint64(1), q["cache_hits"])
	assert.Equal(t, uint64(1), q["cache_misses"])
	assert.Equal(t, uint64(1), q["errors"])
	assert.Equal(t, uint64(1), q["no_documents"])
	assert.Equal(t, 0.5, q["cache_hit_rate"])
}

func TestRecordRetrievalAndLLM(t *testing.T) {
	m := New()
	m.RecordRetrieval(100*time.Millisecond, 4, nil)
	m.RecordRetrieval(300*time.Millisecond, 2, nil)
	m.RecordRetrieval(time.Second, 0, errors.New("down"))
	m.RecordLLMCall(2*time.Second, 10, 5, nil)
	m.RecordLLMCall(0, 0, 0, errors.New("down"))

	stats := m.Stats()
	r := stats["retrieval"].(map[string]interface{})
	assert.Equal(t, uint64(6), r["chunks"])
	assert.InDelta(t, 0.2, r["avg_duration_secs"], 1e-9)

	l := stats["llm"].(map[string]interface{})
	assert.Equal(t, uint64(2), l["calls_total"])
	assert.Equal(t, uint64(1), l["errors"])
	assert.Equal(t, uint64(10), l["tokens_prompt"])
	assert.InDelta(t, 2.0, l["avg_duration_secs"], 1e-9)
}

func TestRecordIngestAndEvaluation(t *testing.T) {
	m := New()
	m.RecordIngest(time.Second, 2, 1, 30, nil)
	m.RecordIngest(time.Second, 0, 3, 0, errors.New("nothing loaded"))
	m.RecordEvaluation(3, 2)
	m.RecordEvaluation(0, 0)

	stats := m.Stats()
	in := stats["ingest"].(map[string]interface{})
	assert.Equal(t, uint64(2), in["runs"])
	assert.Equal(t, uint64(1), in["errors"])
	assert.Equal(t, uint64(4), in["files_failed"])
	assert.Equal(t, uint64(30), in["chunks"])

	ev := stats["evaluation"].(map[string]interface{})
	assert.InDelta(t, 2.0/3.0, ev["pass_rate"], 1e-9)
}

func TestExport(t *testing.T) {
	m := New()
	m.RecordQuery(false, false, nil)

	out := m.Export("contract", "rag")
	assert.Contains(t, out, "# TYPE contract_rag_queries_total counter\ncontract_rag_queries_total 1\n")
	assert.Contains(t, out, "# TYPE contract_rag_uptime_seconds gauge")
	assert.True(t, strings.HasPrefix(m.Export("contract", ""), "# HELP contract_queries_total"))
}

func TestConcurrentAccess(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordQuery(false, false, nil)
			m.RecordRetrieval(time.Millisecond, 1, nil)
			_ = m.Export("x", "")
		}()
	}
	wg.Wait()
	q := m.Stats()["queries"].(map[string]interface{})
	assert.Equal(t, uint64(50), q["total"])
}
