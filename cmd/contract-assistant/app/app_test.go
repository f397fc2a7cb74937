package app

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/contract-assistant/internal/model"
)

func TestNewAppRegistersSubcommands(t *testing.T) {
	cmd := NewApp().Command()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"ingest", "serve", "ui", "evaluate"})
}

func TestIngestWithoutFilesFails(t *testing.T) {
	cmd := NewApp().Command()
	cmd.SetArgs([]string{"ingest", "--embedding.api-key", "k", "--chat.api-key", "k"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No files specified")
}

func TestPrintEvaluationReport(t *testing.T) {
	long := strings.Repeat("x", 200)
	report := &model.EvaluationReport{
		Results: []model.EvaluationCaseResult{
			{Question: "What is the term?", Answer: "Twelve months.", Passed: true},
			{Question: "Who pays?", Answer: long, Passed: false},
		},
		Passed: 1,
		Total:  2,
		Score:  0.5,
	}

	var buf bytes.Buffer
	printEvaluationReport(&buf, report, 150)
	out := buf.String()

	assert.Contains(t, out, "Evaluation Results: 1/2 passed (50.0%)")
	assert.Contains(t, out, "[PASS] Q: What is the term?")
	assert.Contains(t, out, "A: Twelve months.\n")
	assert.Contains(t, out, "[FAIL] Q: Who pays?")
	assert.Contains(t, out, "A: "+strings.Repeat("x", 150)+"...\n")
	assert.NotContains(t, out, strings.Repeat("x", 151))
}

func TestPrintEvaluationReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	printEvaluationReport(&buf, &model.EvaluationReport{}, 150)
	assert.Contains(t, buf.String(), "Evaluation Results: 0/0 passed (0.0%)")
}

func TestPrintIngestReport(t *testing.T) {
	report := &model.IngestReport{
		Files:     2,
		Loaded:    1,
		Failed:    []model.FileFailure{{Path: "/tmp/docs/broken.pdf", Error: "unsupported"}},
		Chunks:    12,
		IndexID:   "01J",
		Model:     "text-embedding-3-small",
		Dimension: 1536,
		Duration:  1500 * time.Millisecond,
	}

	var buf bytes.Buffer
	printIngestReport(&buf, report, "data/index.json")
	out := buf.String()

	assert.Contains(t, out, "skipped broken.pdf: unsupported")
	assert.Contains(t, out, "Loaded 1/2 file(s), 12 chunk(s)")
	assert.Contains(t, out, "Ingestion complete. Index 01J saved to data/index.json")
}
