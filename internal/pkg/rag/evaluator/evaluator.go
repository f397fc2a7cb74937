// Package evaluator 提供基于关键词匹配的问答质量评估。
//
// 一个用例在回答（小写）包含任一期望关键词（小写）时判定为通过，
// 得分为通过数 / 总数，没有用例时为 0。
//
// 使用示例:
//
//	ev := evaluator.New(chain)
//	report, err := ev.Evaluate(ctx, evaluator.DefaultCases())
package evaluator

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/internal/pkg/rag/textutil"
	"github.com/kart-io/logger"
	"github.com/spf13/viper"
)

// DefaultAnswerPreview 结果中回答保留的最大字符数。
const DefaultAnswerPreview = 200

// Answerer 回答单个问题。
type Answerer interface {
	Answer(ctx context.Context, question string) (*model.QueryResult, error)
}

// Evaluator 关键词匹配评估器。
type Evaluator struct {
	answerer   Answerer
	previewLen int
}

// Option 配置 Evaluator 的选项。
type Option func(*Evaluator)

// WithAnswerPreview 设置结果中回答的截断长度。
func WithAnswerPreview(n int) Option {
	return func(e *Evaluator) {
		e.previewLen = n
	}
}

// New 创建评估器。
func New(answerer Answerer, opts ...Option) *Evaluator {
	e := &Evaluator{
		answerer:   answerer,
		previewLen: DefaultAnswerPreview,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultCases 返回内置的三个合同问答用例。
func DefaultCases() []model.EvaluationCase {
	return []model.EvaluationCase{
		{
			Question: "What is the termination clause?",
			Keywords: []string{"termination", "terminate", "cancel", "end"},
		},
		{
			Question: "Are there any penalties?",
			Keywords: []string{"penalty", "penalties", "fine", "fee", "breach"},
		},
		{
			Question: "What are the payment terms?",
			Keywords: []string{"payment", "pay", "invoice", "due", "amount"},
		},
	}
}

// LoadCases 从 YAML/JSON 文件读取用例，文件结构为 {cases: [{question, keywords}]}。
func LoadCases(path string) ([]model.EvaluationCase, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read evaluation cases %s: %w", path, err)
	}

	var file struct {
		Cases []model.EvaluationCase `mapstructure:"cases"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decode evaluation cases %s: %w", path, err)
	}
	for i, c := range file.Cases {
		if strings.TrimSpace(c.Question) == "" {
			return nil, fmt.Errorf("evaluation case %d: question is empty", i)
		}
	}
	return file.Cases, nil
}

// Matches 判断回答是否包含任一关键词（大小写不敏感）。
func Matches(answer string, keywords []string) bool {
	lower := strings.ToLower(answer)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Evaluate 依次执行用例。单个用例回答失败时记为未通过并继续。
func (e *Evaluator) Evaluate(ctx context.Context, cases []model.EvaluationCase) (*model.EvaluationReport, error) {
	report := &model.EvaluationReport{
		Results: make([]model.EvaluationCaseResult, 0, len(cases)),
		Total:   len(cases),
	}

	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			answer string
			passed bool
		)
		result, err := e.answerer.Answer(ctx, c.Question)
		if err != nil {
			logger.Warnw("evaluation case failed", "question", c.Question, "error", err.Error())
			answer = "error: " + err.Error()
		} else {
			answer = result.Answer
			passed = Matches(answer, c.Keywords)
		}

		if passed {
			report.Passed++
		}
		report.Results = append(report.Results, model.EvaluationCaseResult{
			Question:         c.Question,
			Answer:           textutil.TruncateString(answer, e.previewLen),
			ExpectedKeywords: c.Keywords,
			Passed:           passed,
		})
	}

	report.Score = Score(report.Passed, report.Total)
	return report, nil
}

// Score 计算通过率，total 为 0 时返回 0。
func Score(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total)
}
