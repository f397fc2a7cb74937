package model

// EvaluationCase 关键词匹配评估用例。
type EvaluationCase struct {
	Question string   `json:"question" mapstructure:"question"`
	Keywords []string `json:"keywords" mapstructure:"keywords"`
}

// EvaluationCaseResult 单个用例的评估结果。
type EvaluationCaseResult struct {
	Question         string   `json:"question"`
	Answer           string   `json:"answer"`
	ExpectedKeywords []string `json:"expected_keywords"`
	Passed           bool     `json:"passed"`
}

// EvaluationReport 评估汇总，Score 为通过率（0.0 到 1.0）。
type EvaluationReport struct {
	Results []EvaluationCaseResult `json:"results"`
	Passed  int                    `json:"passed"`
	Total   int                    `json:"total"`
	Score   float64                `json:"score"`
}
