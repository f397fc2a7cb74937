package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/contract-assistant/internal/model"
	"github.com/kart-io/contract-assistant/internal/rag/metrics"
	"github.com/kart-io/contract-assistant/pkg/infra/tracing"
	"github.com/kart-io/contract-assistant/pkg/llm"
	"github.com/kart-io/contract-assistant/pkg/utils/errors"
	"github.com/kart-io/logger"
)

const (
	// DefaultTopK 每次问答检索的文本块数量。
	DefaultTopK = 4

	// ContextPlaceholder 系统提示词中被检索上下文替换的占位符。
	ContextPlaceholder = "{context}"

	// DefaultSystemPrompt 默认系统提示词。
	DefaultSystemPrompt = "You are an expert legal assistant. Use the following pieces of retrieved " +
		"context to answer the question. If you don't know the answer, say that you " +
		"don't know. Keep the answer concise.\n\n" + ContextPlaceholder

	contextSeparator = "\n\n"
	tracerName       = "contract-assistant/chain"
)

// ChainConfig 问答链配置。
type ChainConfig struct {
	// TopK 检索数量。
	TopK int
	// SystemPrompt 系统提示词模板，包含 {context} 占位符。
	SystemPrompt string
	// Temperature 生成温度，默认 0。
	Temperature float64
}

// DefaultChainConfig 返回默认配置。
func DefaultChainConfig() *ChainConfig {
	return &ChainConfig{
		TopK:         DefaultTopK,
		SystemPrompt: DefaultSystemPrompt,
	}
}

// Validate 校验配置。
func (c *ChainConfig) Validate() error {
	if c.TopK <= 0 {
		return errors.ErrConfiguration.WithMessagef("top-k must be positive, got %d", c.TopK)
	}
	if !strings.Contains(c.SystemPrompt, ContextPlaceholder) {
		return errors.ErrConfiguration.WithMessagef("system prompt must contain %s", ContextPlaceholder)
	}
	return nil
}

// Chain 检索增强生成链。回答只依据本次检索到的文本块。
type Chain struct {
	searcher Searcher
	chat     llm.ChatProvider
	config   *ChainConfig
	metrics  *metrics.RAGMetrics
}

// NewChain 创建问答链。config 为 nil 时使用默认配置。
func NewChain(searcher Searcher, chat llm.ChatProvider, config *ChainConfig) (*Chain, error) {
	if config == nil {
		config = DefaultChainConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chain{
		searcher: searcher,
		chat:     chat,
		config:   config,
		metrics:  metrics.GetRAGMetrics(),
	}, nil
}

// Answer 依次执行 retrieve、assemble、prompt、generate、bind。
func (c *Chain) Answer(ctx context.Context, question string) (*model.QueryResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, errors.ErrInvalidQuestion
	}

	ctx, span := tracing.Start(ctx, tracerName, "chain.answer")
	defer span.End()

	chunks, err := c.retrieve(ctx, question)
	if err != nil {
		tracing.Fail(ctx, err)
		return nil, err
	}

	system := c.prompt(assemble(chunks))

	answer, err := c.generate(ctx, system, question)
	if err != nil {
		tracing.Fail(ctx, err)
		return nil, err
	}

	return bind(question, chunks, answer), nil
}

// retrieve 取回 TopK 个文本块。
func (c *Chain) retrieve(ctx context.Context, question string) ([]model.Chunk, error) {
	ctx, span := tracing.Start(ctx, tracerName, "chain.retrieve", tracing.TopK.Int(c.config.TopK))
	defer span.End()

	start := time.Now()
	scored, err := c.searcher.Search(ctx, question, c.config.TopK)
	if err == nil && len(scored) == 0 {
		err = errors.ErrNoDocuments
	}
	c.metrics.RecordRetrieval(time.Since(start), len(scored), err)
	if err != nil {
		return nil, err
	}

	chunks := make([]model.Chunk, len(scored))
	for i, sc := range scored {
		chunks[i] = sc.Chunk
	}
	tracing.Annotate(ctx, tracing.Chunks.Int(len(chunks)))
	logger.Debugw("retrieved chunks", "question", question, "count", len(chunks))
	return chunks, nil
}

// assemble 用空行连接文本块内容。
func assemble(chunks []model.Chunk) string {
	parts := make([]string, len(chunks))
	for i, ch := range chunks {
		parts[i] = ch.Content
	}
	return strings.Join(parts, contextSeparator)
}

// prompt 将上下文填入系统提示词。
func (c *Chain) prompt(contextText string) string {
	return strings.ReplaceAll(c.config.SystemPrompt, ContextPlaceholder, contextText)
}

// generate 调用对话模型，问题原样作为用户消息。
func (c *Chain) generate(ctx context.Context, system, question string) (string, error) {
	ctx, span := tracing.Start(ctx, tracerName, "chain.generate")
	defer span.End()

	start := time.Now()
	resp, err := c.chat.Generate(ctx, question, system, llm.WithTemperature(c.config.Temperature))
	switch {
	case err != nil:
		err = errors.ErrGenerationFailed.WithCause(err)
	case resp == nil || strings.TrimSpace(resp.Content) == "":
		err = errors.ErrGenerationFailed.WithMessage("provider returned an empty answer")
	}

	var promptTokens, completionTokens int
	if err == nil && resp.TokenUsage != nil {
		promptTokens, completionTokens = resp.TokenUsage.PromptTokens, resp.TokenUsage.CompletionTokens
	}
	c.metrics.RecordLLMCall(time.Since(start), promptTokens, completionTokens, err)

	if err != nil {
		logger.Warnw("generation failed", "provider", llm.ModelID(c.chat), "error", err.Error())
		return "", err
	}
	tracing.Annotate(ctx,
		tracing.Model.String(llm.ModelID(c.chat)),
		tracing.CompletionTokens.Int(completionTokens),
	)
	return resp.Content, nil
}

// bind 将回答与本次检索结果绑定。
func bind(question string, chunks []model.Chunk, answer string) *model.QueryResult {
	return &model.QueryResult{
		Question:        question,
		RetrievedChunks: chunks,
		Answer:          answer,
	}
}
