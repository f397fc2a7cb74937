package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/kart-io/contract-assistant/pkg/llm"
	"github.com/kart-io/contract-assistant/pkg/utils/httpclient"
)

// EmbeddingProvider 为 Embedding 供应商加上重试与熔断，名称与模型透传。
type EmbeddingProvider struct {
	llm.EmbeddingProvider
	retry   *RetryConfig
	breaker *Breaker
}

// WrapEmbedding 包装 Embedding 供应商。
func WrapEmbedding(p llm.EmbeddingProvider, retry *RetryConfig, breaker *BreakerConfig) *EmbeddingProvider {
	return &EmbeddingProvider{EmbeddingProvider: p, retry: retry, breaker: NewBreaker(breaker)}
}

// Embed 批量生成向量。
func (p *EmbeddingProvider) Embed(ctx context.Context, texts []string) (out [][]float32, err error) {
	err = Do(ctx, p.retry, p.breaker, func(ctx context.Context) (err error) {
		out, err = p.EmbeddingProvider.Embed(ctx, texts)
		return err
	})
	return out, err
}

// EmbedSingle 生成单个向量。
func (p *EmbeddingProvider) EmbedSingle(ctx context.Context, text string) (out []float32, err error) {
	err = Do(ctx, p.retry, p.breaker, func(ctx context.Context) (err error) {
		out, err = p.EmbeddingProvider.EmbedSingle(ctx, text)
		return err
	})
	return out, err
}

// Breaker 返回熔断器快照。
func (p *EmbeddingProvider) Breaker() BreakerStats {
	return p.breaker.Stats()
}

// ChatProvider 为 Chat 供应商加上重试与熔断。
type ChatProvider struct {
	llm.ChatProvider
	retry   *RetryConfig
	breaker *Breaker
}

// WrapChat 包装 Chat 供应商。
func WrapChat(p llm.ChatProvider, retry *RetryConfig, breaker *BreakerConfig) *ChatProvider {
	return &ChatProvider{ChatProvider: p, retry: retry, breaker: NewBreaker(breaker)}
}

// Chat 多轮对话。
func (p *ChatProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (resp *llm.GenerateResponse, err error) {
	err = Do(ctx, p.retry, p.breaker, func(ctx context.Context) (err error) {
		resp, err = p.ChatProvider.Chat(ctx, messages, opts...)
		return err
	})
	return resp, err
}

// Generate 单轮生成。
func (p *ChatProvider) Generate(ctx context.Context, prompt, systemPrompt string, opts ...llm.GenerateOption) (resp *llm.GenerateResponse, err error) {
	err = Do(ctx, p.retry, p.breaker, func(ctx context.Context) (err error) {
		resp, err = p.ChatProvider.Generate(ctx, prompt, systemPrompt, opts...)
		return err
	})
	return resp, err
}

// Breaker 返回熔断器快照。
func (p *ChatProvider) Breaker() BreakerStats {
	return p.breaker.Stats()
}

// StatsOf 沿 Unwrap 链查找熔断器快照，没有时返回 nil。
func StatsOf(p llm.EmbeddingProvider) *BreakerStats {
	for p != nil {
		if b, ok := p.(interface{ Breaker() BreakerStats }); ok {
			s := b.Breaker()
			return &s
		}
		u, ok := p.(interface{ Unwrap() llm.EmbeddingProvider })
		if !ok {
			return nil
		}
		p = u.Unwrap()
	}
	return nil
}

// ChatStatsOf 返回 Chat 供应商的熔断器快照，未包装时返回 nil。
func ChatStatsOf(p llm.ChatProvider) *BreakerStats {
	if b, ok := p.(interface{ Breaker() BreakerStats }); ok {
		s := b.Breaker()
		return &s
	}
	return nil
}

// IsRetryableError 单次超时、网络错误、HTTP 408/429/5xx 与连接中断可重试；
// 熔断打开与 context 结束不重试。
func IsRetryableError(err error) bool {
	switch {
	case err == nil, errors.Is(err, ErrCircuitOpen):
		return false
	case errors.Is(err, ErrAttemptTimeout):
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}

	if code := httpclient.StatusCode(err); code != 0 {
		return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "rate limit")
}
