// Package resilience 为 LLM 调用提供重试、单次超时与熔断。
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/kart-io/logger"
)

var (
	// ErrAttemptTimeout 单次尝试超过 CallTimeout。
	ErrAttemptTimeout = errors.New("attempt timed out")
	// ErrRetriesExhausted 尝试次数用尽。
	ErrRetriesExhausted = errors.New("max retry attempts reached")
)

// RetryConfig 重试配置。退避从 InitialDelay 开始按 Multiplier 增长，上限 MaxDelay。
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// CallTimeout 单次尝试的超时，0 表示只受父 context 约束。
	CallTimeout time.Duration
	// Retryable 为 nil 时使用 IsRetryableError。
	Retryable func(error) bool
}

// DefaultRetryConfig 三次尝试，退避 0.5s 起步、上限 10s，单次 60s。
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		CallTimeout:  60 * time.Second,
	}
}

// backoff 在 delay 基础上加入 ±25% 的随机抖动，结果不超过 MaxDelay。
func (c *RetryConfig) backoff(attempt int) time.Duration {
	d := c.delay(attempt)
	if d <= 0 {
		return 0
	}
	d += time.Duration(rand.Int64N(int64(d)/2+1)) - d/4
	if c.MaxDelay > 0 && d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

func (c *RetryConfig) delay(attempt int) time.Duration {
	d := c.InitialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * c.Multiplier)
		if c.MaxDelay > 0 && d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	return d
}

// Retry 执行 fn 直到成功、遇到不可重试错误、次数用尽或 ctx 结束。
// 每次尝试拿到独立的子 context；父 context 的错误原样返回。
func Retry(ctx context.Context, cfg *RetryConfig, fn func(ctx context.Context) error) error {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsRetryableError
	}
	attempts := max(cfg.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		err := attemptOnce(ctx, cfg.CallTimeout, fn)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case !retryable(err):
			return err
		case attempt >= attempts:
			logger.Warnw("llm call failed", "attempts", attempt, "error", err.Error())
			return fmt.Errorf("%w (%d): %w", ErrRetriesExhausted, attempts, err)
		}

		wait := cfg.backoff(attempt)
		logger.Debugw("retrying llm call", "attempt", attempt, "wait", wait, "error", err.Error())
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

func attemptOnce(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(actx)
	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrAttemptTimeout, timeout, err)
	}
	return err
}

// Do 在重试循环内经过熔断器执行 fn。熔断打开时不再重试。
func Do(ctx context.Context, cfg *RetryConfig, b *Breaker, fn func(ctx context.Context) error) error {
	return Retry(ctx, cfg, func(actx context.Context) error {
		if err := b.Allow(); err != nil {
			return err
		}
		err := fn(actx)
		b.Record(err)
		return err
	})
}
