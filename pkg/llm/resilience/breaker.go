package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// ErrCircuitOpen 熔断器打开时拒绝调用。
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig 连续失败 Threshold 次后打开，Cooldown 后放行一次探测。
type BreakerConfig struct {
	Threshold int
	Cooldown  time.Duration
}

// DefaultBreakerConfig 连续 5 次失败打开，冷却 60s。
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{Threshold: 5, Cooldown: 60 * time.Second}
}

// BreakerState 熔断器状态。
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half-open"
)

// BreakerStats 熔断器快照。
type BreakerStats struct {
	State    BreakerState `json:"state"`
	Failures int          `json:"failures"`
	OpenedAt time.Time    `json:"opened_at"`
}

// Breaker 连续失败计数熔断器。半开状态同一时刻只允许一个探测调用。
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker 创建熔断器，cfg 为 nil 时使用默认配置。
func NewBreaker(cfg *BreakerConfig) *Breaker {
	if cfg == nil {
		cfg = DefaultBreakerConfig()
	}
	c := *cfg
	if c.Threshold <= 0 {
		c.Threshold = DefaultBreakerConfig().Threshold
	}
	return &Breaker{cfg: c, now: time.Now, state: StateClosed}
}

// Allow 判断是否放行一次调用。
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probing = true
		logger.Infow("circuit breaker half-open, probing provider")
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

// Record 记录一次放行调用的结果。
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != StateClosed {
			logger.Infow("circuit breaker closed")
		}
		b.state, b.failures, b.probing = StateClosed, 0, false
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.cfg.Threshold {
		if b.state != StateOpen {
			logger.Warnw("circuit breaker opened", "failures", b.failures)
		}
		b.state = StateOpen
		b.openedAt = b.now()
		b.probing = false
	}
}

// Stats 返回当前快照。
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{State: b.state, Failures: b.failures, OpenedAt: b.openedAt}
}
