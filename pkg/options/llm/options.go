// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/contract-assistant/pkg/llm/resilience"
	"github.com/kart-io/contract-assistant/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// APIKeyEnv 未显式配置密钥时读取的环境变量。
const APIKeyEnv = "OPENAI_API_KEY"

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（openai, deepseek, ollama 等）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，为空时使用供应商默认值。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout HTTP 客户端超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxAttempts 最大尝试次数（包括首次调用）。
	MaxAttempts int `json:"max-attempts" mapstructure:"max-attempts"`

	// InitialBackoff 首次重试前的等待时间。
	InitialBackoff time.Duration `json:"initial-backoff" mapstructure:"initial-backoff"`

	// MaxBackoff 重试等待的上限。
	MaxBackoff time.Duration `json:"max-backoff" mapstructure:"max-backoff"`

	// CallTimeout 单次调用的超时时间。
	CallTimeout time.Duration `json:"call-timeout" mapstructure:"call-timeout"`

	// BreakerThreshold 连续失败多少次后熔断。
	BreakerThreshold int `json:"breaker-threshold" mapstructure:"breaker-threshold"`

	// BreakerCooldown 熔断后多久放行探测调用。
	BreakerCooldown time.Duration `json:"breaker-cooldown" mapstructure:"breaker-cooldown"`

	// Temperature 生成温度，仅对 Chat 生效。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`
}

// NewProviderOptions 创建默认 LLM 供应商配置。
func NewProviderOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:       "openai",
		Timeout:        120 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		CallTimeout:    60 * time.Second,

		BreakerThreshold: 5,
		BreakerCooldown:  60 * time.Second,
	}
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "text-embedding-3-small"
	return opts
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "gpt-4o-mini"
	return opts
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
// 传输层不再重试，重试统一由 RetryConfig 负责。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	m := map[string]any{
		"api_key":      o.APIKey,
		"embed_model":  o.Model,
		"chat_model":   o.Model,
		"timeout":      o.Timeout,
		"max_retries":  0,
		"organization": o.Organization,
		"temperature":  o.Temperature,
	}
	if o.BaseURL != "" {
		m["base_url"] = o.BaseURL
	}
	return m
}

// RetryConfig 根据选项构造重试配置。
func (o *ProviderOptions) RetryConfig() *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = o.MaxAttempts
	cfg.InitialDelay = o.InitialBackoff
	cfg.MaxDelay = o.MaxBackoff
	cfg.CallTimeout = o.CallTimeout
	return cfg
}

// BreakerConfig 根据选项构造熔断配置。
func (o *ProviderOptions) BreakerConfig() *resilience.BreakerConfig {
	return &resilience.BreakerConfig{Threshold: o.BreakerThreshold, Cooldown: o.BreakerCooldown}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider (openai, deepseek, ollama).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL. Empty uses the provider default.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key. Falls back to "+APIKeyEnv+".")
	fs.StringVar(&o.Model, p+"model", o.Model, "LLM model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "HTTP client timeout.")
	fs.IntVar(&o.MaxAttempts, p+"max-attempts", o.MaxAttempts, "Maximum attempts per call, including the first one.")
	fs.DurationVar(&o.InitialBackoff, p+"initial-backoff", o.InitialBackoff, "Backoff before the first retry.")
	fs.DurationVar(&o.MaxBackoff, p+"max-backoff", o.MaxBackoff, "Upper bound for retry backoff.")
	fs.DurationVar(&o.CallTimeout, p+"call-timeout", o.CallTimeout, "Timeout of a single provider call.")
	fs.IntVar(&o.BreakerThreshold, p+"breaker-threshold", o.BreakerThreshold, "Consecutive failures that open the circuit breaker.")
	fs.DurationVar(&o.BreakerCooldown, p+"breaker-cooldown", o.BreakerCooldown, "Time an open breaker waits before a trial call.")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature for chat generation.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "LLM organization ID (optional).")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	if o.requiresAPIKey() && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("api-key is required for %s provider (set %s)", o.Provider, APIKeyEnv))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if o.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max-attempts must be at least 1"))
	}
	if o.InitialBackoff < 0 || o.MaxBackoff < o.InitialBackoff {
		errs = append(errs, fmt.Errorf("backoff must satisfy 0 <= initial-backoff <= max-backoff"))
	}
	if o.BreakerThreshold < 1 || o.BreakerCooldown <= 0 {
		errs = append(errs, fmt.Errorf("breaker-threshold must be at least 1 and breaker-cooldown positive"))
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be within [0, 2]"))
	}
	return errs
}

// Complete completes the LLM provider options with defaults.
func (o *ProviderOptions) Complete() error {
	if o.APIKey == "" {
		o.APIKey = os.Getenv(APIKeyEnv)
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	return nil
}

func (o *ProviderOptions) requiresAPIKey() bool {
	return o.Provider != "ollama"
}
