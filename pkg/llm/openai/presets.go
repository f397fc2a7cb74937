package openai

import "github.com/kart-io/contract-assistant/pkg/llm"

// Preset 兼容 OpenAI 协议的服务的默认参数。
type Preset struct {
	Name       string
	BaseURL    string
	EmbedModel string
	ChatModel  string
	// ChatOnly 为 true 时不注册 Embedding 能力。
	ChatOnly bool
}

// Presets 内置的兼容服务。
var Presets = []Preset{
	{
		Name:      "deepseek",
		BaseURL:   "https://api.deepseek.com",
		ChatModel: "deepseek-chat",
		ChatOnly:  true,
	},
	{
		Name:       "siliconflow",
		BaseURL:    "https://api.siliconflow.cn/v1",
		EmbedModel: "BAAI/bge-m3",
		ChatModel:  "Qwen/Qwen2.5-7B-Instruct",
	},
}

func init() {
	for _, preset := range Presets {
		p := preset
		if p.ChatOnly {
			llm.RegisterChatProvider(p.Name, func(m map[string]any) (llm.ChatProvider, error) {
				return newFromPreset(p, m)
			})
			continue
		}
		llm.RegisterProvider(p.Name, func(m map[string]any) (llm.Provider, error) {
			return newFromPreset(p, m)
		})
	}
}

func newFromPreset(p Preset, configMap map[string]any) (*Provider, error) {
	cfg := DefaultConfig()
	cfg.Name = p.Name
	cfg.BaseURL = p.BaseURL
	cfg.EmbedModel = p.EmbedModel
	cfg.ChatModel = p.ChatModel
	return build(cfg, configMap)
}
