package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider 模拟供应商实现，用于测试。
type mockProvider struct {
	name string
}

func (m *mockProvider) Name() string  { return m.name }
func (m *mockProvider) Model() string { return "mock-model" }

func (m *mockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{0.1, 0.2, 0.3}
	}
	return result, nil
}

func (m *mockProvider) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockProvider) Chat(_ context.Context, _ []Message, _ ...GenerateOption) (*GenerateResponse, error) {
	return &GenerateResponse{Content: "mock response"}, nil
}

func (m *mockProvider) Generate(_ context.Context, _ string, _ string, _ ...GenerateOption) (*GenerateResponse, error) {
	return &GenerateResponse{Content: "mock generated text"}, nil
}

func TestRegisterAndNewProvider(t *testing.T) {
	RegisterProvider("test-provider", func(config map[string]any) (Provider, error) {
		name := "test-provider"
		if n, ok := config["name"].(string); ok {
			name = n
		}
		return &mockProvider{name: name}, nil
	})

	provider, err := NewProvider("test-provider", map[string]any{"name": "custom-name"})
	require.NoError(t, err)
	assert.Equal(t, "custom-name", provider.Name())
	assert.Equal(t, "custom-name/mock-model", ModelID(provider))
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("unknown-provider", nil)
	assert.Error(t, err)
	_, err = NewEmbeddingProvider("unknown-provider", nil)
	assert.Error(t, err)
	_, err = NewChatProvider("unknown-provider", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown chat provider "unknown-provider" (registered: `)
}

func TestDedicatedFactoriesWin(t *testing.T) {
	RegisterProvider("dual", func(map[string]any) (Provider, error) {
		return &mockProvider{name: "full"}, nil
	})
	RegisterEmbeddingProvider("dual", func(map[string]any) (EmbeddingProvider, error) {
		return &mockProvider{name: "embed-only"}, nil
	})

	e, err := NewEmbeddingProvider("dual", nil)
	require.NoError(t, err)
	assert.Equal(t, "embed-only", e.Name())

	c, err := NewChatProvider("dual", nil)
	require.NoError(t, err)
	assert.Equal(t, "full", c.Name())
}

func TestListProvidersSorted(t *testing.T) {
	RegisterChatProvider("zz-chat", func(map[string]any) (ChatProvider, error) {
		return &mockProvider{name: "zz-chat"}, nil
	})
	RegisterEmbeddingProvider("aa-embed", func(map[string]any) (EmbeddingProvider, error) {
		return &mockProvider{name: "aa-embed"}, nil
	})

	names := ListProviders()
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, "zz-chat")
	assert.Contains(t, names, "aa-embed")
}

func TestGenerateOptions(t *testing.T) {
	o := ApplyGenerateOptions()
	assert.Nil(t, o.Temperature)

	o = ApplyGenerateOptions(WithTemperature(0), WithMaxTokens(64), nil)
	require.NotNil(t, o.Temperature)
	assert.Equal(t, 0.0, *o.Temperature)
	assert.Equal(t, 64, o.MaxTokens)
}

func TestSystemPromptMessages(t *testing.T) {
	msgs := SystemPromptMessages("q", "sys")
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, RoleUser, msgs[1].Role)

	msgs = SystemPromptMessages("q", "")
	require.Len(t, msgs, 1)
	assert.Equal(t, "q", msgs[0].Content)
}
