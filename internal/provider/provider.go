package provider

import (
	"context"
	"fmt"

	"github.com/MEKXH/shipgate/internal/config"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// NewChatModel creates the ChatModel backing the semantic reviewer, picking
// the first configured provider.
func NewChatModel(ctx context.Context, cfg *config.Config) (model.ChatModel, error) {
	p := cfg.Providers

	switch {
	case p.Claude.APIKey != "":
		return newClaudeModel(ctx, p.Claude, p)
	case p.OpenAI.APIKey != "":
		return newOpenAIModel(ctx, p.OpenAI, p)
	case p.Ollama.BaseURL != "":
		return newOllamaModel(ctx, p.Ollama, p)
	default:
		return nil, fmt.Errorf("no provider configured: set api_key for claude/openai or base_url for ollama")
	}
}

func newClaudeModel(ctx context.Context, pc config.ProviderConfig, p config.ProvidersConfig) (model.ChatModel, error) {
	modelCfg := &claude.Config{
		APIKey:      pc.APIKey,
		Model:       p.Model,
		MaxTokens:   p.MaxTokens,
		Temperature: toFloat32Ptr(p.Temperature),
	}
	if pc.BaseURL != "" {
		modelCfg.BaseURL = &pc.BaseURL
	}
	return claude.NewChatModel(ctx, modelCfg)
}

func newOpenAIModel(ctx context.Context, pc config.ProviderConfig, p config.ProvidersConfig) (model.ChatModel, error) {
	modelCfg := &openai.ChatModelConfig{
		Model:       p.Model,
		APIKey:      pc.APIKey,
		Temperature: toFloat32Ptr(p.Temperature),
		MaxTokens:   toIntPtr(p.MaxTokens),
	}
	if pc.BaseURL != "" {
		modelCfg.BaseURL = pc.BaseURL
	}
	return openai.NewChatModel(ctx, modelCfg)
}

func newOllamaModel(ctx context.Context, pc config.ProviderConfig, p config.ProvidersConfig) (model.ChatModel, error) {
	baseURL := pc.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   p.Model,
	})
}

func toFloat32Ptr(f float64) *float32 {
	v := float32(f)
	return &v
}

func toIntPtr(i int) *int {
	return &i
}
