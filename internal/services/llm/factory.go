package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
)

// NewKeywordGenerator selects the configured AI provider
func NewKeywordGenerator(ctx context.Context, config *common.Config, logger arbor.ILogger) (interfaces.KeywordGenerator, error) {
	provider := config.LLM.DefaultProvider
	if provider == "" {
		provider = common.LLMProviderGemini
	}

	switch provider {
	case common.LLMProviderClaude:
		return NewClaudeService(&config.Claude, logger)
	case common.LLMProviderGemini:
		return NewGeminiService(ctx, &config.Gemini, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (expected %q or %q)",
			provider, common.LLMProviderGemini, common.LLMProviderClaude)
	}
}
