package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"golang.org/x/time/rate"
)

// ClaudeService generates keywords through the Anthropic API
type ClaudeService struct {
	config  *common.ClaudeConfig
	logger  arbor.ILogger
	client  anthropic.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewClaudeService creates a Claude-backed keyword generator
func NewClaudeService(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for Claude service (set via ANTHROPIC_API_KEY or claude.api_key in config)")
	}
	if config.Model == "" {
		config.Model = "claude-haiku-3-5-20241022"
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}
	rateLimit, err := time.ParseDuration(config.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit duration '%s': %w", config.RateLimit, err)
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	service := &ClaudeService{
		config:  config,
		logger:  logger,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(rateLimit), 1),
		timeout: timeout,
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Float32("temperature", config.Temperature).
		Msg("Claude keyword service initialized")

	return service, nil
}

// ProviderName identifies the backing provider
func (s *ClaudeService) ProviderName() string {
	return "claude"
}

// GenerateKeywords prompts Claude for a keyword set describing the site
func (s *ClaudeService) GenerateKeywords(ctx context.Context, content *models.WebsiteContent, maxKeywords int) ([]models.Keyword, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &models.GenerationError{Provider: s.ProviderName(), Err: err}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()
	prompt := buildKeywordPrompt(content, maxKeywords)

	maxTokens := s.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		System: []anthropic.TextBlockParam{
			{Text: keywordSystemPrompt},
		},
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}

	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return nil, &models.GenerationError{Provider: s.ProviderName(), Err: err}
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, &models.GenerationError{Provider: s.ProviderName(), Err: fmt.Errorf("empty response")}
	}

	keywords, err := parseKeywordResponse(text)
	if err != nil {
		return nil, &models.GenerationError{Provider: s.ProviderName(), Err: err}
	}

	s.logger.Debug().
		Int("keywords", len(keywords)).
		Dur("duration", time.Since(startTime)).
		Msg("Claude keyword generation completed")

	return keywords, nil
}

var _ interfaces.KeywordGenerator = (*ClaudeService)(nil)
