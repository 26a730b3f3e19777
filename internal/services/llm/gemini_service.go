package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiService generates keywords through the Google Gemini API
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewGeminiService creates a Gemini-backed keyword generator
func NewGeminiService(ctx context.Context, config *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required for Gemini service (set via GEMINI_API_KEY or gemini.api_key in config)")
	}
	if config.Model == "" {
		config.Model = "gemini-3-flash-preview"
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}
	rateLimit, err := time.ParseDuration(config.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit duration '%s': %w", config.RateLimit, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	service := &GeminiService{
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
		Msg("Gemini keyword service initialized")

	return service, nil
}

// ProviderName identifies the backing provider
func (s *GeminiService) ProviderName() string {
	return "gemini"
}

// GenerateKeywords prompts Gemini for a keyword set describing the site
func (s *GeminiService) GenerateKeywords(ctx context.Context, content *models.WebsiteContent, maxKeywords int) ([]models.Keyword, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &models.GenerationError{Provider: s.ProviderName(), Err: err}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()
	prompt := buildKeywordPrompt(content, maxKeywords)

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(s.config.Temperature),
		SystemInstruction: genai.NewContentFromText(keywordSystemPrompt, genai.RoleUser),
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := s.client.Models.GenerateContent(timeoutCtx, s.config.Model, contents, config)
	if err != nil {
		return nil, &models.GenerationError{Provider: s.ProviderName(), Err: err}
	}

	var response strings.Builder
	if resp != nil && len(resp.Candidates) > 0 {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}
	if response.Len() == 0 {
		return nil, &models.GenerationError{Provider: s.ProviderName(), Err: fmt.Errorf("no response generated")}
	}

	keywords, err := parseKeywordResponse(response.String())
	if err != nil {
		return nil, &models.GenerationError{Provider: s.ProviderName(), Err: err}
	}

	s.logger.Debug().
		Int("keywords", len(keywords)).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini keyword generation completed")

	return keywords, nil
}

var _ interfaces.KeywordGenerator = (*GeminiService)(nil)
