// Package serp resolves where a domain ranks in search results for a
// keyword, through a SERP API provider.
package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"golang.org/x/time/rate"
)

// Service implements interfaces.RankChecker against a SerpAPI-compatible
// endpoint
type Service struct {
	config     *common.SerpConfig
	logger     arbor.ILogger
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewService creates the rank checker
func NewService(config *common.SerpConfig, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		logger: logger,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(config.RateLimit), 1),
	}
}

// searchResponse is the subset of the SERP payload we consume
type searchResponse struct {
	OrganicResults []struct {
		Position int    `json:"position"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
	} `json:"organic_results"`
	AnswerBox *struct {
		Link string `json:"link"`
	} `json:"answer_box"`
	Error string `json:"error"`
}

// CheckRank searches for the keyword and reports the domain's position.
// A domain absent from the examined result set is RankStatusNotFound,
// a valid outcome rather than an error.
func (s *Service) CheckRank(ctx context.Context, keyword, domain, engine string) (*interfaces.RankResult, error) {
	if s.config.APIKey == "" {
		return nil, &models.RankCheckError{Keyword: keyword, Err: fmt.Errorf("serp API key not configured")}
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &models.RankCheckError{Keyword: keyword, Err: err}
	}
	if engine == "" {
		engine = "google"
	}

	params := url.Values{}
	params.Set("q", keyword)
	params.Set("engine", engine)
	params.Set("num", fmt.Sprintf("%d", s.config.ResultDepth))
	params.Set("api_key", s.config.APIKey)
	fullURL := fmt.Sprintf("%s?%s", s.config.Endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &models.RankCheckError{Keyword: keyword, Err: err}
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &models.RankCheckError{Keyword: keyword, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &models.RankCheckError{Keyword: keyword, Err: fmt.Errorf("serp API status %d: %s", resp.StatusCode, string(body))}
	}

	var apiResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &models.RankCheckError{Keyword: keyword, Err: fmt.Errorf("failed to decode serp response: %w", err)}
	}
	if apiResp.Error != "" {
		return nil, &models.RankCheckError{Keyword: keyword, Err: fmt.Errorf("serp API error: %s", apiResp.Error)}
	}

	featured := apiResp.AnswerBox != nil && common.SameDomain(apiResp.AnswerBox.Link, domain)
	for _, result := range apiResp.OrganicResults {
		if !common.SameDomain(result.Link, domain) {
			continue
		}
		s.logger.Debug().
			Str("keyword", keyword).
			Str("domain", domain).
			Int("position", result.Position).
			Msg("Domain found in search results")
		return &interfaces.RankResult{
			Status:     models.RankStatusRanked,
			Position:   result.Position,
			URL:        result.Link,
			Snippet:    result.Snippet,
			IsFeatured: featured,
		}, nil
	}

	return &interfaces.RankResult{
		Status:     models.RankStatusNotFound,
		IsFeatured: featured,
	}, nil
}

var _ interfaces.RankChecker = (*Service)(nil)
