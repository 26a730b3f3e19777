// Package places discovers competing businesses through the Google Places
// Text Search API.
package places

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

const textSearchURL = "https://maps.googleapis.com/maps/api/place/textsearch/json"

// Service implements interfaces.CompetitorFinder over the Places API
type Service struct {
	config     *common.PlacesAPIConfig
	logger     arbor.ILogger
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewService creates a Places-backed competitor finder
func NewService(config *common.PlacesAPIConfig, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		logger: logger,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(config.RateLimit), 1),
	}
}

// textSearchResponse is the subset of the Places payload we consume
type textSearchResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Name             string  `json:"name"`
		FormattedAddress string  `json:"formatted_address"`
		Rating           float64 `json:"rating"`
		UserRatingsTotal int     `json:"user_ratings_total"`
	} `json:"results"`
}

// FindCompetitors searches for businesses matching the query. Failures
// here degrade the job's competitor analysis, never fail it.
func (s *Service) FindCompetitors(ctx context.Context, query string, limit int) ([]models.Competitor, error) {
	if s.config.APIKey == "" {
		return nil, fmt.Errorf("places API key not configured")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if limit < 1 || limit > s.config.MaxResults {
		limit = s.config.MaxResults
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("key", s.config.APIKey)
	fullURL := fmt.Sprintf("%s?%s", textSearchURL, params.Encode())

	// Redact API key in logs
	s.logger.Debug().
		Str("url", fmt.Sprintf("%s?query=%s&key=***REDACTED***", textSearchURL, url.QueryEscape(query))).
		Msg("Calling Google Places Text Search API")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Places API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Places API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp textSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode Places response: %w", err)
	}
	if apiResp.Status != "OK" && apiResp.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("Places API error: %s - %s", apiResp.Status, apiResp.ErrorMessage)
	}

	if len(apiResp.Results) > limit {
		apiResp.Results = apiResp.Results[:limit]
	}

	competitors := make([]models.Competitor, 0, len(apiResp.Results))
	for _, place := range apiResp.Results {
		competitors = append(competitors, models.Competitor{
			Name:    place.Name,
			Address: place.FormattedAddress,
			Rating:  place.Rating,
			Reviews: place.UserRatingsTotal,
		})
	}

	s.logger.Info().
		Str("query", query).
		Int("results", len(competitors)).
		Msg("Competitor search completed")

	return competitors, nil
}

var _ interfaces.CompetitorFinder = (*Service)(nil)
