package interfaces

import (
	"context"

	"github.com/ternarybob/reperio/internal/models"
)

// ScraperService fetches and parses website content for the scraping phase
type ScraperService interface {
	// ScrapePage fetches a single page and extracts its content
	ScrapePage(ctx context.Context, url string, renderJS bool) (*models.PageContent, error)

	// DiscoverPages returns same-domain URLs found on the entry page,
	// entry page first, capped at maxPages
	DiscoverPages(ctx context.Context, url string, maxPages int) ([]string, error)
}

// KeywordGenerator produces keyword candidates from scraped content.
// Implementations wrap a specific LLM provider.
type KeywordGenerator interface {
	// GenerateKeywords asks the provider for up to maxKeywords keywords
	// describing the site content
	GenerateKeywords(ctx context.Context, content *models.WebsiteContent, maxKeywords int) ([]models.Keyword, error)

	// ProviderName identifies the backing provider ("claude", "gemini")
	ProviderName() string
}

// RankResult is one SERP position check outcome
type RankResult struct {
	Status     models.RankStatus
	Position   int // 1-based, 0 when not ranked
	URL        string
	Snippet    string
	IsFeatured bool
}

// RankChecker resolves a domain's SERP position for a keyword
type RankChecker interface {
	// CheckRank searches for the keyword and reports where the domain ranks.
	// A missing domain yields RankStatusNotFound, not an error.
	CheckRank(ctx context.Context, keyword, domain, engine string) (*RankResult, error)
}

// CompetitorFinder surfaces nearby competing businesses
type CompetitorFinder interface {
	// FindCompetitors looks up businesses matching the site's primary
	// keywords. Failures here never fail a job.
	FindCompetitors(ctx context.Context, query string, limit int) ([]models.Competitor, error)
}
