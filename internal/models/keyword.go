package models

// KeywordCategory classifies how central a keyword is to the site
type KeywordCategory string

const (
	CategoryPrimary   KeywordCategory = "primary"
	CategorySecondary KeywordCategory = "secondary"
	CategoryLongTail  KeywordCategory = "long_tail"
)

// SearchIntent classifies the searcher's goal
type SearchIntent string

const (
	IntentInformational SearchIntent = "informational"
	IntentNavigational  SearchIntent = "navigational"
	IntentTransactional SearchIntent = "transactional"
	IntentCommercial    SearchIntent = "commercial"
)

// CompetitionLevel buckets estimated keyword competition
type CompetitionLevel string

const (
	CompetitionLow    CompetitionLevel = "low"
	CompetitionMedium CompetitionLevel = "medium"
	CompetitionHigh   CompetitionLevel = "high"
)

// RankStatus is the outcome of a SERP position check
type RankStatus string

const (
	RankStatusRanked   RankStatus = "ranked"
	RankStatusNotFound RankStatus = "not_found"
	RankStatusUnknown  RankStatus = "unknown"
)

// Keyword is a single analyzed keyword, enriched progressively by the
// ai_analysis, search_volume and ranking_check phases.
type Keyword struct {
	Text        string          `json:"text"`
	Relevance   int             `json:"relevance"` // 0-100
	Category    KeywordCategory `json:"category"`
	Intent      SearchIntent    `json:"intent"`
	Seasonality string          `json:"seasonality,omitempty"` // e.g. "stable", "seasonal"
	Related     []string        `json:"related,omitempty"`

	// Filled by search_volume
	SearchVolume int              `json:"search_volume"`
	Competition  CompetitionLevel `json:"competition"`
	CPC          float64          `json:"cpc"` // estimated cost-per-click, USD

	// Filled by ranking_check
	RankStatus   RankStatus `json:"rank_status"`
	RankPosition int        `json:"rank_position,omitempty"` // 1-based, 0 when not ranked
	RankingURL   string     `json:"ranking_url,omitempty"`
	RankSnippet  string     `json:"rank_snippet,omitempty"`
	IsFeatured   bool       `json:"is_featured,omitempty"`

	// Opportunity marks low-competition keywords with meaningful volume
	Opportunity bool `json:"opportunity"`
}

// KeywordStats summarizes a completed analysis.
// Pure function of the keyword set, computed once at data_save.
type KeywordStats struct {
	TotalKeywords  int `json:"total_keywords"`
	PrimaryCount   int `json:"primary_count"`
	SecondaryCount int `json:"secondary_count"`
	LongTailCount  int `json:"long_tail_count"`
	RankedKeywords int `json:"ranked_keywords"`
	NotFound       int `json:"not_found"`
	TopTen         int `json:"top_ten"`
	Opportunities  int `json:"opportunities"`

	AvgRelevance    float64 `json:"avg_relevance"`
	AvgSearchVolume float64 `json:"avg_search_volume"`
	AvgCPC          float64 `json:"avg_cpc"`
	// HighCompetitionRatio is the fraction of keywords classified high
	HighCompetitionRatio float64 `json:"high_competition_ratio"`

	BestKeyword  string `json:"best_keyword,omitempty"`
	BestPosition int    `json:"best_position,omitempty"`
}

// Competitor is a nearby business surfaced during ranking_check
type Competitor struct {
	Name    string  `json:"name"`
	Address string  `json:"address,omitempty"`
	Rating  float64 `json:"rating,omitempty"`
	Reviews int     `json:"reviews,omitempty"`
}

// Competitor analysis availability markers. Absence after a failed lookup is
// reported explicitly, never as a silent empty list.
const (
	CompetitorsAvailable   = "available"
	CompetitorsUnavailable = "unavailable"
)

// PageContent is one scraped page
type PageContent struct {
	URL             string   `json:"url"`
	Title           string   `json:"title"`
	MetaDescription string   `json:"meta_description,omitempty"`
	MetaKeywords    []string `json:"meta_keywords,omitempty"`
	Headings        []string `json:"headings,omitempty"`
	Markdown        string   `json:"markdown,omitempty"`
	WordCount       int      `json:"word_count"`
}

// WebsiteContent aggregates everything the scraping phase collected
type WebsiteContent struct {
	Domain          string        `json:"domain"`
	Title           string        `json:"title"`
	MetaDescription string        `json:"meta_description,omitempty"`
	Language        string        `json:"language,omitempty"`
	Pages           []PageContent `json:"pages"`
}

// CombinedText flattens titles, headings and body text for LLM prompting
func (c *WebsiteContent) CombinedText(maxChars int) string {
	var b []byte
	appendPart := func(s string) {
		if s == "" || len(b) >= maxChars {
			return
		}
		b = append(b, s...)
		b = append(b, '\n')
	}
	appendPart(c.Title)
	appendPart(c.MetaDescription)
	for _, p := range c.Pages {
		appendPart(p.Title)
		for _, h := range p.Headings {
			appendPart(h)
		}
		appendPart(p.Markdown)
	}
	if len(b) > maxChars {
		b = b[:maxChars]
	}
	return string(b)
}

// AnalysisResult is the persisted outcome of a completed job.
// Keyed by job ID so repeated writes replace rather than duplicate.
type AnalysisResult struct {
	JobID            string          `json:"job_id" badgerhold:"key"`
	URL              string          `json:"url"`
	Domain           string          `json:"domain" badgerhold:"index"`
	Keywords         []Keyword       `json:"keywords"`
	Competitors      []Competitor    `json:"competitors,omitempty"`
	CompetitorStatus string          `json:"competitor_status"` // available | unavailable
	Stats            KeywordStats    `json:"stats"`
	Content          *WebsiteContent `json:"content,omitempty"`
	// KeywordSource records whether keywords came from the LLM provider
	// or the deterministic fallback extractor.
	KeywordSource string `json:"keyword_source"`
}

// Keyword source values
const (
	KeywordSourceLLM      = "llm"
	KeywordSourceFallback = "fallback"
)
