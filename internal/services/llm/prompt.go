package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/reperio/internal/models"
)

const keywordSystemPrompt = `You are an SEO keyword analyst. Given website content, you produce the search keywords the site should rank for. Respond with a JSON array only, no prose and no markdown fences. Each element: {"keyword": string, "relevance": 0-100, "category": "primary"|"secondary"|"long_tail", "intent": "informational"|"navigational"|"transactional"|"commercial", "seasonality": "stable"|"seasonal", "related": [string]}.`

// maxPromptChars bounds how much scraped content goes into one prompt
const maxPromptChars = 12000

func buildKeywordPrompt(content *models.WebsiteContent, maxKeywords int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate up to %d keywords for the website %s.\n\n", maxKeywords, content.Domain)
	if content.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", content.Title)
	}
	if content.MetaDescription != "" {
		fmt.Fprintf(&b, "Description: %s\n", content.MetaDescription)
	}
	b.WriteString("\nContent:\n")
	b.WriteString(content.CombinedText(maxPromptChars))
	return b.String()
}

// keywordPayload is the provider's wire shape for one keyword
type keywordPayload struct {
	Keyword     string   `json:"keyword"`
	Relevance   int      `json:"relevance"`
	Category    string   `json:"category"`
	Intent      string   `json:"intent"`
	Seasonality string   `json:"seasonality"`
	Related     []string `json:"related"`
}

// parseKeywordResponse decodes the provider's JSON array, tolerating
// markdown fences and leading prose around the payload.
func parseKeywordResponse(text string) ([]models.Keyword, error) {
	payload := extractJSONArray(text)
	if payload == "" {
		return nil, fmt.Errorf("response contains no JSON array")
	}

	var items []keywordPayload
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("failed to decode keyword payload: %w", err)
	}

	keywords := make([]models.Keyword, 0, len(items))
	for _, item := range items {
		keywords = append(keywords, models.Keyword{
			Text:        item.Keyword,
			Relevance:   item.Relevance,
			Category:    models.KeywordCategory(item.Category),
			Intent:      models.SearchIntent(item.Intent),
			Seasonality: item.Seasonality,
			Related:     item.Related,
		})
	}
	return keywords, nil
}

// extractJSONArray returns the outermost [...] span in the text
func extractJSONArray(text string) string {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
