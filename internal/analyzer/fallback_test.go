package analyzer

import (
	"testing"

	"github.com/ternarybob/reperio/internal/models"
)

func testContent() *models.WebsiteContent {
	return &models.WebsiteContent{
		Domain: "acmeplumbing.com",
		Title:  "Acme Plumbing - Emergency Repairs",
		Pages: []models.PageContent{
			{
				URL:          "https://acmeplumbing.com",
				Title:        "Acme Plumbing - Emergency Repairs",
				MetaKeywords: []string{"plumber", "emergency plumbing"},
				Headings:     []string{"24/7 Emergency Repairs", "Hot Water Systems"},
			},
		},
	}
}

func TestFallbackKeywordsFromContent(t *testing.T) {
	keywords := FallbackKeywords(testContent(), 20)
	if len(keywords) == 0 {
		t.Fatal("expected keywords from populated content")
	}

	byText := make(map[string]models.Keyword, len(keywords))
	for _, kw := range keywords {
		byText[kw.Text] = kw
	}

	// Title phrase first with highest relevance
	title, ok := byText["acme plumbing emergency repairs"]
	if !ok {
		t.Fatalf("title phrase missing from %v", keys(byText))
	}
	if title.Relevance != 90 {
		t.Errorf("expected title relevance 90, got %d", title.Relevance)
	}

	if _, ok := byText["plumber"]; !ok {
		t.Error("meta keyword missing")
	}
	if _, ok := byText["hot water systems"]; !ok {
		t.Error("heading phrase missing")
	}
}

func TestFallbackKeywordsDeterministic(t *testing.T) {
	first := FallbackKeywords(testContent(), 20)
	second := FallbackKeywords(testContent(), 20)

	if len(first) != len(second) {
		t.Fatalf("runs differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Text != second[i].Text {
			t.Errorf("order differs at %d: %q vs %q", i, first[i].Text, second[i].Text)
		}
	}
}

func TestFallbackKeywordsRespectsCap(t *testing.T) {
	keywords := FallbackKeywords(testContent(), 2)
	if len(keywords) != 2 {
		t.Errorf("expected cap of 2, got %d", len(keywords))
	}
}

func TestFallbackKeywordsEmptyContent(t *testing.T) {
	if kws := FallbackKeywords(nil, 10); kws != nil {
		t.Errorf("expected nil for nil content, got %v", kws)
	}
	if kws := FallbackKeywords(&models.WebsiteContent{}, 10); len(kws) != 0 {
		t.Errorf("expected nothing from empty content, got %v", kws)
	}
}

func TestFallbackKeywordsNonEnglishContent(t *testing.T) {
	content := &models.WebsiteContent{
		Domain: "kimbap.example",
		Title:  "김밥천국 분식",
		Pages: []models.PageContent{
			{
				MetaKeywords: []string{"분식집"},
				Headings:     []string{"메뉴 안내"},
			},
		},
	}

	keywords := FallbackKeywords(content, 10)
	if len(keywords) == 0 {
		t.Fatal("expected keywords from non-English content")
	}
	if keywords[0].Text != "김밥천국 분식" {
		t.Errorf("title phrase = %q", keywords[0].Text)
	}
}

func TestNormalizePhrase(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Acme Plumbing!", "acme plumbing"},
		{"Welcome to the Home Page", ""},
		{"  Hot-Water  Systems ", "hot water systems"},
		{"a I", ""},
		{"one two three four five six seven", ""},
		{"Plomería García – Fontanería 24h", "plomería garcía fontanería 24h"},
		{"김밥천국 분식", "김밥천국 분식"},
		{"Сантехник Москве", "сантехник москве"},
	}
	for _, c := range cases {
		if got := normalizePhrase(c.in); got != c.want {
			t.Errorf("normalizePhrase(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCategorizeByWordCount(t *testing.T) {
	if got := categorize("plumber"); got != models.CategoryPrimary {
		t.Errorf("single word should be primary, got %s", got)
	}
	if got := categorize("emergency plumber"); got != models.CategorySecondary {
		t.Errorf("two words should be secondary, got %s", got)
	}
	if got := categorize("emergency plumber near me"); got != models.CategoryLongTail {
		t.Errorf("3+ words should be long_tail, got %s", got)
	}
}

func keys(m map[string]models.Keyword) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
