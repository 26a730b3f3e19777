// Package scraper fetches website pages and extracts the content the
// analysis pipeline feeds to the keyword generator.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// Service scrapes pages over plain HTTP, optionally rendering JavaScript
// through a headless browser first
type Service struct {
	config     *common.ScraperConfig
	logger     arbor.ILogger
	httpClient *http.Client
	renderer   *jsRenderer
}

// NewService creates the scraper. The JavaScript renderer is only
// initialized when enabled in configuration.
func NewService(config *common.ScraperConfig, logger arbor.ILogger) *Service {
	s := &Service{
		config: config,
		logger: logger,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
	}
	if config.EnableJavaScript {
		s.renderer = newJSRenderer(config, logger)
	}
	return s
}

// ScrapePage fetches one page and extracts title, meta tags, headings and
// markdown body content
func (s *Service) ScrapePage(ctx context.Context, pageURL string, renderJS bool) (*models.PageContent, error) {
	html, err := s.fetchHTML(ctx, pageURL, renderJS)
	if err != nil {
		return nil, &models.ScrapeError{URL: pageURL, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &models.ScrapeError{URL: pageURL, Err: fmt.Errorf("parse failure: %w", err)}
	}

	page := &models.PageContent{
		URL:   pageURL,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		page.MetaDescription = strings.TrimSpace(desc)
	}
	if kw, ok := doc.Find(`meta[name="keywords"]`).Attr("content"); ok {
		for _, part := range strings.Split(kw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				page.MetaKeywords = append(page.MetaKeywords, trimmed)
			}
		}
	}
	doc.Find("h1, h2, h3").Each(func(_ int, sel *goquery.Selection) {
		if heading := strings.TrimSpace(sel.Text()); heading != "" {
			page.Headings = append(page.Headings, heading)
		}
	})

	// Strip chrome before conversion so markdown is body content only
	doc.Find("script, style, nav, footer, header, aside, noscript").Remove()
	bodyHTML, err := doc.Find("body").Html()
	if err == nil && bodyHTML != "" {
		converter := md.NewConverter(pageURL, true, nil)
		if markdown, err := converter.ConvertString(bodyHTML); err == nil {
			page.Markdown = strings.TrimSpace(markdown)
		} else {
			s.logger.Debug().Err(err).Str("url", pageURL).Msg("Markdown conversion failed, keeping text only")
			page.Markdown = strings.TrimSpace(doc.Find("body").Text())
		}
	}
	page.WordCount = len(strings.Fields(page.Markdown))

	s.logger.Debug().
		Str("url", pageURL).
		Int("headings", len(page.Headings)).
		Int("words", page.WordCount).
		Msg("Page scraped")

	return page, nil
}

// DiscoverPages returns the entry URL followed by same-domain links found
// on it, capped at maxPages
func (s *Service) DiscoverPages(ctx context.Context, entryURL string, maxPages int) ([]string, error) {
	if maxPages < 1 {
		maxPages = 1
	}
	pages := []string{entryURL}
	if maxPages == 1 {
		return pages, nil
	}

	html, err := s.fetchHTML(ctx, entryURL, false)
	if err != nil {
		// Let the scraping phase surface the entry failure itself
		return pages, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return pages, nil
	}

	_, domain, err := common.NormalizeURL(entryURL)
	if err != nil {
		return pages, nil
	}

	seen := map[string]bool{entryURL: true}
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		absolute := resolveLink(entryURL, href)
		if absolute == "" || seen[absolute] || !common.SameDomain(absolute, domain) {
			return true
		}
		seen[absolute] = true
		pages = append(pages, absolute)
		return len(pages) < maxPages
	})

	return pages, nil
}

// fetchHTML retrieves the raw page, through the JS renderer when requested
// and available, otherwise over plain HTTP
func (s *Service) fetchHTML(ctx context.Context, pageURL string, renderJS bool) (string, error) {
	if renderJS && s.renderer != nil {
		html, err := s.renderer.render(ctx, pageURL)
		if err == nil {
			return html, nil
		}
		s.logger.Warn().Err(err).Str("url", pageURL).Msg("JavaScript rendering failed, falling back to HTTP fetch")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	limit := int64(s.config.MaxBodySize)
	if limit <= 0 {
		limit = 10 * 1024 * 1024
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

var _ interfaces.ScraperService = (*Service)(nil)
