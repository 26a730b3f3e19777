package common

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL validates a submitted URL and returns its canonical form
// plus the bare domain used for rank matching.
// Scheme defaults to https when omitted.
func NormalizeURL(raw string) (string, string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", fmt.Errorf("url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("url %q has no host", raw)
	}

	return parsed.String(), NormalizeDomain(parsed.Host), nil
}

// NormalizeDomain lowercases a host and strips the www prefix and port
// so ranking URLs compare by bare domain.
func NormalizeDomain(host string) string {
	domain := strings.ToLower(host)
	if i := strings.LastIndex(domain, ":"); i > 0 && !strings.Contains(domain[i:], "]") {
		domain = domain[:i]
	}
	domain = strings.TrimPrefix(domain, "www.")
	return domain
}

// SameDomain reports whether a candidate URL belongs to the given domain,
// including subdomains.
func SameDomain(candidate, domain string) bool {
	parsed, err := url.Parse(candidate)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := NormalizeDomain(parsed.Host)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
