package scraper

import "testing"

func TestResolveLink(t *testing.T) {
	base := "https://example.com/services/"

	cases := []struct {
		href string
		want string
	}{
		{"/about", "https://example.com/about"},
		{"pricing", "https://example.com/services/pricing"},
		{"https://example.com/contact", "https://example.com/contact"},
		{"https://other.com/page", "https://other.com/page"},
		{"/faq#top", "https://example.com/faq"},
		{"#section", ""},
		{"mailto:info@example.com", ""},
		{"tel:+15551234567", ""},
		{"javascript:void(0)", ""},
		{"ftp://example.com/file", ""},
		{"", ""},
		{"   ", ""},
	}

	for _, c := range cases {
		if got := resolveLink(base, c.href); got != c.want {
			t.Errorf("resolveLink(%q) = %q, want %q", c.href, got, c.want)
		}
	}
}
