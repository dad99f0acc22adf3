package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// linkSelectors target anchors likely to point at property detail pages,
// most specific first. Later patterns only add what earlier ones missed.
var linkSelectors = []string{
	"a[href*='/property/']",
	"a[href*='/properties/']",
	"a[href*='/villa/']",
	"a[href*='/villas/']",
	"a[href*='/listing/']",
	"a[href*='/rental/']",
	".property-card a",
	".listing-card a",
	".villa-card a",
	".property-item a",
	".property a",
}

// excludedPathSegments filter out non-property links that share path prefixes
// with property pages (blog posts about villas, category indexes, pagination).
var excludedPathSegments = []string{
	"/blog/",
	"/category/",
	"/tag/",
	"/area/",
	"/city/",
	"/listings/",
	"/page/",
}

// HarvestLinks extracts candidate property URLs from a listing page.
// Each href is resolved against base, stripped of query and fragment,
// filtered, and deduplicated preserving insertion order so "first max" is
// deterministic. Zero links is not an error at this layer.
func HarvestLinks(doc *goquery.Document, base *url.URL, max int) []string {
	seen := make(map[string]struct{})
	var links []string

	for _, sel := range linkSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok {
				return
			}
			href = strings.TrimSpace(href)
			if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
				return
			}

			ref, err := url.Parse(href)
			if err != nil {
				return
			}
			abs := base.ResolveReference(ref)
			abs.RawQuery = ""
			abs.Fragment = ""

			if isExcludedPath(abs.Path) {
				return
			}

			normalized := abs.String()
			if _, dup := seen[normalized]; dup {
				return
			}
			seen[normalized] = struct{}{}
			links = append(links, normalized)
		})
	}

	if max > 0 && len(links) > max {
		links = links[:max]
	}
	return links
}

func isExcludedPath(path string) bool {
	lower := strings.ToLower(path)
	for _, seg := range excludedPathSegments {
		if strings.Contains(lower, seg) {
			return true
		}
	}
	return false
}

// CanonicalURL strips the query string and fragment from a URL so re-scrapes
// of the same page dedupe on source_url regardless of tracking parameters.
func CanonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
