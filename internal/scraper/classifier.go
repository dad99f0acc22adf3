package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageType is the result of classifying a fetched page.
type PageType int

const (
	// ListingPage enumerates multiple properties via links. It is the default
	// for ambiguous pages: harvesting links from a misclassified detail page
	// yields nothing useful, which downstream filtering handles.
	ListingPage PageType = iota
	// SinglePropertyPage is one property's detail page.
	SinglePropertyPage
)

// propertyPathSegments are URL path segments that indicate a property detail
// page when followed by a slug.
var propertyPathSegments = []string{
	"/property/",
	"/properties/",
	"/villa/",
	"/villas/",
	"/listing/",
	"/rental/",
	"/rentals/",
}

// singlePropertyMarkers are selectors present only on detail pages.
var singlePropertyMarkers = []string{
	".property-detail",
	".property-details",
	"#property-details",
	".listing-description",
	".villa-detail",
	".single-property",
	".property-gallery",
}

// Classify decides whether a page is a single property detail page or a
// listing/index page. Pure function of the URL path and the parsed document.
func Classify(urlPath string, doc *goquery.Document) PageType {
	path := strings.ToLower(urlPath)
	for _, seg := range propertyPathSegments {
		idx := strings.Index(path, seg)
		if idx < 0 {
			continue
		}
		// "/villas/" alone is an index; "/villas/coral-house/" is a detail page.
		if slug := strings.Trim(path[idx+len(seg):], "/"); slug != "" {
			return SinglePropertyPage
		}
	}

	if HasPropertyMarkers(doc) {
		return SinglePropertyPage
	}

	return ListingPage
}

// HasPropertyMarkers reports whether the document contains detail-page DOM
// markers. The orchestrator also uses it to skip blog/marketing pages that
// slip through the link filter.
func HasPropertyMarkers(doc *goquery.Document) bool {
	for _, sel := range singlePropertyMarkers {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}
