package scraper

import (
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func testExtractor() *Extractor {
	return NewExtractor(slog.Default())
}

func TestExtractName(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "property title heading",
			html:     `<html><body><h1 class="property-title">Coral House</h1><h1>Other</h1></body></html>`,
			expected: "Coral House",
		},
		{
			name:     "generic h1 fallback",
			html:     `<html><body><h1>Sea Breeze Villa</h1></body></html>`,
			expected: "Sea Breeze Villa",
		},
		{
			name:     "og:title fallback",
			html:     `<html><head><meta property="og:title" content="Palm Grove Estate"></head><body></body></html>`,
			expected: "Palm Grove Estate",
		},
		{
			name:     "site-name suffix stripped after dash",
			html:     `<html><body><h1>Coral House - Barbados Villa Rentals</h1></body></html>`,
			expected: "Coral House",
		},
		{
			name:     "site-name suffix stripped after pipe",
			html:     `<html><body><h1>Coral House | Luxury Villas</h1></body></html>`,
			expected: "Coral House",
		},
		{
			name:     "too-short heading skipped",
			html:     `<html><body><h1>ok</h1></body></html>`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseHTML(t, tt.html)
			assert.Equal(t, tt.expected, testExtractor().extractName(doc))
		})
	}
}

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected float64
	}{
		{
			name:     "labeled price container",
			html:     `<html><body><div class="property-price">$1,200 /night</div></body></html>`,
			expected: 1200,
		},
		{
			name:     "labeled container with from prefix",
			html:     `<html><body><span class="rate">from $850</span></body></html>`,
			expected: 850,
		},
		{
			name: "rate table takes minimum plausible amount",
			html: `<html><body><table class="rates-table"><tr><td>Winter</td><td>$2,400</td></tr>` +
				`<tr><td>Summer</td><td>$1,600</td></tr><tr><td>Deposit</td><td>$50</td></tr></table></body></html>`,
			expected: 1600,
		},
		{
			name:     "page text per night pattern",
			html:     `<html><body><p>This villa rents from $950 per night in low season.</p></body></html>`,
			expected: 950,
		},
		{
			name:     "below lower bound yields unknown",
			html:     `<html><body><p>Parking costs $50 /night extra.</p></body></html>`,
			expected: 0,
		},
		{
			name:     "no dollar amounts yields unknown",
			html:     `<html><body><p>Contact us for rates.</p></body></html>`,
			expected: 0,
		},
		{
			name: "last resort prefers typical villa range",
			html: `<html><body><p>Villa photos: fee $210, rental rate $2,200, event buyout $24,000.</p></body></html>`,
			expected: 2200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseHTML(t, tt.html)
			assert.Equal(t, tt.expected, testExtractor().extractPrice(doc))
		})
	}
}

func TestExtractDescription(t *testing.T) {
	t.Run("dedicated container with headings stripped", func(t *testing.T) {
		doc := parseHTML(t, `<html><body><div class="property-description">`+
			`<h2>About this villa</h2><p>A beachfront estate with sweeping ocean views and a private chef.</p>`+
			`</div></body></html>`)
		desc := testExtractor().extractDescription(doc)
		assert.NotContains(t, desc, "About this villa")
		assert.Contains(t, desc, "beachfront estate")
	})

	t.Run("paragraph fallback skips rate boilerplate", func(t *testing.T) {
		doc := parseHTML(t, `<html><body>`+
			`<p>Rates from $500 per night with a three night minimum stay for all guests.</p>`+
			`<p>The villa sits on two acres of tropical gardens above a private white-sand cove.</p>`+
			`<p>short</p>`+
			`</body></html>`)
		desc := testExtractor().extractDescription(doc)
		assert.Contains(t, desc, "tropical gardens")
		assert.NotContains(t, desc, "minimum stay")
	})

	t.Run("meta description fallback", func(t *testing.T) {
		doc := parseHTML(t, `<html><head><meta name="description" content="A quiet hillside retreat."></head><body></body></html>`)
		assert.Equal(t, "A quiet hillside retreat.", testExtractor().extractDescription(doc))
	})
}

func TestExtractAmenities(t *testing.T) {
	t.Run("amenity container", func(t *testing.T) {
		doc := parseHTML(t, `<html><body><ul class="amenities">
			<li>Infinity Pool</li>
			<li>Private Chef</li>
			<li>Infinity Pool</li>
			<li>x</li>
		</ul></body></html>`)
		amenities := testExtractor().extractAmenities(doc, "")
		assert.Equal(t, []string{"Infinity Pool", "Private Chef"}, amenities)
	})

	t.Run("list item selectors without known container", func(t *testing.T) {
		doc := parseHTML(t, `<html><body><ul class="amenity-list">
			<li>Hot Tub</li>
			<li>Tennis Court</li>
		</ul></body></html>`)
		amenities := testExtractor().extractAmenities(doc, "")
		assert.Equal(t, []string{"Hot Tub", "Tennis Court"}, amenities)
	})

	t.Run("vocabulary scan over description", func(t *testing.T) {
		desc := "The villa offers an infinity pool, air conditioning throughout, and a private chef on request."
		doc := parseHTML(t, `<html><body></body></html>`)
		amenities := testExtractor().extractAmenities(doc, desc)
		assert.Contains(t, amenities, "infinity pool")
		assert.Contains(t, amenities, "air conditioning")
		assert.Contains(t, amenities, "private chef")
	})

	t.Run("no sources yields none", func(t *testing.T) {
		doc := parseHTML(t, `<html><body></body></html>`)
		assert.Empty(t, testExtractor().extractAmenities(doc, ""))
	})
}

func TestExtractCounts(t *testing.T) {
	e := testExtractor()

	t.Run("bedrooms from name", func(t *testing.T) {
		assert.Equal(t, 5, e.extractBedrooms("5 BR Beachfront Villa", ""))
	})

	t.Run("bedrooms from body text", func(t *testing.T) {
		assert.Equal(t, 4, e.extractBedrooms("Sea Breeze Villa", "The villa has 4 bedrooms and 3 bathrooms."))
	})

	t.Run("implausible bedroom count rejected", func(t *testing.T) {
		assert.Equal(t, 0, e.extractBedrooms("Sea Breeze Villa", "Over 400 bedrooms across our portfolio."))
	})

	t.Run("guests detected directly", func(t *testing.T) {
		assert.Equal(t, 10, e.extractGuests("Sleeps 10 comfortably.", 4))
	})

	t.Run("guests derived from bedrooms", func(t *testing.T) {
		assert.Equal(t, 8, e.extractGuests("A lovely villa with 4 bedrooms.", 4))
	})

	t.Run("guests default to two", func(t *testing.T) {
		assert.Equal(t, 2, e.extractGuests("A lovely cottage by the sea.", 0))
	})
}

func TestExtractImages(t *testing.T) {
	t.Run("lightbox anchors preferred and filtered", func(t *testing.T) {
		doc := parseHTML(t, `<html><body>`+
			`<a href="/photos/villa-1.jpg">one</a>`+
			`<a href="/photos/villa-2.jpg">two</a>`+
			`<a href="/photos/villa-1.jpg">dup</a>`+
			`<a href="/wp-content/themes/theme/banner.jpg">theme</a>`+
			`<a href="https://cdn.example.com/logo.png">logo</a>`+
			`</body></html>`)
		images := testExtractor().extractImages(doc)
		assert.Equal(t, []string{"/photos/villa-1.jpg", "/photos/villa-2.jpg"}, images)
	})

	t.Run("img tags supplement when few anchors", func(t *testing.T) {
		doc := parseHTML(t, `<html><body>`+
			`<a href="/photos/villa-1.jpg">one</a>`+
			`<img src="/photos/villa-3.jpg" width="800" height="600">`+
			`<img src="/photos/tiny.jpg" width="50" height="50">`+
			`<img data-src="/photos/villa-4.jpg">`+
			`</body></html>`)
		images := testExtractor().extractImages(doc)
		assert.Equal(t, []string{"/photos/villa-1.jpg", "/photos/villa-3.jpg", "/photos/villa-4.jpg"}, images)
	})
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"short string untouched", "Coral House", 500, "Coral House"},
		{"ascii cut at limit", "abcdef", 4, "abcd"},
		{"multibyte rune never split", strings.Repeat("a", 499) + "é", 500, strings.Repeat("a", 499)},
		{"cut lands inside rune", "héllo", 2, "h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.max)
			assert.Equal(t, tt.expected, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestExtractFullProperty(t *testing.T) {
	html := `<html><head><title>ignored</title></head><body>
		<h1 class="property-title">Coral House - Island Villas</h1>
		<div class="property-price">$1,500 /night</div>
		<div class="property-description"><h3>Overview</h3>
			<p>A grand beachfront estate in Holetown with an infinity pool and staff of five.</p>
		</div>
		<ul class="amenities">
			<li>Infinity Pool</li>
			<li>Private Chef</li>
			<li>Tennis Court</li>
		</ul>
		<p>4 bedrooms, 4.5 bathrooms.</p>
		<a href="/photos/coral-1.jpg">photo</a>
	</body></html>`

	doc := parseHTML(t, html)
	p := testExtractor().Extract(doc, "https://example.com/properties/coral-house/", "")

	assert.Equal(t, "Coral House", p.Name)
	assert.Equal(t, float64(1500), p.PricePerNight)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, 4, p.Bedrooms)
	assert.Equal(t, 4, p.Bathrooms)
	assert.Equal(t, 8, p.MaxGuests)
	assert.Equal(t, "Barbados", p.Location) // Holetown keyword
	assert.Equal(t, []string{"Infinity Pool", "Private Chef", "Tennis Court"}, p.Amenities)
	assert.Equal(t, []string{"/photos/coral-1.jpg"}, p.Images)
	assert.Equal(t, 4.5, p.Rating)
	assert.True(t, p.IsValid())
}
