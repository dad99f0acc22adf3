package scraper

import (
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/caribvillas/villa-scraper/internal/models"
)

// Plausibility bounds for nightly rates. Values outside them are treated as
// noise ($12 cleaning fee, $2,000,000 sale price) rather than real rates.
const (
	minNightlyRate = 100
	maxNightlyRate = 50000

	// The last-resort "any dollar amount" strategy uses tighter bounds since
	// it has no context to lean on.
	minFallbackRate = 200
	maxFallbackRate = 25000

	// Typical luxury villa range, preferred when guessing among candidates.
	typicalRateLow  = 500
	typicalRateHigh = 5000
)

const (
	maxBedrooms = 20
	maxGuests   = 50
)

var (
	dollarAmountRe = regexp.MustCompile(`\$\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

	// Ordered most specific to least specific; used against full page text.
	pageTextPriceRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)from\s*\$\s*([\d,]+)\s*(?:/\s*|per\s*)night`),
		regexp.MustCompile(`(?i)\$\s*([\d,]+)\s*(?:/\s*|per\s*)night`),
		regexp.MustCompile(`(?i)rates?\s*(?:start(?:ing)?\s*)?from\s*\$\s*([\d,]+)`),
		regexp.MustCompile(`(?i)from\s*\$\s*([\d,]+)`),
	}

	labeledPriceRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\$\s*([\d,]+)\s*(?:/\s*|per\s*)night`),
		regexp.MustCompile(`(?i)from\s*\$\s*([\d,]+)`),
	}

	bedroomNameRe = regexp.MustCompile(`(?i)(\d+)\s*(?:br|bed(?:room)?s?)\b`)

	bedroomRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)\s*bed(?:room)?s?\b`),
		regexp.MustCompile(`(?i)bedrooms?\s*:?\s*(\d+)`),
	}
	bathroomRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)(?:\.5)?\s*bath(?:room)?s?\b`),
		regexp.MustCompile(`(?i)bathrooms?\s*:?\s*(\d+)`),
	}
	guestRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)sleeps\s*(?:up\s*to\s*)?(\d+)`),
		regexp.MustCompile(`(?i)accommodates\s*(?:up\s*to\s*)?(\d+)`),
		regexp.MustCompile(`(?i)max(?:imum)?\s*occupancy\s*:?\s*(\d+)`),
		regexp.MustCompile(`(?i)(\d+)\s*guests?\b`),
	}

	imageDimRe = regexp.MustCompile(`^\d+$`)
)

var nameSelectors = []string{
	"h1.property-title",
	"h1.listing-title",
	"h1.villa-title",
	".property-name h1",
	"h1.entry-title",
	"h1",
}

var priceContainerSelectors = []string{
	".price",
	".property-price",
	".listing-price",
	".rate",
	".rates",
	".pricing",
	"[class*='price']",
}

var rateTableSelectors = []string{
	".rates-table",
	".rate-table",
	".pricing-table",
	"table",
}

var descriptionSelectors = []string{
	".property-description",
	".listing-description",
	"#description",
	".villa-description",
	".description",
}

var amenityContainerSelectors = []string{
	".amenities",
	".property-amenities",
	"#amenities",
	".property-features",
	".features",
}

var amenityItemSelectors = []string{
	".amenities li",
	".property-amenities li",
	".features li",
	"ul.amenity-list li",
	".amenity",
}

// amenityVocabulary covers the terms commonly listed by Caribbean villa
// sites, used to mine amenities out of a prose description.
var amenityVocabulary = []string{
	"private pool", "infinity pool", "pool", "hot tub", "jacuzzi", "plunge pool",
	"air conditioning", "wifi", "beachfront", "beach access", "ocean view",
	"sea view", "private chef", "chef", "butler", "housekeeping", "housekeeper",
	"gym", "fitness room", "tennis court", "spa", "bbq", "grill", "kayaks",
	"paddleboards", "snorkeling", "gated community", "security", "garden",
	"terrace", "balcony", "patio", "outdoor dining", "laundry", "parking",
	"generator", "gazebo",
}

// imageExcludeSubstrings filter out site chrome masquerading as photos.
var imageExcludeSubstrings = []string{
	"theme", "icon", "logo", "avatar", "placeholder", "default-image", "gravatar",
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// rateBoilerplateMarkers flag paragraphs that belong to a rate table rather
// than the property description.
var rateBoilerplateMarkers = []string{
	"per night", "rates", "minimum stay", "check-in", "check-out",
}

// Extractor pulls a normalized Property out of a parsed detail page. Each
// field runs its own ordered cascade of strategies; the first plausible value
// wins and later strategies are never consulted.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger.With("component", "extractor")}
}

// Extract builds a Property from doc. All fields are best-effort; only the
// name decides validity (see models.Property.IsValid).
func (e *Extractor) Extract(doc *goquery.Document, sourceURL, explicitDestination string) *models.Property {
	p := models.NewProperty(sourceURL)

	p.Name = e.extractName(doc)
	p.Description = e.extractDescription(doc)
	p.PricePerNight = e.extractPrice(doc)
	p.Amenities = e.extractAmenities(doc, p.Description)
	p.Images = e.extractImages(doc)

	bodyText := doc.Find("body").Text()
	p.Bedrooms = e.extractBedrooms(p.Name, bodyText)
	p.Bathrooms = firstCountMatch(bathroomRes, bodyText, maxBedrooms)
	p.MaxGuests = e.extractGuests(bodyText, p.Bedrooms)

	p.Location = ResolveDestination(explicitDestination, sourceURL, doc.Text())

	return p
}

// --- name ---

func (e *Extractor) extractName(doc *goquery.Document) string {
	for _, sel := range nameSelectors {
		name := strings.TrimSpace(doc.Find(sel).First().Text())
		if len(name) > 2 {
			return cleanName(name)
		}
	}
	if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		if name := strings.TrimSpace(og); len(name) > 2 {
			return cleanName(name)
		}
	}
	return ""
}

// cleanName drops site-name suffixes ("Coral House - Barbados Villa Rentals").
func cleanName(name string) string {
	for _, sep := range []string{" - ", " | "} {
		if idx := strings.Index(name, sep); idx > 0 {
			name = name[:idx]
		}
	}
	return truncate(strings.TrimSpace(name), models.MaxNameLen)
}

// --- price ---

func (e *Extractor) extractPrice(doc *goquery.Document) float64 {
	strategies := []func(*goquery.Document) (float64, bool){
		e.priceFromLabeledContainers,
		e.priceFromRateTables,
		e.priceFromPageText,
		e.priceFromAnyAmount,
	}
	for _, strategy := range strategies {
		if price, ok := strategy(doc); ok {
			return price
		}
	}
	return 0
}

// priceFromLabeledContainers looks inside dedicated price elements for a
// "$N /night" or "from $N" pattern.
func (e *Extractor) priceFromLabeledContainers(doc *goquery.Document) (float64, bool) {
	for _, sel := range priceContainerSelectors {
		var found float64
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := s.Text()
			for _, re := range labeledPriceRes {
				if m := re.FindStringSubmatch(text); len(m) > 1 {
					if v, ok := parseDollars(m[1], minNightlyRate, maxNightlyRate); ok {
						found = v
						return false
					}
				}
			}
			return true
		})
		if found > 0 {
			return found, true
		}
	}
	return 0, false
}

// priceFromRateTables collects every dollar amount inside rate-table-like
// containers and takes the minimum plausible one, assumed to be the
// "starting from" low-season rate.
func (e *Extractor) priceFromRateTables(doc *goquery.Document) (float64, bool) {
	for _, sel := range rateTableSelectors {
		var amounts []float64
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			for _, m := range dollarAmountRe.FindAllStringSubmatch(s.Text(), -1) {
				if v, ok := parseDollars(m[1], minNightlyRate, maxNightlyRate); ok {
					amounts = append(amounts, v)
				}
			}
		})
		if len(amounts) > 0 {
			min := amounts[0]
			for _, v := range amounts[1:] {
				if v < min {
					min = v
				}
			}
			return min, true
		}
	}
	return 0, false
}

func (e *Extractor) priceFromPageText(doc *goquery.Document) (float64, bool) {
	text := doc.Text()
	for _, re := range pageTextPriceRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if v, ok := parseDollars(m[1], minNightlyRate, maxNightlyRate); ok {
				return v, true
			}
		}
	}
	return 0, false
}

// priceFromAnyAmount is the last resort: every dollar amount on the page,
// preferring one in the typical villa range, else the median of candidates.
func (e *Extractor) priceFromAnyAmount(doc *goquery.Document) (float64, bool) {
	var candidates, typical []float64
	for _, m := range dollarAmountRe.FindAllStringSubmatch(doc.Text(), -1) {
		v, ok := parseDollars(m[1], minFallbackRate, maxFallbackRate)
		if !ok {
			continue
		}
		candidates = append(candidates, v)
		if v >= typicalRateLow && v <= typicalRateHigh {
			typical = append(typical, v)
		}
	}
	if len(typical) > 0 {
		candidates = typical
	}
	if len(candidates) == 0 {
		return 0, false
	}
	sort.Float64s(candidates)
	return candidates[len(candidates)/2], true
}

func parseDollars(s string, min, max float64) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || v < min || v > max {
		return 0, false
	}
	return v, true
}

// --- description ---

func (e *Extractor) extractDescription(doc *goquery.Document) string {
	for _, sel := range descriptionSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		clone := s.Clone()
		clone.Find("h1, h2, h3, h4, h5, label").Remove()
		if text := collapseWhitespace(clone.Text()); len(text) > 0 {
			return truncate(text, models.MaxDescriptionLen)
		}
	}

	var paragraphs []string
	doc.Find("body p").Each(func(_ int, s *goquery.Selection) {
		text := collapseWhitespace(s.Text())
		if len(text) <= 50 || containsAnyFold(text, rateBoilerplateMarkers) {
			return
		}
		paragraphs = append(paragraphs, text)
	})
	if len(paragraphs) > 0 {
		return truncate(strings.Join(paragraphs, "\n\n"), models.MaxDescriptionLen)
	}

	if meta, ok := doc.Find("meta[name='description']").Attr("content"); ok {
		return truncate(strings.TrimSpace(meta), models.MaxDescriptionLen)
	}
	return ""
}

// --- amenities ---

func (e *Extractor) extractAmenities(doc *goquery.Document, description string) []string {
	if amenities := amenitiesFromContainers(doc); len(amenities) > 0 {
		return amenities
	}
	if amenities := amenitiesFromListItems(doc); len(amenities) > 0 {
		return amenities
	}
	return amenitiesFromVocabulary(description)
}

func amenitiesFromContainers(doc *goquery.Document) []string {
	for _, sel := range amenityContainerSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		var amenities []string
		seen := make(map[string]struct{})
		for _, line := range strings.Split(s.Text(), "\n") {
			line = strings.TrimSpace(line)
			if len(line) <= 2 || len(line) >= 100 || isSectionHeading(line) {
				continue
			}
			key := strings.ToLower(line)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			amenities = append(amenities, line)
			if len(amenities) == models.MaxAmenities {
				break
			}
		}
		if len(amenities) > 0 {
			return amenities
		}
	}
	return nil
}

func amenitiesFromListItems(doc *goquery.Document) []string {
	var amenities []string
	seen := make(map[string]struct{})
	for _, sel := range amenityItemSelectors {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			item := collapseWhitespace(s.Text())
			if len(item) <= 2 || len(item) >= 100 {
				return true
			}
			key := strings.ToLower(item)
			if _, dup := seen[key]; dup {
				return true
			}
			seen[key] = struct{}{}
			amenities = append(amenities, item)
			return len(amenities) < models.MaxAmenities
		})
		if len(amenities) > 0 {
			break
		}
	}
	return amenities
}

func amenitiesFromVocabulary(description string) []string {
	if description == "" {
		return nil
	}
	lower := strings.ToLower(description)
	var amenities []string
	seen := make(map[string]struct{})
	for _, term := range amenityVocabulary {
		if !strings.Contains(lower, term) {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		amenities = append(amenities, term)
		if len(amenities) == models.MaxAmenities {
			break
		}
	}
	return amenities
}

func isSectionHeading(line string) bool {
	switch strings.ToLower(strings.TrimSuffix(line, ":")) {
	case "amenities", "features", "property features", "property amenities", "facilities":
		return true
	}
	return false
}

// --- bedroom / bathroom / guest counts ---

func (e *Extractor) extractBedrooms(name, bodyText string) int {
	// The name is the most reliable source ("4 BR Beachfront Villa").
	if m := bedroomNameRe.FindStringSubmatch(name); len(m) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 && n < maxBedrooms {
			return n
		}
	}
	return firstCountMatch(bedroomRes, bodyText, maxBedrooms)
}

func (e *Extractor) extractGuests(bodyText string, bedrooms int) int {
	if n := firstCountMatch(guestRes, bodyText, maxGuests); n > 0 {
		return n
	}
	if bedrooms > 0 {
		return bedrooms * 2
	}
	return 2
}

func firstCountMatch(patterns []*regexp.Regexp, text string, upper int) int {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 && n < upper {
				return n
			}
		}
	}
	return 0
}

// --- images ---

// extractImages prefers lightbox anchors, which point at full-resolution
// files, and tops up from <img> tags only when fewer than 5 were found.
func (e *Extractor) extractImages(doc *goquery.Document) []string {
	var images []string
	seen := make(map[string]struct{})

	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || len(images) >= models.MaxImages {
			return
		}
		if !strings.HasPrefix(u, "http") && !strings.HasPrefix(u, "/") {
			return
		}
		if containsAnyFold(u, imageExcludeSubstrings) {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		images = append(images, u)
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if hasImageExtension(href) {
			add(href)
		}
	})

	if len(images) >= 5 {
		return images
	}

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if !imageDimensionsOK(s) {
			return
		}
		for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
			if src, ok := s.Attr(attr); ok && hasImageExtension(src) {
				add(src)
				return
			}
		}
	})

	return images
}

func hasImageExtension(u string) bool {
	lower := strings.ToLower(u)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// imageDimensionsOK rejects declared-tiny images (thumbnails, spacers).
// Images without declared dimensions pass.
func imageDimensionsOK(s *goquery.Selection) bool {
	if w, ok := s.Attr("width"); ok && imageDimRe.MatchString(w) {
		if n, _ := strconv.Atoi(w); n < 200 {
			return false
		}
	}
	if h, ok := s.Attr("height"); ok && imageDimRe.MatchString(h) {
		if n, _ := strconv.Atoi(h); n < 150 {
			return false
		}
	}
	return true
}

// --- helpers ---

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsAnyFold(s string, markers []string) bool {
	lower := strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
