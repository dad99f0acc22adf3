package models

import (
	"strings"
	"time"
)

// FallbackDestination is used when no destination can be resolved for a
// property. It is a member of the closed destination vocabulary.
const FallbackDestination = "Caribbean"

// DefaultRating is assigned to every scraped property; there is no real
// rating source on third-party listing sites.
const DefaultRating = 4.5

const (
	MaxNameLen        = 500
	MaxDescriptionLen = 5000
	MaxAmenities      = 30
	MaxImages         = 25
)

// Property is the normalized result of extracting one source page.
// PricePerNight == 0 means "unknown / contact for price", not a free stay.
type Property struct {
	Name           string            `json:"name"`
	Location       string            `json:"location"`
	PricePerNight  float64           `json:"price_per_night"`
	Currency       string            `json:"currency"`
	Description    string            `json:"description"`
	Amenities      []string          `json:"amenities"`
	Images         []string          `json:"images"`
	Bedrooms       int               `json:"bedrooms"`
	Bathrooms      int               `json:"bathrooms"`
	MaxGuests      int               `json:"max_guests"`
	SourceURL      string            `json:"source_url"`
	Rating         float64           `json:"rating"`
	AffiliateLinks map[string]string `json:"affiliate_links"`
}

// NewProperty returns a property with scrape-time defaults applied.
func NewProperty(sourceURL string) *Property {
	return &Property{
		Location:       FallbackDestination,
		Currency:       "USD",
		Rating:         DefaultRating,
		Amenities:      make([]string, 0),
		Images:         make([]string, 0),
		AffiliateLinks: make(map[string]string),
		SourceURL:      sourceURL,
	}
}

// IsValid reports whether the extraction produced a usable record. A name of
// two characters or fewer is treated as extraction noise and the page is
// discarded by the orchestrator.
func (p *Property) IsValid() bool {
	return len(strings.TrimSpace(p.Name)) > 2
}

// ListFilter narrows catalog listings; zero values mean no filtering.
type ListFilter struct {
	Destination string
	Published   *bool
	Limit       int
}

// StoredProperty is a persisted property row. Publication flags default to
// false on insert: scraped content needs human review before going live, and
// a re-scrape never resets them.
type StoredProperty struct {
	ID string `json:"id"`
	Property
	IsActive    bool      `json:"is_active"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ScrapedAt   time.Time `json:"scraped_at"`
}
