package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/caribvillas/villa-scraper/internal/fetcher"
	"github.com/caribvillas/villa-scraper/internal/models"
	"github.com/caribvillas/villa-scraper/internal/ratelimit"
)

// DefaultMaxProperties bounds how many harvested links a single scrape
// request will follow.
const DefaultMaxProperties = 50

// PropertyStore is the persistence collaborator. FindBySourceURL returns
// (nil, nil) when no row matches. source_url is unique among stored rows.
type PropertyStore interface {
	FindBySourceURL(ctx context.Context, sourceURL string) (*models.StoredProperty, error)
	Insert(ctx context.Context, p *models.Property) (*models.StoredProperty, error)
	Update(ctx context.Context, id string, p *models.Property) (*models.StoredProperty, error)
}

// EventPublisher notifies the CRM about catalog changes. Optional; a nil
// publisher disables events.
type EventPublisher interface {
	PropertyImported(ctx context.Context, p *models.StoredProperty) error
	PropertyUpdated(ctx context.Context, p *models.StoredProperty) error
}

// Request is one scrape invocation. Destination is required: the business
// declares which locale a batch of URLs belongs to rather than trusting
// heuristics.
type Request struct {
	URL           string `json:"url"`
	Destination   string `json:"destination"`
	MaxProperties int    `json:"maxProperties"`
}

// Result aggregates one scrape run. Partial success (some candidates failed)
// is a normal outcome, reflected only in a lower Count.
type Result struct {
	Properties []*models.StoredProperty
	Count      int
	NoneFound  bool
}

// Service drives the scrape pipeline: fetch, classify, harvest, extract,
// upsert. Candidates are processed strictly one at a time with a politeness
// delay between fetches.
type Service struct {
	fetcher   *fetcher.Client
	extractor *Extractor
	store     PropertyStore
	publisher EventPublisher
	limiter   ratelimit.Limiter
	metrics   *Metrics
	logger    *slog.Logger
}

func NewService(fc *fetcher.Client, store PropertyStore, publisher EventPublisher, limiter ratelimit.Limiter, metrics *Metrics, logger *slog.Logger) *Service {
	return &Service{
		fetcher:   fc,
		extractor: NewExtractor(logger),
		store:     store,
		publisher: publisher,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logger.With("component", "scraper"),
	}
}

func validateRequest(req *Request) error {
	if strings.TrimSpace(req.Destination) == "" {
		return &ValidationError{Msg: "destination is required"}
	}
	raw := strings.TrimSpace(req.URL)
	if raw == "" {
		return &ValidationError{Msg: "url is required"}
	}
	// Concatenated-URL corruption guard: reject "https://a.comhttps://b.com".
	if strings.Count(raw, "http://")+strings.Count(raw, "https://") > 1 {
		return &ValidationError{Msg: "url appears corrupted: multiple scheme prefixes"}
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return &ValidationError{Msg: "url must be an absolute http(s) URL"}
	}
	if len(u.Hostname()) < 4 {
		return &ValidationError{Msg: "url hostname is too short"}
	}
	req.URL = raw
	return nil
}

// Scrape runs the full pipeline for one request. Top-level fetch failures are
// returned as classified fetcher errors; per-candidate failures are logged
// and skipped.
func (s *Service) Scrape(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(&req); err != nil {
		s.metrics.IncError("validation")
		return nil, err
	}
	if req.MaxProperties <= 0 {
		req.MaxProperties = DefaultMaxProperties
	}

	s.logger.Info("starting scrape", "url", req.URL, "destination", req.Destination, "max", req.MaxProperties)

	page, err := s.fetchPage(ctx, req.URL, "index")
	if err != nil {
		s.metrics.IncError(errorTypeLabel(err))
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	// A detail page is its own sole candidate; no harvesting, no re-fetch.
	if Classify(page.URL.Path, doc) == SinglePropertyPage {
		stored, err := s.extractAndStore(ctx, doc, CanonicalURL(page.URL.String()), req.Destination)
		if err != nil {
			s.logger.Warn("failed to import property", "url", req.URL, "error", err)
			s.metrics.IncError("import")
			return &Result{Properties: []*models.StoredProperty{}}, nil
		}
		return &Result{Properties: []*models.StoredProperty{stored}, Count: 1}, nil
	}

	links := HarvestLinks(doc, page.URL, req.MaxProperties)
	if len(links) == 0 {
		s.logger.Info("no property links found", "url", req.URL)
		return &Result{Properties: []*models.StoredProperty{}, NoneFound: true}, nil
	}

	s.logger.Info("harvested property links", "url", req.URL, "count", len(links))

	result := &Result{Properties: make([]*models.StoredProperty, 0, len(links))}
	for i, link := range links {
		if i > 0 {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		stored, err := s.scrapeCandidate(ctx, link, req.Destination)
		if err != nil {
			s.logger.Warn("skipping candidate", "url", link, "error", err)
			s.metrics.IncError(errorTypeLabel(err))
			continue
		}
		if stored == nil {
			// Not a property page; the link filter let it through.
			continue
		}
		result.Properties = append(result.Properties, stored)
	}

	result.Count = len(result.Properties)
	s.logger.Info("scrape complete", "url", req.URL, "imported", result.Count, "candidates", len(links))
	return result, nil
}

// scrapeCandidate fetches and imports one harvested link. Returns (nil, nil)
// for pages that lack property markers.
func (s *Service) scrapeCandidate(ctx context.Context, link, destination string) (*models.StoredProperty, error) {
	page, err := s.fetchPage(ctx, link, "property")
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	if Classify(page.URL.Path, doc) != SinglePropertyPage {
		s.logger.Debug("candidate is not a property page", "url", link)
		return nil, nil
	}

	return s.extractAndStore(ctx, doc, CanonicalURL(page.URL.String()), destination)
}

func (s *Service) fetchPage(ctx context.Context, url, phase string) (*fetcher.Page, error) {
	start := time.Now()
	page, err := s.fetcher.Fetch(ctx, url)
	s.metrics.IncFetch(phase)
	s.metrics.ObserveFetch(time.Since(start))
	return page, err
}

func (s *Service) extractAndStore(ctx context.Context, doc *goquery.Document, sourceURL, destination string) (*models.StoredProperty, error) {
	prop := s.extractor.Extract(doc, sourceURL, destination)
	if !prop.IsValid() {
		return nil, fmt.Errorf("extraction produced no usable property name")
	}
	return s.Upsert(ctx, prop)
}

// Upsert stores an extracted property keyed by source_url: an existing row is
// updated in place keeping its id, created_at and publication flags; a new
// row is inserted pending review. Event publishing is best-effort.
func (s *Service) Upsert(ctx context.Context, p *models.Property) (*models.StoredProperty, error) {
	existing, err := s.store.FindBySourceURL(ctx, p.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to look up property: %w", err)
	}

	if existing != nil {
		stored, err := s.store.Update(ctx, existing.ID, p)
		if err != nil {
			return nil, fmt.Errorf("failed to update property: %w", err)
		}
		s.metrics.IncProperty("updated")
		if s.publisher != nil {
			if err := s.publisher.PropertyUpdated(ctx, stored); err != nil {
				s.logger.Error("failed to publish update event", "source_url", p.SourceURL, "error", err)
			}
		}
		s.logger.Info("property updated", "id", stored.ID, "name", stored.Name, "source_url", stored.SourceURL)
		return stored, nil
	}

	stored, err := s.store.Insert(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to insert property: %w", err)
	}
	s.metrics.IncProperty("imported")
	if s.publisher != nil {
		if err := s.publisher.PropertyImported(ctx, stored); err != nil {
			s.logger.Error("failed to publish import event", "source_url", p.SourceURL, "error", err)
		}
	}
	s.logger.Info("property imported", "id", stored.ID, "name", stored.Name, "source_url", stored.SourceURL)
	return stored, nil
}
