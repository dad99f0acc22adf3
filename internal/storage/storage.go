package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/caribvillas/villa-scraper/internal/models"
	"github.com/google/uuid"
)

// MemoryStore keeps properties in memory keyed by source URL, optionally
// snapshotted to a JSON file. It backs local development and tests; the
// Postgres repository is the production store. Both implement the scraper's
// PropertyStore contract, source_url uniqueness included.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]*models.StoredProperty
	bySource map[string]string // source_url -> id
	filename string
}

// NewMemoryStore creates a store. An empty filename disables snapshots.
func NewMemoryStore(filename string) (*MemoryStore, error) {
	ms := &MemoryStore{
		byID:     make(map[string]*models.StoredProperty),
		bySource: make(map[string]string),
		filename: filename,
	}

	if filename != "" {
		if err := ms.load(); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	return ms, nil
}

func (ms *MemoryStore) FindBySourceURL(_ context.Context, sourceURL string) (*models.StoredProperty, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	id, ok := ms.bySource[sourceURL]
	if !ok {
		return nil, nil
	}
	return copyProperty(ms.byID[id]), nil
}

func (ms *MemoryStore) Insert(_ context.Context, p *models.Property) (*models.StoredProperty, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.bySource[p.SourceURL]; exists {
		return nil, fmt.Errorf("property already exists for source_url: %s", p.SourceURL)
	}

	now := time.Now()
	stored := &models.StoredProperty{
		ID:        uuid.New().String(),
		Property:  *p,
		CreatedAt: now,
		UpdatedAt: now,
		ScrapedAt: now,
	}

	ms.byID[stored.ID] = stored
	ms.bySource[stored.SourceURL] = stored.ID

	if err := ms.save(); err != nil {
		return nil, err
	}
	return copyProperty(stored), nil
}

func (ms *MemoryStore) Update(_ context.Context, id string, p *models.Property) (*models.StoredProperty, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	existing, ok := ms.byID[id]
	if !ok {
		return nil, fmt.Errorf("property not found: %s", id)
	}

	// Identity, creation time and publication flags survive re-scrapes.
	now := time.Now()
	existing.Name = p.Name
	existing.Location = p.Location
	existing.PricePerNight = p.PricePerNight
	existing.Currency = p.Currency
	existing.Description = p.Description
	existing.Amenities = p.Amenities
	existing.Images = p.Images
	existing.Bedrooms = p.Bedrooms
	existing.Bathrooms = p.Bathrooms
	existing.MaxGuests = p.MaxGuests
	existing.Rating = p.Rating
	existing.AffiliateLinks = p.AffiliateLinks
	existing.UpdatedAt = now
	existing.ScrapedAt = now

	if err := ms.save(); err != nil {
		return nil, err
	}
	return copyProperty(existing), nil
}

// SetPublished flips the review flag on a stored property. Publication state
// belongs to editors, not the scraper; re-scrapes never touch it.
func (ms *MemoryStore) SetPublished(_ context.Context, id string, published bool) (*models.StoredProperty, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	existing, ok := ms.byID[id]
	if !ok {
		return nil, fmt.Errorf("property not found: %s", id)
	}
	existing.IsPublished = published
	existing.UpdatedAt = time.Now()

	if err := ms.save(); err != nil {
		return nil, err
	}
	return copyProperty(existing), nil
}

func (ms *MemoryStore) GetByID(_ context.Context, id string) (*models.StoredProperty, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	stored, ok := ms.byID[id]
	if !ok {
		return nil, nil
	}
	return copyProperty(stored), nil
}

func (ms *MemoryStore) List(_ context.Context, filter models.ListFilter) ([]*models.StoredProperty, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var properties []*models.StoredProperty
	for _, stored := range ms.byID {
		if filter.Destination != "" && stored.Location != filter.Destination {
			continue
		}
		if filter.Published != nil && stored.IsPublished != *filter.Published {
			continue
		}
		properties = append(properties, copyProperty(stored))
	}

	sort.Slice(properties, func(i, j int) bool {
		return properties[i].CreatedAt.After(properties[j].CreatedAt)
	})

	if filter.Limit > 0 && len(properties) > filter.Limit {
		properties = properties[:filter.Limit]
	}
	return properties, nil
}

func (ms *MemoryStore) CountByDestination(_ context.Context) (map[string]int, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	counts := make(map[string]int)
	for _, stored := range ms.byID {
		counts[stored.Location]++
	}
	return counts, nil
}

func (ms *MemoryStore) CountPendingReview(_ context.Context) (int, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var count int
	for _, stored := range ms.byID {
		if !stored.IsPublished {
			count++
		}
	}
	return count, nil
}

// Len reports the number of stored properties.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.byID)
}

func copyProperty(p *models.StoredProperty) *models.StoredProperty {
	cp := *p
	cp.Amenities = append([]string(nil), p.Amenities...)
	cp.Images = append([]string(nil), p.Images...)
	cp.AffiliateLinks = make(map[string]string, len(p.AffiliateLinks))
	for k, v := range p.AffiliateLinks {
		cp.AffiliateLinks[k] = v
	}
	return &cp
}

func (ms *MemoryStore) save() error {
	if ms.filename == "" {
		return nil
	}

	data, err := json.MarshalIndent(ms.byID, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first for atomicity
	tmpFile := ms.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpFile, ms.filename)
}

func (ms *MemoryStore) load() error {
	data, err := os.ReadFile(ms.filename)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, &ms.byID); err != nil {
		return err
	}
	for id, stored := range ms.byID {
		ms.bySource[stored.SourceURL] = id
	}
	return nil
}
