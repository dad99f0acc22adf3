package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/caribvillas/villa-scraper/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PropertyRepository persists scraped properties in the properties table.
// source_url carries a UNIQUE constraint; upsert semantics live in the
// scraper's gateway, which looks up by source_url before choosing Insert or
// Update.
type PropertyRepository struct {
	db *DB
}

func NewPropertyRepository(db *DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

const propertyColumns = `
	id, name, location, price_per_night, currency, description,
	amenities, images, bedrooms, bathrooms, max_guests, source_url,
	rating, affiliate_links, is_active, is_published,
	created_at, updated_at, scraped_at`

// FindBySourceURL returns the stored property for a source URL, or (nil, nil)
// when none exists.
func (r *PropertyRepository) FindBySourceURL(ctx context.Context, sourceURL string) (*models.StoredProperty, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE source_url = $1`

	row := r.db.pool.QueryRow(ctx, query, sourceURL)
	p, err := scanProperty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find property by source_url: %w", err)
	}
	return p, nil
}

// Insert creates a new property row. Publication flags start false: scraped
// content is held for review.
func (r *PropertyRepository) Insert(ctx context.Context, p *models.Property) (*models.StoredProperty, error) {
	amenities, images, affiliates, err := marshalJSONFields(p)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	query := `
		INSERT INTO properties (
			id, name, location, price_per_night, currency, description,
			amenities, images, bedrooms, bathrooms, max_guests, source_url,
			rating, affiliate_links, is_active, is_published,
			created_at, updated_at, scraped_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			false, false, $15, $15, $15
		)
		RETURNING ` + propertyColumns

	row := r.db.pool.QueryRow(ctx, query,
		uuid.New().String(), p.Name, p.Location, p.PricePerNight, p.Currency,
		p.Description, amenities, images, p.Bedrooms, p.Bathrooms, p.MaxGuests,
		p.SourceURL, p.Rating, affiliates, now,
	)
	stored, err := scanProperty(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert property: %w", err)
	}
	return stored, nil
}

// Update overwrites the mutable fields of an existing row. id, created_at and
// the publication flags are left untouched so a re-scrape never unpublishes a
// live property.
func (r *PropertyRepository) Update(ctx context.Context, id string, p *models.Property) (*models.StoredProperty, error) {
	amenities, images, affiliates, err := marshalJSONFields(p)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	query := `
		UPDATE properties SET
			name = $2, location = $3, price_per_night = $4, currency = $5,
			description = $6, amenities = $7, images = $8, bedrooms = $9,
			bathrooms = $10, max_guests = $11, rating = $12,
			affiliate_links = $13, updated_at = $14, scraped_at = $14
		WHERE id = $1
		RETURNING ` + propertyColumns

	row := r.db.pool.QueryRow(ctx, query,
		id, p.Name, p.Location, p.PricePerNight, p.Currency, p.Description,
		amenities, images, p.Bedrooms, p.Bathrooms, p.MaxGuests, p.Rating,
		affiliates, now,
	)
	stored, err := scanProperty(row)
	if err != nil {
		return nil, fmt.Errorf("failed to update property: %w", err)
	}
	return stored, nil
}

// List returns stored properties for the admin UI, newest first.
func (r *PropertyRepository) List(ctx context.Context, filter models.ListFilter) ([]*models.StoredProperty, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE 1=1`
	var args []interface{}

	if filter.Destination != "" {
		args = append(args, filter.Destination)
		query += fmt.Sprintf(" AND location = $%d", len(args))
	}
	if filter.Published != nil {
		args = append(args, *filter.Published)
		query += fmt.Sprintf(" AND is_published = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	var properties []*models.StoredProperty
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return properties, nil
}

// GetByID returns one stored property, or (nil, nil) when absent.
func (r *PropertyRepository) GetByID(ctx context.Context, id string) (*models.StoredProperty, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`

	row := r.db.pool.QueryRow(ctx, query, id)
	p, err := scanProperty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return p, nil
}

// CountByDestination returns property counts grouped by location.
func (r *PropertyRepository) CountByDestination(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT location, COUNT(*) FROM properties GROUP BY location`)
	if err != nil {
		return nil, fmt.Errorf("failed to count properties: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var location string
		var count int
		if err := rows.Scan(&location, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[location] = count
	}
	return counts, nil
}

// CountPendingReview returns how many imported properties await publication.
func (r *PropertyRepository) CountPendingReview(ctx context.Context) (int, error) {
	var count int
	err := r.db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM properties WHERE is_published = false`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending properties: %w", err)
	}
	return count, nil
}

func marshalJSONFields(p *models.Property) (amenities, images, affiliates []byte, err error) {
	if amenities, err = json.Marshal(p.Amenities); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal amenities: %w", err)
	}
	if images, err = json.Marshal(p.Images); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal images: %w", err)
	}
	if affiliates, err = json.Marshal(p.AffiliateLinks); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal affiliate links: %w", err)
	}
	return amenities, images, affiliates, nil
}

func scanProperty(row pgx.Row) (*models.StoredProperty, error) {
	var p models.StoredProperty
	var amenities, images, affiliates []byte

	err := row.Scan(
		&p.ID, &p.Name, &p.Location, &p.PricePerNight, &p.Currency,
		&p.Description, &amenities, &images, &p.Bedrooms, &p.Bathrooms,
		&p.MaxGuests, &p.SourceURL, &p.Rating, &affiliates,
		&p.IsActive, &p.IsPublished, &p.CreatedAt, &p.UpdatedAt, &p.ScrapedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(amenities, &p.Amenities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal amenities: %w", err)
	}
	if err := json.Unmarshal(images, &p.Images); err != nil {
		return nil, fmt.Errorf("failed to unmarshal images: %w", err)
	}
	if err := json.Unmarshal(affiliates, &p.AffiliateLinks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal affiliate links: %w", err)
	}
	return &p, nil
}
