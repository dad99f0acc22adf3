package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/caribvillas/villa-scraper/internal/database"
	"github.com/caribvillas/villa-scraper/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypePropertyImported is published when a scrape inserts a new property
	EventTypePropertyImported EventType = "PROPERTY_IMPORTED"
	// EventTypePropertyUpdated is published when a re-scrape updates an existing property
	EventTypePropertyUpdated EventType = "PROPERTY_UPDATED"
)

// PropertyEventPayload is the event body consumed by the CRM review queue.
type PropertyEventPayload struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	PropertyID    string    `json:"property_id"`
	Name          string    `json:"name"`
	Location      string    `json:"location"`
	SourceURL     string    `json:"source_url"`
	PricePerNight float64   `json:"price_per_night"`
	Currency      string    `json:"currency"`
	Bedrooms      int       `json:"bedrooms"`
	Bathrooms     int       `json:"bathrooms"`
	MaxGuests     int       `json:"max_guests"`
	Images        []string  `json:"images,omitempty"`
	IsPublished   bool      `json:"is_published"`
	Source        string    `json:"source"`
}

// Publisher writes property events through the transactional outbox, so an
// event is recorded if and only if the catalog change committed.
type Publisher struct {
	db     *database.DB
	outbox *database.OutboxRepository
	logger *slog.Logger
}

func NewPublisher(db *database.DB, logger *slog.Logger) *Publisher {
	return &Publisher{
		db:     db,
		outbox: database.NewOutboxRepository(db),
		logger: logger.With("component", "event_publisher"),
	}
}

// PropertyImported records a PROPERTY_IMPORTED event for a newly inserted row.
func (p *Publisher) PropertyImported(ctx context.Context, sp *models.StoredProperty) error {
	return p.publish(ctx, EventTypePropertyImported, sp)
}

// PropertyUpdated records a PROPERTY_UPDATED event for a re-scraped row.
func (p *Publisher) PropertyUpdated(ctx context.Context, sp *models.StoredProperty) error {
	return p.publish(ctx, EventTypePropertyUpdated, sp)
}

func (p *Publisher) publish(ctx context.Context, eventType EventType, sp *models.StoredProperty) error {
	payload := &PropertyEventPayload{
		EventID:       uuid.New().String(),
		EventType:     string(eventType),
		Timestamp:     time.Now(),
		PropertyID:    sp.ID,
		Name:          sp.Name,
		Location:      sp.Location,
		SourceURL:     sp.SourceURL,
		PricePerNight: sp.PricePerNight,
		Currency:      sp.Currency,
		Bedrooms:      sp.Bedrooms,
		Bathrooms:     sp.Bathrooms,
		MaxGuests:     sp.MaxGuests,
		Images:        sp.Images,
		IsPublished:   sp.IsPublished,
		Source:        "villa-scraper",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: "property",
		AggregateID:   sp.ID,
		EventType:     string(eventType),
		Payload:       data,
		TargetStream:  database.DefaultTargetStream,
	}

	err = p.db.Transaction(ctx, func(tx pgx.Tx) error {
		return p.outbox.InsertWithTx(ctx, tx, outboxEvent)
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", eventType,
		"event_id", payload.EventID,
		"property_id", sp.ID,
		"outbox_id", outboxEvent.ID,
	)

	return nil
}
