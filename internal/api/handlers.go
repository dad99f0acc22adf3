package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/caribvillas/villa-scraper/internal/fetcher"
	"github.com/caribvillas/villa-scraper/internal/models"
	"github.com/caribvillas/villa-scraper/internal/scraper"
)

// PropertyReader serves the admin UI's read access to the catalog.
type PropertyReader interface {
	List(ctx context.Context, filter models.ListFilter) ([]*models.StoredProperty, error)
	GetByID(ctx context.Context, id string) (*models.StoredProperty, error)
	CountByDestination(ctx context.Context) (map[string]int, error)
	CountPendingReview(ctx context.Context) (int, error)
}

type Handlers struct {
	scraper *scraper.Service
	catalog PropertyReader
	logger  *slog.Logger
}

func NewHandlers(scraperSvc *scraper.Service, catalog PropertyReader, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper: scraperSvc,
		catalog: catalog,
		logger:  logger,
	}
}

// ScrapeResponse is the response for scrape requests. Exactly one of the
// success and error shapes is populated.
type ScrapeResponse struct {
	Success     bool                     `json:"success,omitempty"`
	Count       int                      `json:"count"`
	Properties  []*models.StoredProperty `json:"properties"`
	Error       string                   `json:"error,omitempty"`
	Blocked     bool                     `json:"blocked,omitempty"`
	ServerError bool                     `json:"serverError,omitempty"`
	RateLimited bool                     `json:"rateLimited,omitempty"`
}

// Scrape handles property import requests from the admin UI.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req scraper.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.scraper.Scrape(r.Context(), req)
	if err != nil {
		h.respondScrapeError(w, req.Destination, err)
		return
	}

	if result.NoneFound {
		h.respondJSON(w, http.StatusOK, ScrapeResponse{
			Error:      "No properties found on this page. Try a listing page that links to individual villas.",
			Properties: []*models.StoredProperty{},
		})
		return
	}

	h.respondJSON(w, http.StatusOK, ScrapeResponse{
		Success:    true,
		Count:      result.Count,
		Properties: result.Properties,
	})
}

func (h *Handlers) respondScrapeError(w http.ResponseWriter, destination string, err error) {
	var validation *scraper.ValidationError
	if errors.As(err, &validation) {
		h.respondError(w, http.StatusBadRequest, validation.Msg)
		return
	}

	var blocked *fetcher.BlockedError
	if errors.As(err, &blocked) {
		msg := fmt.Sprintf("%s is blocking automated access. Try one of: %s",
			blocked.Host, strings.Join(scraper.AlternativeSources(destination), ", "))
		h.respondJSON(w, http.StatusForbidden, ScrapeResponse{Error: msg, Blocked: true})
		return
	}

	var upstream *fetcher.UpstreamError
	if errors.As(err, &upstream) {
		h.respondJSON(w, http.StatusServiceUnavailable, ScrapeResponse{
			Error:       fmt.Sprintf("%s is having server problems. Try again later.", upstream.Host),
			ServerError: true,
		})
		return
	}

	var rateLimited *fetcher.RateLimitedError
	if errors.As(err, &rateLimited) {
		h.respondJSON(w, http.StatusTooManyRequests, ScrapeResponse{
			Error:       fmt.Sprintf("%s is rate limiting requests. Wait a few minutes and retry.", rateLimited.Host),
			RateLimited: true,
		})
		return
	}

	h.logger.Error("scrape failed", "error", err)
	h.respondError(w, http.StatusInternalServerError, "scrape failed")
}

// ListProperties returns catalog rows, filterable by destination and
// publication status.
func (h *Handlers) ListProperties(w http.ResponseWriter, r *http.Request) {
	filter := models.ListFilter{
		Destination: r.URL.Query().Get("destination"),
	}
	if published := r.URL.Query().Get("published"); published != "" {
		v, err := strconv.ParseBool(published)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "published must be true or false")
			return
		}
		filter.Published = &v
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			h.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	properties, err := h.catalog.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list properties", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list properties")
		return
	}
	if properties == nil {
		properties = []*models.StoredProperty{}
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(properties),
		"properties": properties,
	})
}

// GetProperty returns one catalog row by ID.
func (h *Handlers) GetProperty(w http.ResponseWriter, r *http.Request) {
	propertyID := chi.URLParam(r, "propertyID")
	if propertyID == "" {
		h.respondError(w, http.StatusBadRequest, "property ID is required")
		return
	}

	property, err := h.catalog.GetByID(r.Context(), propertyID)
	if err != nil {
		h.logger.Error("failed to get property", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get property")
		return
	}
	if property == nil {
		h.respondError(w, http.StatusNotFound, "property not found")
		return
	}

	h.respondJSON(w, http.StatusOK, property)
}

// GetDestinations returns the closed destination vocabulary.
func (h *Handlers) GetDestinations(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"destinations": scraper.Destinations,
		"fallback":     models.FallbackDestination,
	})
}

// GetStats returns catalog counts for the admin dashboard.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	byDestination, err := h.catalog.CountByDestination(r.Context())
	if err != nil {
		h.logger.Error("failed to get stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	pending, err := h.catalog.CountPendingReview(r.Context())
	if err != nil {
		h.logger.Error("failed to get stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	total := 0
	for _, n := range byDestination {
		total += n
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":          total,
		"by_destination": byDestination,
		"pending_review": pending,
	})
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
