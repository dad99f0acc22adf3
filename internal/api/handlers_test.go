package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caribvillas/villa-scraper/internal/fetcher"
	"github.com/caribvillas/villa-scraper/internal/models"
	"github.com/caribvillas/villa-scraper/internal/ratelimit"
	"github.com/caribvillas/villa-scraper/internal/scraper"
	"github.com/caribvillas/villa-scraper/internal/storage"
)

func newTestRouter(t *testing.T) (chi.Router, *storage.MemoryStore, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	fc := fetcher.NewWithHTTPClient(&http.Client{Transport: transport}, slog.Default())

	store, err := storage.NewMemoryStore("")
	require.NoError(t, err)

	svc := scraper.NewService(fc, store, nil, ratelimit.NewPolitenessLimiter(0, 0), nil, slog.Default())
	handlers := NewHandlers(svc, store, slog.Default())

	r := chi.NewRouter()
	r.Post("/api/v1/scrape", handlers.Scrape)
	r.Get("/api/v1/properties", handlers.ListProperties)
	r.Get("/api/v1/properties/{propertyID}", handlers.GetProperty)
	r.Get("/api/v1/destinations", handlers.GetDestinations)
	r.Get("/api/v1/stats", handlers.GetStats)
	return r, store, transport
}

func seedProperty(t *testing.T, store *storage.MemoryStore, name, location, sourceURL string) *models.StoredProperty {
	t.Helper()
	p := models.NewProperty(sourceURL)
	p.Name = name
	p.Location = location
	stored, err := store.Insert(context.Background(), p)
	require.NoError(t, err)
	return stored
}

func doRequest(t *testing.T, router chi.Router, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestScrapeEndpointSuccess(t *testing.T) {
	router, store, transport := newTestRouter(t)
	transport.RegisterResponder("GET", "https://example.com/properties/coral-house/",
		httpmock.NewStringResponder(200, `<html><body><div class="property-detail">
			<h1 class="property-title">Coral House</h1>
			<div class="property-price">$1,500 /night</div>
		</div></body></html>`))

	rec := doRequest(t, router, http.MethodPost, "/api/v1/scrape",
		`{"url": "https://example.com/properties/coral-house/", "destination": "Barbados"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Properties, 1)
	assert.Equal(t, "Coral House", resp.Properties[0].Name)
	assert.Equal(t, 1, store.Len())
}

func TestScrapeEndpointInvalidBody(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doRequest(t, router, http.MethodPost, "/api/v1/scrape", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeEndpointValidationError(t *testing.T) {
	router, _, transport := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/scrape",
		`{"url": "https://example.comhttps://other.com/", "destination": "Barbados"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, transport.GetTotalCallCount())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "corrupted")
}

func TestScrapeEndpointBlocked(t *testing.T) {
	router, _, transport := newTestRouter(t)
	transport.RegisterResponder("GET", "https://example.com/villas/",
		httpmock.NewStringResponder(403, "Forbidden"))

	rec := doRequest(t, router, http.MethodPost, "/api/v1/scrape",
		`{"url": "https://example.com/villas/", "destination": "Jamaica"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Blocked)
	assert.False(t, resp.Success)
	// Blocked responses suggest alternative sources for the destination.
	assert.Contains(t, resp.Error, "jamaicavillas.com")
}

func TestScrapeEndpointUpstreamError(t *testing.T) {
	router, _, transport := newTestRouter(t)
	transport.RegisterResponder("GET", "https://example.com/villas/",
		httpmock.NewStringResponder(500, "boom"))

	rec := doRequest(t, router, http.MethodPost, "/api/v1/scrape",
		`{"url": "https://example.com/villas/", "destination": "Barbados"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.ServerError)
}

func TestScrapeEndpointRateLimited(t *testing.T) {
	router, _, transport := newTestRouter(t)
	transport.RegisterResponder("GET", "https://example.com/villas/",
		httpmock.NewStringResponder(429, "slow down"))

	rec := doRequest(t, router, http.MethodPost, "/api/v1/scrape",
		`{"url": "https://example.com/villas/", "destination": "Barbados"}`)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.RateLimited)
}

func TestScrapeEndpointNoneFound(t *testing.T) {
	router, _, transport := newTestRouter(t)
	transport.RegisterResponder("GET", "https://example.com/villas/",
		httpmock.NewStringResponder(200, `<html><body><h1>Coming soon</h1></body></html>`))

	rec := doRequest(t, router, http.MethodPost, "/api/v1/scrape",
		`{"url": "https://example.com/villas/", "destination": "Barbados"}`)

	// An empty page is not a failure; the UI shows the guidance message.
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, 0, resp.Count)
	assert.Contains(t, resp.Error, "No properties found")

	// The properties key must be present as an empty array, not dropped;
	// the admin UI iterates it unconditionally.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Contains(t, raw, "properties")
	assert.JSONEq(t, `[]`, string(raw["properties"]))
	require.Contains(t, raw, "count")
	assert.Equal(t, "0", string(raw["count"]))
}

func TestListProperties(t *testing.T) {
	router, store, _ := newTestRouter(t)
	seedProperty(t, store, "Villa A", "Barbados", "https://example.com/a/")
	seedProperty(t, store, "Villa B", "Jamaica", "https://example.com/b/")

	rec := doRequest(t, router, http.MethodGet, "/api/v1/properties?destination=Jamaica", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count      int                      `json:"count"`
		Properties []*models.StoredProperty `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Properties, 1)
	assert.Equal(t, "Villa B", resp.Properties[0].Name)
}

func TestListPropertiesBadQuery(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/properties?published=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/properties?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProperty(t *testing.T) {
	router, store, _ := newTestRouter(t)
	stored := seedProperty(t, store, "Villa A", "Barbados", "https://example.com/a/")

	rec := doRequest(t, router, http.MethodGet, "/api/v1/properties/"+stored.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.StoredProperty
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, stored.ID, resp.ID)
	assert.Equal(t, "Villa A", resp.Name)
}

func TestGetPropertyNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/api/v1/properties/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDestinations(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/api/v1/destinations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Destinations []string `json:"destinations"`
		Fallback     string   `json:"fallback"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Destinations, "Barbados")
	assert.Equal(t, "Caribbean", resp.Fallback)
}

func TestGetStats(t *testing.T) {
	router, store, _ := newTestRouter(t)
	seedProperty(t, store, "Villa A", "Barbados", "https://example.com/a/")
	seedProperty(t, store, "Villa B", "Barbados", "https://example.com/b/")
	seedProperty(t, store, "Villa C", "Jamaica", "https://example.com/c/")

	rec := doRequest(t, router, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total         int            `json:"total"`
		ByDestination map[string]int `json:"by_destination"`
		PendingReview int            `json:"pending_review"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.ByDestination["Barbados"])
	assert.Equal(t, 3, resp.PendingReview)
}
