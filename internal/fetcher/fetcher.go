package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Listing sites that block obvious non-browser clients usually let a request
// with these markers through.
var browserHeaders = map[string]string{
	"User-Agent":      userAgent,
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Cache-Control":   "no-cache",
}

var blockedMarkers = []string{
	"just a moment",
	"cf-browser-verification",
	"attention required",
	"captcha",
	"access denied",
}

var serverErrorMarkers = []string{
	"internal server error",
	"502 bad gateway",
	"503 service unavailable",
}

// Page is a successfully fetched HTML document.
type Page struct {
	HTML       string
	URL        *url.URL // final URL after redirects
	StatusCode int
}

// Client fetches third-party listing pages. It performs no retries; retry
// policy, if any, belongs to the caller.
type Client struct {
	http   *http.Client
	logger *slog.Logger
}

func New(timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		logger: logger.With("component", "fetcher"),
	}
}

// NewWithHTTPClient allows tests to swap the underlying transport.
func NewWithHTTPClient(hc *http.Client, logger *slog.Logger) *Client {
	return &Client{http: hc, logger: logger.With("component", "fetcher")}
}

// Fetch issues a GET against rawURL and classifies the outcome. A non-2xx
// response is returned as one of BlockedError, RateLimitedError,
// UpstreamError or StatusError.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Post-redirect URL when the transport reports it.
	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}
	host := finalURL.Hostname()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		lower := strings.ToLower(string(body))

		if resp.StatusCode == http.StatusForbidden || containsAny(lower, blockedMarkers) {
			c.logger.Warn("fetch blocked", "url", rawURL, "status", resp.StatusCode)
			return nil, &BlockedError{Host: host}
		}
		if resp.StatusCode == http.StatusInternalServerError || containsAny(lower, serverErrorMarkers) {
			c.logger.Warn("upstream server error", "url", rawURL, "status", resp.StatusCode)
			return nil, &UpstreamError{Host: host, Status: resp.StatusCode}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			c.logger.Warn("fetch rate limited", "url", rawURL)
			return nil, &RateLimitedError{Host: host}
		}

		c.logger.Warn("fetch failed", "url", rawURL, "status", resp.StatusCode)
		return nil, &StatusError{Status: resp.StatusCode}
	}

	return &Page{
		HTML:       string(body),
		URL:        finalURL,
		StatusCode: resp.StatusCode,
	}, nil
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
