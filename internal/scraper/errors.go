package scraper

import (
	"errors"

	"github.com/caribvillas/villa-scraper/internal/fetcher"
)

// ValidationError rejects a scrape request before any network activity.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return "validation"
	}
	var blocked *fetcher.BlockedError
	if errors.As(err, &blocked) {
		return "blocked"
	}
	var rateLimited *fetcher.RateLimitedError
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var upstream *fetcher.UpstreamError
	if errors.As(err, &upstream) {
		return "upstream"
	}
	var status *fetcher.StatusError
	if errors.As(err, &status) {
		return "fetch_failed"
	}
	return "other"
}
