package fetcher

import "fmt"

// BlockedError indicates the upstream site served an anti-bot challenge or a
// hard 403. Terminal for the URL; retrying from the same client will not help.
type BlockedError struct {
	Host string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked by anti-bot protection on %s", e.Host)
}

// RateLimitedError indicates the upstream returned HTTP 429.
type RateLimitedError struct {
	Host string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by %s", e.Host)
}

// UpstreamError indicates the upstream site itself is failing (HTTP 500 or an
// error page body). Transient from the caller's point of view.
type UpstreamError struct {
	Host   string
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream server error from %s (status %d)", e.Host, e.Status)
}

// StatusError covers any other non-2xx response.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch failed with status %d", e.Status)
}
