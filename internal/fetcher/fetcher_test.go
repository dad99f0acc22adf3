package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	hc := &http.Client{Transport: transport}
	return NewWithHTTPClient(hc, slog.Default()), transport
}

func TestFetchSuccess(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder("GET", "https://example.com/villas/",
		httpmock.NewStringResponder(200, "<html><body>ok</body></html>"))

	page, err := client.Fetch(context.Background(), "https://example.com/villas/")
	require.NoError(t, err)
	assert.Equal(t, 200, page.StatusCode)
	assert.Contains(t, page.HTML, "ok")
	assert.Equal(t, "example.com", page.URL.Hostname())
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	client, transport := newTestClient(t)
	var gotUA, gotAccept string
	transport.RegisterResponder("GET", "https://example.com/",
		func(req *http.Request) (*http.Response, error) {
			gotUA = req.Header.Get("User-Agent")
			gotAccept = req.Header.Get("Accept-Language")
			return httpmock.NewStringResponse(200, "<html></html>"), nil
		})

	_, err := client.Fetch(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Contains(t, gotUA, "Chrome")
	assert.Equal(t, "en-US,en;q=0.9", gotAccept)
}

func TestFetchErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "403 is blocked",
			status: 403,
			body:   "Forbidden",
			check: func(t *testing.T, err error) {
				var blocked *BlockedError
				require.ErrorAs(t, err, &blocked)
				assert.Equal(t, "example.com", blocked.Host)
			},
		},
		{
			name:   "challenge page body is blocked regardless of status",
			status: 503,
			body:   "<html><title>Just a moment...</title></html>",
			check: func(t *testing.T, err error) {
				var blocked *BlockedError
				assert.ErrorAs(t, err, &blocked)
			},
		},
		{
			name:   "429 is rate limited",
			status: 429,
			body:   "Too Many Requests",
			check: func(t *testing.T, err error) {
				var limited *RateLimitedError
				assert.ErrorAs(t, err, &limited)
			},
		},
		{
			name:   "error page body wins over 429 status",
			status: 429,
			body:   "Internal Server Error",
			check: func(t *testing.T, err error) {
				var upstream *UpstreamError
				require.ErrorAs(t, err, &upstream)
				assert.Equal(t, 429, upstream.Status)
			},
		},
		{
			name:   "500 is upstream error",
			status: 500,
			body:   "boom",
			check: func(t *testing.T, err error) {
				var upstream *UpstreamError
				require.ErrorAs(t, err, &upstream)
				assert.Equal(t, 500, upstream.Status)
			},
		},
		{
			name:   "error page body is upstream error",
			status: 502,
			body:   "502 Bad Gateway",
			check: func(t *testing.T, err error) {
				var upstream *UpstreamError
				assert.ErrorAs(t, err, &upstream)
			},
		},
		{
			name:   "other statuses fall through to status error",
			status: 404,
			body:   "Not Found",
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, 404, statusErr.Status)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, transport := newTestClient(t)
			transport.RegisterResponder("GET", "https://example.com/villas/",
				httpmock.NewStringResponder(tt.status, tt.body))

			page, err := client.Fetch(context.Background(), "https://example.com/villas/")
			assert.Nil(t, page)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestFetchTransportError(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder("GET", "https://example.com/",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	page, err := client.Fetch(context.Background(), "https://example.com/")
	assert.Nil(t, page)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}
