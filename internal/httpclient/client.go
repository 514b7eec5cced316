package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/skuforge/skuforge/internal/models"
)

// Maximum response body size accepted from a remote source (32 MB).
// Supplier price lists are spreadsheets; anything bigger is a bad URL.
const maxBodySize = 32 << 20

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// Fetcher downloads remote documents with a shared rate limit so that
// concurrent workers hitting the same host (Google Sheets export, supplier
// web servers) do not trip remote throttling.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewFetcher creates a Fetcher allowing rps requests per second with the
// given burst. rps <= 0 disables rate limiting.
func NewFetcher(timeout time.Duration, rps float64, burst int) *Fetcher {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Fetcher{
		client:  NewDefaultHTTPClient(timeout),
		limiter: limiter,
	}
}

// Get downloads the document at url and returns the body. Network and
// HTTP-level failures come back as parser errors so the task is retried.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, models.NewValidationError("invalid source url", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, models.NewParserError("failed to fetch source", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, models.NewParserError(
			fmt.Sprintf("source returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, models.NewParserError("failed to read source body", err)
	}
	if len(body) > maxBodySize {
		return nil, models.NewParserError("source body exceeds size limit", nil)
	}
	return body, nil
}
