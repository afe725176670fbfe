package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Hossein925/f-maharat/internal/blob"

	"github.com/go-resty/resty/v2"
)

// ErrNotFound is returned by a Fetcher when the locator resolves to nothing.
var ErrNotFound = errors.New("attachment not found")

// Fetcher reads attachment bytes by public locator.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) (contentType string, data []byte, err error)
}

// HTTPFetcher downloads locators over HTTP. Transport errors and 5xx
// responses are retried.
type HTTPFetcher struct {
	client *resty.Client
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*resty.Client)

// WithRetryWait sets the wait between retries.
func WithRetryWait(wait, maxWait time.Duration) HTTPOption {
	return func(c *resty.Client) {
		c.SetRetryWaitTime(wait).SetRetryMaxWaitTime(maxWait)
	}
}

// NewHTTPFetcher creates a fetcher with the given overall request timeout.
func NewHTTPFetcher(timeout time.Duration, opts ...HTTPOption) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	for _, opt := range opts {
		opt(client)
	}
	return &HTTPFetcher{client: client}
}

// Fetch GETs locator.
func (f *HTTPFetcher) Fetch(ctx context.Context, locator string) (string, []byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(locator)
	if err != nil {
		return "", nil, fmt.Errorf("fetch %s: %w", locator, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return "", nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	case resp.IsError():
		return "", nil, fmt.Errorf("fetch %s: status %d", locator, resp.StatusCode())
	}
	return resp.Header().Get("Content-Type"), resp.Body(), nil
}

// StoreFetcher reads locators straight from the blob store that issued them.
type StoreFetcher struct {
	store blob.Store
}

// NewStoreFetcher creates a fetcher over store.
func NewStoreFetcher(store blob.Store) *StoreFetcher {
	return &StoreFetcher{store: store}
}

// Fetch maps locator back to its key and reads the object.
func (f *StoreFetcher) Fetch(ctx context.Context, locator string) (string, []byte, error) {
	key, ok := blob.KeyFromURL(f.store, locator)
	if !ok {
		return "", nil, fmt.Errorf("%w: %s is not served by this store", ErrNotFound, locator)
	}
	info, rc, err := f.store.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		return "", nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	if err != nil {
		return "", nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", key, err)
	}
	return info.ContentType, data, nil
}
