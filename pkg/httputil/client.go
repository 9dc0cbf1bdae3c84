package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pasturelabs/roundup/pkg/errors"
)

const requestTimeout = 30 * time.Second

// Client is the shared HTTP layer for remote API clients. It applies default
// headers, retries transient failures, and caches GET responses.
type Client struct {
	http    *http.Client
	cache   *Cache
	headers map[string]string
}

// NewClient creates a Client with the given response cache and default
// headers. Pass nil headers if none are needed.
func NewClient(cache *Cache, headers map[string]string) *Client {
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		cache:   cache,
		headers: headers,
	}
}

// Cached returns the cached value for key or executes fetch (with retry) and
// stores its result. With refresh true the cache is bypassed.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	if !refresh && c.cache != nil {
		if ok, _ := c.cache.Get(key, v); ok {
			return nil
		}
	}
	if err := RetryWithBackoff(ctx, fetch); err != nil {
		return err
	}
	if c.cache != nil {
		_ = c.cache.Set(key, v)
	}
	return nil
}

// Get performs a GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.do(ctx, http.MethodGet, url, nil, v)
}

// Post performs a POST request with a JSON body, decoding the response into
// v when v is non-nil.
func (c *Client) Post(ctx context.Context, url string, body, v any) error {
	return c.do(ctx, http.MethodPost, url, body, v)
}

// Patch performs a PATCH request with a JSON body, decoding the response
// into v when v is non-nil.
func (c *Client) Patch(ctx context.Context, url string, body, v any) error {
	return c.do(ctx, http.MethodPatch, url, body, v)
}

// Delete performs a DELETE request, discarding any response body.
func (c *Client) Delete(ctx context.Context, url string) error {
	return c.do(ctx, http.MethodDelete, url, nil, nil)
}

func (c *Client) do(ctx context.Context, method, url string, body, v any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	for k, val := range c.headers {
		req.Header.Set(k, val)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "%s %s", method, url)}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode, method, url); err != nil {
		return err
	}
	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func checkStatus(code int, method, url string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "%s %s: not found", method, url)
	case code >= 500:
		return &RetryableError{Err: errors.New(errors.ErrCodeNetwork, "%s %s: status %d", method, url, code)}
	default:
		return errors.New(errors.ErrCodeNetwork, "%s %s: status %d", method, url, code)
	}
}
