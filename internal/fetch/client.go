// Package fetch downloads remote asset references over HTTP, with a per-request
// timeout, a payload size cap and an optional shared cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"vrewexport/internal/cache"
	"vrewexport/internal/metrics"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxBytes  = 200 << 20
	defaultUserAgent = "Mozilla/5.0 (compatible; vrewexport/1.0)"
)

// ErrTooLarge is returned when a payload exceeds the configured cap.
var ErrTooLarge = errors.New("fetch: payload exceeds size limit")

// StatusError carries a non-2xx response.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d from %s: %s", e.Status, e.URL, e.Body)
}

// Options configure a Client. Zero values select defaults.
type Options struct {
	Timeout       time.Duration
	MaxBytes      int64
	UserAgent     string
	Cache         cache.Cache
	MaxCacheEntry int64
	Logger        logrus.FieldLogger
}

type Client struct {
	HTTPClient    *http.Client
	UserAgent     string
	MaxBytes      int64
	Cache         cache.Cache
	MaxCacheEntry int64
	log           logrus.FieldLogger
}

func NewClientDefault() *Client {
	return NewClient(Options{})
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Client{
		HTTPClient:    &http.Client{Timeout: opts.Timeout},
		UserAgent:     opts.UserAgent,
		MaxBytes:      opts.MaxBytes,
		Cache:         opts.Cache,
		MaxCacheEntry: opts.MaxCacheEntry,
		log:           opts.Logger,
	}
}

// Get returns the body of url, serving it from the cache when present.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if data, ok := c.Cache.Get(ctx, url); ok {
		metrics.FetchCache("hit")
		return data, nil
	}
	metrics.FetchCache("miss")

	data, err := c.download(ctx, url)
	if err != nil {
		return nil, err
	}
	if c.MaxCacheEntry <= 0 || int64(len(data)) <= c.MaxCacheEntry {
		c.Cache.Set(ctx, url, data)
	}
	return data, nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)

	start := time.Now()
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, &StatusError{URL: url, Status: res.StatusCode, Body: string(excerpt)}
	}
	if res.ContentLength > c.MaxBytes {
		return nil, ErrTooLarge
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, c.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.MaxBytes {
		return nil, ErrTooLarge
	}
	c.log.WithFields(logrus.Fields{
		"url":     url,
		"bytes":   len(body),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Debug("fetched remote asset")
	return body, nil
}
