// Package openfoodfacts fetches product records from the Open Food Facts
// API and normalizes them into schema.Product, reporting each class of
// upstream failure as its own error.
package openfoodfacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	applog "nutrilab/internal/log"
	"nutrilab/internal/schema"
)

const (
	defaultBaseURL    = "https://world.openfoodfacts.org"
	defaultAPIVersion = "v3"
	defaultTimeout    = 5 * time.Second
	defaultUserAgent  = "nutrilab/1.0"
	maxBodyBytes      = 4 << 20
)

// Fetcher looks up one product by barcode.
type Fetcher interface {
	FetchProduct(ctx context.Context, barcode string) (schema.Product, error)
}

// Config describes how the Open Food Facts client should be initialised.
type Config struct {
	BaseURL    string
	APIVersion string
	UserAgent  string
	Timeout    time.Duration
	// RatePerMinute caps outbound requests. Zero disables limiting.
	RatePerMinute int
	RateBurst     int
	HTTPClient    *http.Client
}

// Client performs single-attempt product lookups against Open Food Facts.
type Client struct {
	baseURL    string
	apiVersion string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a Client, filling unset fields with defaults.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("openfoodfacts: invalid base url: %w", err)
	}

	version := strings.ToLower(strings.TrimSpace(cfg.APIVersion))
	if version == "" {
		version = defaultAPIVersion
	}
	if version != "v2" && version != "v3" {
		return nil, fmt.Errorf("openfoodfacts: unsupported api version %q", cfg.APIVersion)
	}

	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	if cfg.RatePerMinute < 0 || cfg.RateBurst < 0 {
		return nil, errors.New("openfoodfacts: rate limits must not be negative")
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerMinute > 0 {
		burst := cfg.RateBurst
		if burst == 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: version,
		userAgent:  userAgent,
		httpClient: httpClient,
		limiter:    limiter,
	}, nil
}

// FetchProduct performs one lookup. On success the returned product's
// barcode equals the requested one. Every failure matches exactly one of the
// Err* sentinels of this package.
func (c *Client) FetchProduct(ctx context.Context, barcode string) (schema.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return schema.Product{}, fmt.Errorf("%w: empty barcode", ErrProductNotFound)
	}

	statusCode, body, err := c.get(ctx, barcode)
	if err != nil {
		return schema.Product{}, err
	}

	if statusCode >= http.StatusBadRequest {
		if statusCode == http.StatusNotFound && json.Valid(body) {
			if env, err := c.decode(body); err == nil && env.Status == StatusFailure {
				applog.Debug(ctx, "openfoodfacts product not found", "barcode", barcode, "result", env.Result.ID)
				return schema.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, barcode)
			}
		}
		return schema.Product{}, &StatusError{StatusCode: statusCode}
	}

	if !json.Valid(body) {
		return schema.Product{}, ErrUpstreamMalformedResponse
	}

	env, err := c.decode(body)
	if err != nil {
		return schema.Product{}, err
	}
	applog.Debug(ctx, "openfoodfacts envelope decoded", "barcode", barcode, "envelope", env.String())

	switch env.Status {
	case StatusFailure:
		return schema.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, barcode)
	case StatusSuccessWithWarnings, StatusSuccessWithErrors:
		return schema.Product{}, &DataQualityError{
			Status:   env.Status,
			Warnings: env.Warnings,
			Errors:   env.Errors,
		}
	}

	if env.Product == nil {
		return schema.Product{}, ErrUpstreamInconsistentSuccess
	}
	if env.Code != barcode {
		return schema.Product{}, &BarcodeMismatchError{Requested: barcode, Returned: env.Code}
	}

	return mapProduct(barcode, env.Product), nil
}

func (c *Client) decode(body []byte) (envelope, error) {
	if c.apiVersion == "v2" {
		return decodeEnvelopeV2(body)
	}
	return decodeEnvelope(body)
}

func (c *Client) get(ctx context.Context, barcode string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("%w: rate limiter: %w", ErrUpstreamUnreachable, err)
	}

	endpoint := fmt.Sprintf("%s/api/%s/product/%s.json", c.baseURL, c.apiVersion, url.PathEscape(barcode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: build request: %w", ErrUpstreamUnreachable, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		applog.Warn(ctx, "openfoodfacts request failed", "barcode", barcode, "error", err)
		return 0, nil, fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read response: %w", ErrUpstreamUnreachable, err)
	}
	if len(body) > maxBodyBytes {
		applog.Warn(ctx, "openfoodfacts response too large", "barcode", barcode, "limit", maxBodyBytes)
		return 0, nil, fmt.Errorf("%w: response body exceeds %d bytes", ErrUpstreamError, maxBodyBytes)
	}

	applog.Debug(ctx, "openfoodfacts response received",
		"barcode", barcode,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(started),
	)
	return resp.StatusCode, body, nil
}
