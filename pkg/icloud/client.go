package icloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"icloudalbum/pkg/config"
	errs "icloudalbum/pkg/errors"
	"icloudalbum/pkg/logger"
	"icloudalbum/pkg/media"
	"icloudalbum/pkg/retry"
)

// DefaultUserAgent is sent when Options.UserAgent is empty
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"

// maxBodyPreview bounds how much of an error body is kept on a StatusError
const maxBodyPreview = 512

// Options configures a Client
type Options struct {
	Host      string
	UserAgent string
	Timeout   time.Duration
	// LenientTokens maps unresolvable tokens to LenientPartition instead of failing
	LenientTokens bool
	Policy        retry.Policy
	Markers       media.Markers
	Logger        logger.Logger
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		Host:      DefaultHost,
		UserAgent: DefaultUserAgent,
		Timeout:   30 * time.Second,
		Policy:    retry.DefaultPolicy(),
		Markers:   media.DefaultMarkers(),
	}
}

// Client talks to the shared streams service. It holds no per-album state,
// so one Client may serve concurrent fetches.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	host       string
	lenient    bool
	policy     retry.Policy
	markers    media.Markers
	logger     logger.Logger
	// sleep overrides the wait between retries
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new shared streams client
func NewClient(opts Options) *Client {
	log := logger.OrDefault(opts.Logger)

	defaults := DefaultOptions()
	if opts.Host == "" {
		opts.Host = defaults.Host
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.Policy.Strategy == "" {
		opts.Policy = defaults.Policy
	}
	if len(opts.Markers.Substrings) == 0 && len(opts.Markers.ReservedKeys) == 0 {
		opts.Markers = defaults.Markers
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		headers: map[string]string{
			"User-Agent":      opts.UserAgent,
			"Accept":          "application/json, text/plain, */*",
			"Accept-Language": "en-US,en;q=0.9",
			"Origin":          "https://www.icloud.com",
			"Cache-Control":   "no-cache",
		},
		host:    opts.Host,
		lenient: opts.LenientTokens,
		policy:  opts.Policy,
		markers: opts.Markers,
		logger:  log.WithField("component", "icloud"),
	}
}

// NewClientFromConfig builds a Client from the loaded configuration
func NewClientFromConfig(cfg *config.Config, log logger.Logger) (*Client, error) {
	policy, err := retry.PolicyFromConfig(cfg.Retry)
	if err != nil {
		return nil, err
	}
	return NewClient(Options{
		Host:          cfg.Service.Host,
		UserAgent:     cfg.Service.UserAgent,
		Timeout:       cfg.Service.Timeout,
		LenientTokens: cfg.Service.LenientTokens,
		Policy:        policy,
		Markers:       media.MarkersFromConfig(cfg.Selection),
		Logger:        log,
	}), nil
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// ResolveBaseURL resolves token to its partition URL on the client's host
func (c *Client) ResolveBaseURL(token string) (string, error) {
	return resolvePartitionURL(c.host, token, c.lenient)
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, float64(duration.Microseconds())/1000)
	return resp, nil
}

// exchange is one completed request with its body fully read
type exchange struct {
	status int
	body   []byte
}

// postJSON sends payload as JSON and reads the whole response
func (c *Client) postJSON(ctx context.Context, url string, payload interface{}) (*exchange, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.send(req)
}

// get fetches url and reads the whole response
func (c *Client) get(ctx context.Context, url string) (*exchange, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.send(req)
}

func (c *Client) send(req *http.Request) (*exchange, error) {
	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.TransportError{
			Method: req.Method,
			URL:    req.URL.String(),
			Err:    fmt.Errorf("failed to read response body: %w", err),
		}
	}
	return &exchange{status: resp.StatusCode, body: body}, nil
}

// checkStatus converts any non-2xx response into a StatusError
func checkStatus(url string, ex *exchange) error {
	if ex.status >= 200 && ex.status < 300 {
		return nil
	}
	preview := string(ex.body)
	if len(preview) > maxBodyPreview {
		preview = preview[:maxBodyPreview] + "..."
	}
	return &errs.StatusError{Code: ex.status, URL: url, Body: preview}
}

// retryConfig is the per-call retry setup shared by every endpoint
func (c *Client) retryConfig(name string, log logger.Logger) retry.Config {
	return retry.Config{
		Policy: c.policy,
		Name:   name,
		Sleep:  c.sleep,
		Logger: log,
	}
}
