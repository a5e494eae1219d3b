// Package ragapi is the HTTP client for the document-QA backend. The
// backend exposes three endpoints: multipart POST /ingest, JSON POST
// /query, and GET /sources.
package ragapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the default backend address.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout bounds every request. The reference behavior had no
	// timeout at all; a hung backend left the UI in-flight forever.
	DefaultTimeout = 60 * time.Second

	// DefaultSourceCacheTTL is how long a /sources listing stays fresh.
	DefaultSourceCacheTTL = 30 * time.Second

	sourceCacheKey = "sources"
)

// Client talks to the backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	log        zerolog.Logger

	sourceCache *cache.Cache
}

// Option is a function that configures the client.
type Option func(*Client)

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   baseURL,
		userAgent: "ragpanel/1.0.0",
		log:       zerolog.Nop(),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		sourceCache: cache.New(DefaultSourceCacheTTL, time.Minute),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithUserAgent sets a custom user agent.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) { c.userAgent = userAgent }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log.With().Str("component", "ragapi").Logger() }
}

// WithSourceCacheTTL sets how long /sources listings are cached.
func WithSourceCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.sourceCache = cache.New(ttl, time.Minute) }
}

// Ingest uploads a file and/or pasted text for indexing.
func (c *Client) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if len(req.File) > 0 {
		part, err := writer.CreateFormFile("file", req.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to build multipart body: %w", err)
		}
		if _, err := part.Write(req.File); err != nil {
			return nil, fmt.Errorf("failed to build multipart body: %w", err)
		}
	}
	if req.Text != "" {
		if err := writer.WriteField("text", req.Text); err != nil {
			return nil, fmt.Errorf("failed to build multipart body: %w", err)
		}
	}
	if req.SourceName != "" {
		if err := writer.WriteField("source_name", req.SourceName); err != nil {
			return nil, fmt.Errorf("failed to build multipart body: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}

	var result IngestResult
	if err := c.do(ctx, http.MethodPost, "/ingest", &body, writer.FormDataContentType(), &result); err != nil {
		return nil, err
	}

	// A fresh document invalidates the cached listing.
	c.sourceCache.Delete(sourceCacheKey)
	return &result, nil
}

// Query asks a question against the indexed documents.
func (c *Client) Query(ctx context.Context, question string) (*QueryResponse, error) {
	payload, err := json.Marshal(QueryRequest{Question: question})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	var result QueryResponse
	if err := c.do(ctx, http.MethodPost, "/query", bytes.NewReader(payload), "application/json", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListSources returns the names of previously ingested documents. Results
// are cached for the configured TTL.
func (c *Client) ListSources(ctx context.Context) (*SourceList, error) {
	if cached, ok := c.sourceCache.Get(sourceCacheKey); ok {
		return cached.(*SourceList), nil
	}

	var result SourceList
	if err := c.do(ctx, http.MethodGet, "/sources", nil, "", &result); err != nil {
		return nil, err
	}
	c.sourceCache.Set(sourceCacheKey, &result, cache.DefaultExpiration)
	return &result, nil
}

// do performs one request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Str("request_id", requestID).Str("endpoint", endpoint).Err(err).
			Msg("request failed")
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug().
		Str("request_id", requestID).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request completed")

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
