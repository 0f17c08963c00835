package cdx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultCatalogURL is the Common Crawl index discovery endpoint.
const DefaultCatalogURL = "https://index.commoncrawl.org/collinfo.json"

const (
	defaultTimeout   = 180 * time.Second
	defaultUserAgent = "scdx/1.0"
	maxErrorBody     = 512
)

// ClientConfig captures the HTTP settings shared by catalog and record queries.
type ClientConfig struct {
	CatalogURL string
	UserAgent  string
	Timeout    time.Duration
}

// Client talks to the index discovery endpoint and the per-crawl CDX APIs.
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	logger     *zap.Logger
}

// NewClient creates a Client. Zero-valued config fields fall back to defaults.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.CatalogURL == "" {
		cfg.CatalogURL = DefaultCatalogURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
	}
}

// Catalog fetches the list of known crawls in the order the index publishes
// them. Any failure is final; the catalog is never retried.
func (c *Client) Catalog(ctx context.Context) ([]Crawl, error) {
	resp, err := c.get(ctx, c.cfg.CatalogURL)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %d %s", ErrCatalogStatus, resp.StatusCode, string(body))
	}

	var crawls []Crawl
	if err := json.NewDecoder(resp.Body).Decode(&crawls); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogFormat, err)
	}
	for i, crawl := range crawls {
		if crawl.ID == "" || crawl.CDXAPI == "" {
			return nil, fmt.Errorf("%w: entry %d lacks id or cdx-api", ErrCatalogFormat, i)
		}
	}
	c.logger.Debug("catalog fetched", zap.Int("crawls", len(crawls)))
	return crawls, nil
}

// Query issues the domain query against one crawl's CDX API. Any HTTP status
// is returned to the caller; only transport failures produce an error.
func (c *Client) Query(ctx context.Context, crawl Crawl, domain string) (*QueryResponse, error) {
	queryURL := BuildQueryURL(crawl.CDXAPI, domain)
	start := time.Now()
	resp, err := c.get(ctx, queryURL)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", crawl.ID, err)
	}
	c.logger.Debug("cdx query answered",
		zap.String("crawl", crawl.ID),
		zap.String("url", queryURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	return &QueryResponse{
		URL:        queryURL,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
