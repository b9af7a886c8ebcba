package opendata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/nyc-housing-linkage/internal/config"
	"github.com/nyc-housing-linkage/internal/debug"
)

const (
	defaultBaseURL  = "https://data.cityofnewyork.us/resource"
	defaultTimeout  = 30 * time.Second
	defaultSleep    = 100 * time.Millisecond
	defaultPageSize = 1000
	defaultMaxRows  = 50000
)

// Config holds the connection settings for the NYC Open Data API.
type Config struct {
	BaseURL  string
	AppToken string
	Timeout  time.Duration
	// Sleep is applied after every successful request to stay under
	// the unauthenticated rate limit.
	Sleep time.Duration
	// MaxRecords caps how many rows FetchAll will page through.
	MaxRecords int
	PageSize   int
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to defaults suitable for anonymous access.
func ConfigFromEnv() Config {
	return Config{
		BaseURL:    config.GetEnv("OPENDATA_BASE_URL", defaultBaseURL),
		AppToken:   config.GetEnv("OPENDATA_APP_TOKEN", ""),
		Timeout:    config.GetEnvDuration("OPENDATA_TIMEOUT", defaultTimeout),
		Sleep:      config.GetEnvDuration("OPENDATA_SLEEP", defaultSleep),
		MaxRecords: config.GetEnvInt("OPENDATA_MAX_RECORDS", defaultMaxRows),
		PageSize:   config.GetEnvInt("OPENDATA_PAGE_SIZE", defaultPageSize),
	}
}

// Stats is a snapshot of request activity since the client was created.
type Stats struct {
	Calls  int
	Errors int
}

// Client queries NYC Open Data (Socrata) resources. A dataset is addressed
// by its resource identifier, e.g. "ic3t-wcy2". Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu     sync.Mutex
	calls  int
	errors int
}

// NewClient creates a client with the given configuration, filling in
// defaults for any zero-valued field.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = defaultMaxRows
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Stats returns the call and error counts accumulated so far.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Calls: c.calls, Errors: c.errors}
}

func (c *Client) recordCall(failed bool) {
	c.mu.Lock()
	c.calls++
	if failed {
		c.errors++
	}
	c.mu.Unlock()
}

// Query runs a single filtered request against a dataset and decodes the
// JSON response into dest, which must be a pointer to a slice of row structs.
func (c *Client) Query(ctx context.Context, localDebug bool, dataset, where string, limit int, dest interface{}) error {
	params := url.Values{}
	if where != "" {
		params.Set("$where", where)
	}
	if limit > 0 {
		params.Set("$limit", strconv.Itoa(limit))
	}
	return c.get(ctx, localDebug, dataset, params, dest)
}

// FetchAll pages through an entire dataset in a stable order, invoking
// handle with the raw JSON of each page. handle reports how many rows the
// page contained; a short page ends the scan. The scan also stops at the
// configured MaxRecords cap.
func (c *Client) FetchAll(ctx context.Context, localDebug bool, dataset, order string, handle func(page json.RawMessage) (int, error)) error {
	debug.Header(localDebug)
	defer debug.Footer(localDebug)
	debug.Output(localDebug, "FetchAll dataset=%s order=%s pageSize=%d", dataset, order, c.cfg.PageSize)

	offset := 0
	for offset < c.cfg.MaxRecords {
		params := url.Values{}
		params.Set("$limit", strconv.Itoa(c.cfg.PageSize))
		params.Set("$offset", strconv.Itoa(offset))
		if order != "" {
			params.Set("$order", order)
		}

		var page json.RawMessage
		if err := c.get(ctx, localDebug, dataset, params, &page); err != nil {
			return fmt.Errorf("page at offset %d: %w", offset, err)
		}

		n, err := handle(page)
		if err != nil {
			return fmt.Errorf("page at offset %d: %w", offset, err)
		}
		debug.Output(localDebug, "fetched %d rows at offset %d", n, offset)
		if n < c.cfg.PageSize {
			break
		}
		offset += n
	}
	return nil
}

func (c *Client) get(ctx context.Context, localDebug bool, dataset string, params url.Values, dest interface{}) error {
	endpoint := fmt.Sprintf("%s/%s.json", c.cfg.BaseURL, dataset)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.recordCall(true)
		return fmt.Errorf("failed to build request for %s: %w", dataset, err)
	}
	if c.cfg.AppToken != "" {
		req.Header.Set("X-App-Token", c.cfg.AppToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordCall(true)
		return fmt.Errorf("request to %s failed: %w", dataset, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordCall(true)
		return fmt.Errorf("failed to read response from %s: %w", dataset, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.recordCall(true)
		return fmt.Errorf("dataset %s returned status %d: %s", dataset, resp.StatusCode, debug.Truncate(string(body), 200))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		c.recordCall(true)
		return fmt.Errorf("failed to decode response from %s: %w", dataset, err)
	}

	c.recordCall(false)
	debug.Output(localDebug, "GET %s ok (%d bytes)", dataset, len(body))

	if c.cfg.Sleep > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.Sleep):
		}
	}
	return nil
}
