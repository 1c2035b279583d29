package cnb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the CNB exchange rate fixing root
const DefaultBaseURL = "https://www.cnb.cz/en/financial_markets/foreign_exchange_market/exchange_rate_fixing/"

const (
	yearlyPath = "year.txt"
	dailyPath  = "daily.txt"

	userAgent = "cnbrates/1.0"

	// maxBodySize caps feed bodies; a full yearly feed is well under 1MB
	maxBodySize = 8 << 20
)

// ErrNetwork is returned when the upstream GET fails or returns a non-2xx status
var ErrNetwork = errors.New("unable to fetch feed")

// Client fetches the raw CNB text feeds
type Client struct {
	client  *http.Client
	baseURL *url.URL
}

// NewClient creates a new CNB feed client
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse base URL: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q is not absolute", baseURL)
	}

	return &Client{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: u,
	}, nil
}

// FetchYearly fetches the bulk feed for the given 4-digit year
func (c *Client) FetchYearly(ctx context.Context, year string) (string, error) {
	return c.get(ctx, yearlyPath, url.Values{"year": {year}})
}

// FetchDaily fetches the single-date feed. The date is in YYYY-MM-DD form
func (c *Client) FetchDaily(ctx context.Context, date string) (string, error) {
	feedDate, err := FormatFeedDate(date)
	if err != nil {
		return "", err
	}

	return c.get(ctx, dailyPath, url.Values{"date": {feedDate}})
}

// get performs the GET and returns the body as text
func (c *Client) get(ctx context.Context, path string, query url.Values) (string, error) {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = query.Encode()

	// Prepare the request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("unable to create new GET request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/plain")

	// Execute the request
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: unable to execute GET request: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: invalid status code received: %d", ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("%w: unable to read response body: %w", ErrNetwork, err)
	}

	return string(body), nil
}
