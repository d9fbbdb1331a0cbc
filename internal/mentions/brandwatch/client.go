// Package brandwatch provides a client for the Brandwatch consumer research
// mentions API.
package brandwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mentionexport/mentionexport/internal/mentions"
	"github.com/mentionexport/mentionexport/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the Brandwatch API.
	DefaultBaseURL = "https://api.brandwatch.com"

	// ProviderName identifies this provider.
	ProviderName = "brandwatch"

	// errorBodyLimit caps how much of an error response is kept for the message.
	errorBodyLimit = 512
)

// ClientConfig holds configuration for the Brandwatch client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// ProjectID is the Brandwatch project that owns the queries.
	ProjectID string

	// Token is the API bearer token.
	Token string

	// HTTPClient is the HTTP client to use.
	// If nil, a resilient client is created and registered with Registry.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 30s).
	Timeout time.Duration

	// Registry tracks the health of the default client. Optional.
	Registry *resilience.Registry

	// Metrics records calls made by the default client. Optional.
	Metrics *resilience.Metrics
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned when the API answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d from mentions endpoint", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d from mentions endpoint: %s", e.StatusCode, e.Body)
}

// Client is a Brandwatch API client.
type Client struct {
	baseURL    string
	projectID  string
	token      string
	httpClient HTTPDoer
}

var _ mentions.Source = (*Client)(nil)

// NewClient creates a new Brandwatch client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
			Registry:        cfg.Registry,
			Metrics:         cfg.Metrics,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		projectID:  cfg.ProjectID,
		token:      cfg.Token,
		httpClient: httpClient,
	}
}

type mentionsResponse struct {
	ResultsPage  int               `json:"resultsPage"`
	ResultsTotal int               `json:"resultsTotal"`
	Results      []json.RawMessage `json:"results"`
	NextCursor   string            `json:"nextCursor"`
}

// Pages walks the cursor-paginated mentions endpoint. Iteration ends when the
// API returns no cursor or repeats one it already returned.
func (c *Client) Pages(ctx context.Context, q mentions.Query) iter.Seq2[mentions.Page, error] {
	return func(yield func(mentions.Page, error) bool) {
		seen := make(map[string]struct{})
		cursor := ""

		for n := 1; ; n++ {
			result, err := c.fetchPage(ctx, q, cursor)
			if err != nil {
				yield(nil, fmt.Errorf("fetch mentions page %d: %w", n, err))
				return
			}

			page := make(mentions.Page, len(result.Results))
			for i, r := range result.Results {
				page[i] = mentions.Record(r)
			}
			if !yield(page, nil) {
				return
			}

			next := result.NextCursor
			if next == "" {
				return
			}
			if _, dup := seen[next]; dup {
				return
			}
			seen[next] = struct{}{}
			cursor = next
		}
	}
}

// fetchPage fetches a single page of mentions.
func (c *Client) fetchPage(ctx context.Context, q mentions.Query, cursor string) (*mentionsResponse, error) {
	params := url.Values{}
	params.Set("queryName", q.Name)
	params.Set("startDate", q.Start)
	params.Set("endDate", q.End)
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	endpoint := fmt.Sprintf("%s/projects/%s/data/mentions?%s",
		c.baseURL, url.PathEscape(c.projectID), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var result mentionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode mentions response: %w", err)
	}

	return &result, nil
}
