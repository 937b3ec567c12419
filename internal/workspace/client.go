package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/yaserfarook1/SentinalLens/internal/models"
)

// ClientOptions configures the HTTP workspace client.
type ClientOptions struct {
	BaseURL string
	Token   string
	// Timeout applies per request, not per audit.
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing calls. Zero means no limit.
	RequestsPerSecond int
}

// Client talks to the workspace management API over HTTP. All calls are
// throttled through a shared limiter so concurrent audit runs stay within the
// remote quota.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// RemoteError is a non-2xx response from the workspace API. Responses with
// 5xx or 429 status are transient and safe to retry.
type RemoteError struct {
	StatusCode int
	Endpoint   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("workspace API %s returned status %d", e.Endpoint, e.StatusCode)
}

// Transient reports whether retrying the call may succeed.
func (e *RemoteError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// NewClient validates the options and returns a ready client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("workspace base URL is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid workspace base URL: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.RequestsPerSecond)
	}

	return &Client{
		baseURL: opts.BaseURL,
		token:   opts.Token,
		httpc:   &http.Client{Timeout: timeout},
		limiter: limiter,
		timeout: timeout,
	}, nil
}

type tableDTO struct {
	Name          string `json:"name"`
	Tier          string `json:"tier"`
	RetentionDays int    `json:"retention_days"`
}

type querySourceDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Query string `json:"query"`
}

type workbookDTO struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Queries []string `json:"queries"`
}

type connectorDTO struct {
	Name   string   `json:"name"`
	Tables []string `json:"tables"`
}

func (c *Client) ListTables(ctx context.Context, workspaceID string) ([]models.TableFact, error) {
	var resp struct {
		Tables []tableDTO `json:"tables"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/workspaces/%s/tables", url.PathEscape(workspaceID)), nil, &resp); err != nil {
		return nil, err
	}

	tables := make([]models.TableFact, 0, len(resp.Tables))
	for _, t := range resp.Tables {
		tables = append(tables, models.TableFact{
			Name:          t.Name,
			CurrentTier:   models.Tier(t.Tier),
			RetentionDays: t.RetentionDays,
		})
	}
	return tables, nil
}

func (c *Client) IngestionVolumes(ctx context.Context, workspaceID string, lookbackDays int) (map[string]float64, error) {
	var resp struct {
		Volumes map[string]float64 `json:"volumes_gb_per_day"`
	}
	query := url.Values{"lookback_days": {strconv.Itoa(lookbackDays)}}
	if err := c.getJSON(ctx, fmt.Sprintf("/workspaces/%s/usage", url.PathEscape(workspaceID)), query, &resp); err != nil {
		return nil, err
	}
	return resp.Volumes, nil
}

func (c *Client) ListRules(ctx context.Context, workspaceID string) ([]models.QuerySource, error) {
	var resp struct {
		Rules []querySourceDTO `json:"rules"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/workspaces/%s/rules", url.PathEscape(workspaceID)), nil, &resp); err != nil {
		return nil, err
	}
	return toSources(resp.Rules, models.SourceRule), nil
}

func (c *Client) ListWorkbooks(ctx context.Context, workspaceID string) ([]models.QuerySource, error) {
	var resp struct {
		Workbooks []workbookDTO `json:"workbooks"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/workspaces/%s/workbooks", url.PathEscape(workspaceID)), nil, &resp); err != nil {
		return nil, err
	}

	// A workbook embeds any number of queries; each becomes its own source so
	// extraction confidence is tracked per query.
	var sources []models.QuerySource
	for _, wb := range resp.Workbooks {
		for i, q := range wb.Queries {
			sources = append(sources, models.QuerySource{
				ID:    fmt.Sprintf("%s#%d", wb.ID, i),
				Name:  wb.Name,
				Kind:  models.SourceWorkbook,
				Query: q,
			})
		}
	}
	return sources, nil
}

func (c *Client) ListHuntQueries(ctx context.Context, workspaceID string) ([]models.QuerySource, error) {
	var resp struct {
		Queries []querySourceDTO `json:"queries"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/workspaces/%s/huntqueries", url.PathEscape(workspaceID)), nil, &resp); err != nil {
		return nil, err
	}
	return toSources(resp.Queries, models.SourceHuntQuery), nil
}

func (c *Client) ListConnectors(ctx context.Context, workspaceID string) (models.ConnectorMapping, error) {
	var resp struct {
		Connectors []connectorDTO `json:"connectors"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/workspaces/%s/connectors", url.PathEscape(workspaceID)), nil, &resp); err != nil {
		return nil, err
	}

	mapping := make(models.ConnectorMapping)
	for _, conn := range resp.Connectors {
		for _, table := range conn.Tables {
			mapping[table] = append(mapping[table], conn.Name)
		}
	}
	return mapping, nil
}

func (c *Client) TierPrices(ctx context.Context, region string) (models.TierPrices, error) {
	var resp struct {
		Region string             `json:"region"`
		PerGB  map[string]float64 `json:"per_gb"`
	}
	query := url.Values{"region": {region}}
	if err := c.getJSON(ctx, "/prices", query, &resp); err != nil {
		return models.TierPrices{}, err
	}

	prices := models.TierPrices{
		Region:      resp.Region,
		PerGB:       make(map[models.Tier]float64, len(resp.PerGB)),
		RetrievedAt: time.Now().UTC(),
	}
	for tier, price := range resp.PerGB {
		prices.PerGB[models.Tier(tier)] = price
	}
	return prices, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &RemoteError{StatusCode: resp.StatusCode, Endpoint: path}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func toSources(dtos []querySourceDTO, kind models.SourceKind) []models.QuerySource {
	sources := make([]models.QuerySource, 0, len(dtos))
	for _, dto := range dtos {
		sources = append(sources, models.QuerySource{
			ID:    dto.ID,
			Name:  dto.Name,
			Kind:  kind,
			Query: dto.Query,
		})
	}
	return sources
}
