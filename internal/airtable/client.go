package airtable

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"wedding-rsvp/internal/apperr"
	"wedding-rsvp/internal/metrics"
)

// MaxBatchSize is the most records the store accepts in one update request
const MaxBatchSize = 10

// Record is one row of the record store
type Record struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

// RecordUpdate is a partial overwrite of one record's fields
type RecordUpdate struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Table describes a table of the base
type Table struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field describes a column of a table
type Field struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Type    string         `json:"type"`
	Options map[string]any `json:"options,omitempty"`
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

type updateRequest struct {
	Records []RecordUpdate `json:"records"`
}

type tablesResponse struct {
	Tables []Table `json:"tables"`
}

// Config holds the record store connection settings
type Config struct {
	BaseURL string
	APIKey  string
	BaseID  string
	Table   string
	Timeout time.Duration
}

// Client talks to the Airtable REST API
type Client struct {
	http   *resty.Client
	cfg    Config
	logger zerolog.Logger
}

// NewClient creates a new record store client
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Accept", "application/json").
		SetPathParam("baseId", cfg.BaseID)

	return &Client{
		http:   httpClient,
		cfg:    cfg,
		logger: logger.With().Str("component", "airtable").Logger(),
	}
}

// ListRecords returns every record matching the formula, following pagination.
// An empty formula lists the whole table.
func (c *Client) ListRecords(ctx context.Context, filterFormula string) ([]Record, error) {
	records := make([]Record, 0)
	offset := ""

	for {
		req := c.http.R().
			SetContext(ctx).
			SetPathParam("table", c.cfg.Table).
			SetResult(&listResponse{})
		if filterFormula != "" {
			req.SetQueryParam("filterByFormula", filterFormula)
		}
		if offset != "" {
			req.SetQueryParam("offset", offset)
		}

		start := time.Now()
		resp, err := req.Get("/v0/{baseId}/{table}")
		if err := c.check("list", start, resp, err); err != nil {
			return nil, err
		}

		page := resp.Result().(*listResponse)
		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

// UpdateRecords applies all updates in a single PATCH and returns the number of records updated
func (c *Client) UpdateRecords(ctx context.Context, updates []RecordUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	if len(updates) > MaxBatchSize {
		return 0, apperr.Validation("Too many family records in one submission (max %d)", MaxBatchSize)
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("table", c.cfg.Table).
		SetHeader("Content-Type", "application/json").
		SetBody(updateRequest{Records: updates}).
		SetResult(&listResponse{}).
		Patch("/v0/{baseId}/{table}")
	if err := c.check("update", start, resp, err); err != nil {
		return 0, err
	}

	return len(resp.Result().(*listResponse).Records), nil
}

// Tables returns the schema of every table in the base
func (c *Client) Tables(ctx context.Context) ([]Table, error) {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&tablesResponse{}).
		Get("/v0/meta/bases/{baseId}/tables")
	if err := c.check("schema", start, resp, err); err != nil {
		return nil, err
	}
	return resp.Result().(*tablesResponse).Tables, nil
}

func (c *Client) check(operation string, start time.Time, resp *resty.Response, err error) error {
	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	metrics.UpstreamRequestDuration.
		WithLabelValues("airtable", operation, strconv.Itoa(status)).
		Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Error().Err(err).Str("operation", operation).Msg("Airtable request failed")
		return apperr.Upstream("airtable", fmt.Errorf("failed to %s records: %w", operation, err))
	}
	if resp.IsError() {
		c.logger.Error().
			Str("operation", operation).
			Int("status", status).
			Str("body", resp.String()).
			Msg("Airtable API error")
		return apperr.Upstream("airtable", fmt.Errorf("airtable API error: %s", resp.Status()))
	}
	return nil
}
