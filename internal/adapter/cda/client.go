package cda

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/shef-etl/internal/domain"
	"github.com/couchcryptid/shef-etl/internal/observability"
	"github.com/couchcryptid/shef-etl/internal/xref"
)

const (
	contentType = "application/json;version=2"

	// GroupOffice owns the shared time series groups and categories.
	GroupOffice = "CWMS"
	// Category holds the SHEF acquisition group.
	Category = "Data Acquisition"
)

// Client posts time series to a CWMS Data API instance.
// It implements pipeline.TimeSeriesSink.
type Client struct {
	baseURL    string
	apiKey     string
	office     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a CDA client. baseURL is the API root, for example
// https://cwms-data.usace.army.mil/cwms-data/.
func NewClient(baseURL, apiKey, office string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		office:  office,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Store posts one series. Samples are sent as [epoch ms, value, quality].
func (c *Client) Store(ctx context.Context, ts domain.TimeSeries) error {
	values := make([][3]any, len(ts.Values))
	for i, s := range ts.Values {
		values[i] = [3]any{s.Time, s.Value, s.Quality}
	}
	body := timeSeriesRequest{
		Name:     ts.Path,
		OfficeID: c.office,
		Units:    ts.Units,
		Values:   values,
	}
	return c.do(ctx, http.MethodPost, c.baseURL+"timeseries", body)
}

// AssignGroup adds each alias to the group, one request per alias. Failed
// assignments are logged and joined into the returned error; the rest are
// still attempted.
func (c *Client) AssignGroup(ctx context.Context, group string, aliases []xref.Alias) error {
	params := url.Values{
		"office":              {GroupOffice},
		"replace-assigned-ts": {"false"},
	}
	u := c.baseURL + "timeseries/group/" + url.PathEscape(group) + "?" + params.Encode()

	var errs []error
	for _, a := range aliases {
		body := groupRequest{
			OfficeID: GroupOffice,
			ID:       group,
			Category: category{OfficeID: GroupOffice, ID: Category},
			Assigned: []assignedSeries{{
				OfficeID:     c.office,
				TimeseriesID: a.TimeseriesID,
				AliasID:      a.Name,
			}},
		}
		if err := c.do(ctx, http.MethodPatch, u, body); err != nil {
			c.logger.Error("assign alias failed", "alias", a.Name, "timeseries_id", a.TimeseriesID, "error", err)
			errs = append(errs, fmt.Errorf("assign %s: %w", a.TimeseriesID, err))
			continue
		}
		c.logger.Debug("alias assigned", "group", group, "timeseries_id", a.TimeseriesID)
	}
	return errors.Join(errs...)
}

func (c *Client) do(ctx context.Context, method, fullURL string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "apikey "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.CDADuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.CDARequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("%s request: %w", strings.ToLower(method), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.CDARequests.WithLabelValues(method, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("CDA API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	c.metrics.CDARequests.WithLabelValues(method, "success").Inc()
	return nil
}

// CDA request types.

type timeSeriesRequest struct {
	Name     string   `json:"name"`
	OfficeID string   `json:"office-id"`
	Units    string   `json:"units"`
	Values   [][3]any `json:"values"`
}

type groupRequest struct {
	OfficeID string           `json:"office-id"`
	ID       string           `json:"id"`
	Category category         `json:"time-series-category"`
	Assigned []assignedSeries `json:"assigned-time-series"`
}

type category struct {
	OfficeID string `json:"office-id"`
	ID       string `json:"id"`
}

type assignedSeries struct {
	OfficeID     string `json:"office-id"`
	TimeseriesID string `json:"timeseries-id"`
	AliasID      string `json:"alias-id"`
}
