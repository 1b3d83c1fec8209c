package cli

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
	"strconv"

	"github.com/me/coresim/pkg/model"
)

// Client is an HTTP client for the coresim API. It satisfies ledger, so the
// history commands work the same against a server as against a local file.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient creates a coresim API client.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
		Logger:     logger,
	}
}

// apiResponse is the parsed envelope.
type apiResponse struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

// do performs an HTTP request and returns the parsed envelope. A 204 yields
// an empty envelope.
func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) (*apiResponse, error) {
	u := c.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
		c.Logger.Debug("HTTP request body", "bytes", len(body))
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.Logger.Debug("HTTP request", "method", method, "url", u)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.Logger.Debug("HTTP response", "status", resp.StatusCode, "bytes", len(respBody))

	if resp.StatusCode == http.StatusNoContent {
		return &apiResponse{Status: "ok"}, nil
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w\nbody: %s", resp.StatusCode, err, string(respBody))
	}

	if apiResp.Status == "error" && apiResp.Error != nil {
		return &apiResp, apiResp.Error
	}

	return &apiResp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string) (*apiResponse, error) {
	return c.do(ctx, http.MethodGet, path, "", nil)
}

// SubmitWorkload posts a YAML or JSON workload and returns the recorded run.
func (c *Client) SubmitWorkload(ctx context.Context, data []byte, trace bool) (*model.Run, error) {
	path := "/api/v1/runs"
	if trace {
		path += "?trace=true"
	}
	resp, err := c.do(ctx, http.MethodPost, path, "application/yaml", data)
	if err != nil {
		return nil, err
	}
	var run model.Run
	if err := json.Unmarshal(resp.Data, &run); err != nil {
		return nil, fmt.Errorf("parse run: %w", err)
	}
	return &run, nil
}

// GetRun returns nil, nil when the server has no such run.
func (c *Client) GetRun(ctx context.Context, id string) (*model.Run, error) {
	resp, err := c.Get(ctx, "/api/v1/runs/"+url.PathEscape(id))
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var run model.Run
	if err := json.Unmarshal(resp.Data, &run); err != nil {
		return nil, fmt.Errorf("parse run: %w", err)
	}
	return &run, nil
}

func (c *Client) ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error) {
	q := pageQuery(opts)
	if opts.Policy != "" {
		q.Set("policy", opts.Policy)
	}
	if opts.Outcome != "" {
		q.Set("outcome", opts.Outcome)
	}
	resp, err := c.Get(ctx, "/api/v1/runs?"+q.Encode())
	if err != nil {
		return nil, 0, err
	}
	var runs []*model.Run
	if err := json.Unmarshal(resp.Data, &runs); err != nil {
		return nil, 0, fmt.Errorf("parse runs: %w", err)
	}
	return runs, total(resp, len(runs)), nil
}

func (c *Client) ListTicks(ctx context.Context, runID string, opts model.ListOptions) ([]model.TickSnapshot, int, error) {
	resp, err := c.Get(ctx, "/api/v1/runs/"+url.PathEscape(runID)+"/ticks?"+pageQuery(opts).Encode())
	if err != nil {
		return nil, 0, err
	}
	var ticks []model.TickSnapshot
	if err := json.Unmarshal(resp.Data, &ticks); err != nil {
		return nil, 0, fmt.Errorf("parse ticks: %w", err)
	}
	return ticks, total(resp, len(ticks)), nil
}

func (c *Client) DeleteRun(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/runs/"+url.PathEscape(id), "", nil)
	return err
}

func (c *Client) Close() error {
	return nil
}

func pageQuery(opts model.ListOptions) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(opts.Limit))
	q.Set("offset", strconv.Itoa(opts.Offset))
	return q
}

func total(resp *apiResponse, n int) int {
	if resp.Pagination != nil {
		return resp.Pagination.Total
	}
	return n
}

func isNotFound(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == model.ErrNotFound
}
