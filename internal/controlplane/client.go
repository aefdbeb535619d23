package controlplane

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

	"github.com/google/uuid"

	"github.com/me/flowc/pkg/flow"
	"github.com/me/flowc/pkg/model"
)

// Client is a ControlPlane that talks to a flowc server over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient creates a control-plane client for the server at baseURL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
		Logger:     logger.With("component", "controlplane-client"),
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

// CreateWorkflow implements ControlPlane.
func (c *Client) CreateWorkflow(ctx context.Context, id flow.Identifier, spec flow.WorkflowSpec) error {
	_, err := c.do(ctx, http.MethodPost, "/api/v1/workflows", model.CreateWorkflowRequest{ID: id, Spec: spec})
	return c.mapError("create workflow", id, err)
}

// GetWorkflow implements ControlPlane.
func (c *Client) GetWorkflow(ctx context.Context, id flow.Identifier) (*flow.CompiledWorkflowClosure, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/workflows/"+url.PathEscape(id.String()), nil)
	if err != nil {
		return nil, c.mapError("get workflow", id, err)
	}
	var closure flow.CompiledWorkflowClosure
	if err := json.Unmarshal(resp.Data, &closure); err != nil {
		return nil, ErrorIO("decode workflow closure", err)
	}
	return &closure, nil
}

// CreateTask registers a task template.
func (c *Client) CreateTask(ctx context.Context, tpl flow.TaskTemplate) error {
	_, err := c.do(ctx, http.MethodPost, "/api/v1/tasks", tpl)
	return c.mapError("create task", tpl.ID, err)
}

// GetTask fetches a registered task template.
func (c *Client) GetTask(ctx context.Context, id flow.Identifier) (*flow.TaskTemplate, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(id.String()), nil)
	if err != nil {
		return nil, c.mapError("get task", id, err)
	}
	var tpl flow.TaskTemplate
	if err := json.Unmarshal(resp.Data, &tpl); err != nil {
		return nil, ErrorIO("decode task template", err)
	}
	return &tpl, nil
}

// ListWorkflows returns one page of workflow summaries.
func (c *Client) ListWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.WorkflowSummary, *model.Pagination, error) {
	q := url.Values{}
	if opts.Project != "" {
		q.Set("project", opts.Project)
	}
	if opts.Domain != "" {
		q.Set("domain", opts.Domain)
	}
	if opts.Limit > 0 {
		q.Set("limit", fmt.Sprint(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", fmt.Sprint(opts.Offset))
	}
	path := "/api/v1/workflows"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, nil, c.mapError("list workflows", flow.Identifier{}, err)
	}
	var out []*model.WorkflowSummary
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return nil, nil, ErrorIO("decode workflow list", err)
	}
	return out, resp.Pagination, nil
}

// mapError converts API error codes into control-plane errors.
func (c *Client) mapError(op string, id flow.Identifier, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrConflict:
			return ErrorAlreadyExists(id)
		case model.ErrNotFound:
			return ErrorNotFound(id)
		}
	}
	return ErrorIO(op, err)
}

// do performs an HTTP request and returns the parsed envelope.
func (c *Client) do(ctx context.Context, method, path string, body any) (*apiResponse, error) {
	target := c.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
		c.Logger.Debug("HTTP request body", "body", string(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := "cli_" + uuid.New().String()[:8]
	req.Header.Set("X-Request-ID", reqID)

	c.Logger.Debug("HTTP request", "method", method, "url", target, "request_id", reqID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.Logger.Debug("HTTP response", "status", resp.StatusCode, "body", string(respBody))

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}

	if apiResp.Status == "error" && apiResp.Error != nil {
		return &apiResp, apiResp.Error
	}

	return &apiResp, nil
}
