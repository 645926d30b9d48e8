// Package api talks to the task backend over JSON/HTTPS with the session's
// bearer credential.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Joseda-hg/taskflow/internal/model"
	"github.com/Joseda-hg/taskflow/internal/session"
)

const maxErrorBody = 4096

type Scope string

const (
	// ScopeOwn lists tasks where the caller is the responsible party.
	ScopeOwn Scope = "/tasks"
	// ScopeAll lists every task and requires the admin role.
	ScopeAll Scope = "/tasks/all"
)

type Query struct {
	Filter    model.Filter
	Sort      model.Sort
	NextToken *string
}

func (q Query) values() url.Values {
	values := url.Values{}
	for _, field := range model.FilterFields {
		if value := strings.TrimSpace(q.Filter[field]); value != "" {
			values.Set(string(field), value)
		}
	}
	if q.Sort.Field != "" {
		values.Set("sort", q.Sort.String())
	}
	if q.NextToken != nil {
		values.Set("next_token", *q.NextToken)
	}
	return values
}

type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// Unauthorized reports a missing, expired or insufficient credential.
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// MessageOf picks the text to show for a failed call: the server's message
// when it sent one, otherwise fallback. Authorization failures always use the
// fallback.
func MessageOf(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" && !apiErr.Unauthorized() {
		return apiErr.Message
	}
	return fallback
}

type Client struct {
	baseURL string
	http    *http.Client
	creds   session.Provider
	logger  *zap.Logger
}

func NewClient(baseURL string, httpClient *http.Client, creds session.Provider, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		creds:   creds,
		logger:  logger.Named("api"),
	}
}

func (c *Client) ListTasks(ctx context.Context, scope Scope, query Query) (model.Page, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, string(scope), query.values(), nil, &raw); err != nil {
		return model.Page{}, err
	}
	return decodePage(raw)
}

// decodePage accepts the paginated envelope and, for older deployments, a
// bare array which is treated as the only page.
func decodePage(raw json.RawMessage) (model.Page, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return model.Page{}, fmt.Errorf("decode task page: empty body")
	}
	if trimmed[0] == '[' {
		var items []model.Task
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return model.Page{}, fmt.Errorf("decode task page: %w", err)
		}
		return model.Page{Items: items}, nil
	}

	var page model.Page
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return model.Page{}, fmt.Errorf("decode task page: %w", err)
	}
	if page.NextToken != nil && *page.NextToken == "" {
		page.NextToken = nil
	}
	return page, nil
}

func (c *Client) CreateTask(ctx context.Context, input model.TaskInput) (model.Task, error) {
	var created model.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, input, &created); err != nil {
		return model.Task{}, err
	}
	return created, nil
}

func (c *Client) UpdateTask(ctx context.Context, task model.Task) error {
	return c.do(ctx, http.MethodPut, "/tasks", nil, task, nil)
}

func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	body := struct {
		TaskID string `json:"TaskId"`
	}{TaskID: taskID}
	return c.do(ctx, http.MethodDelete, "/tasks", nil, body, nil)
}

func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) InviteUser(ctx context.Context, inv model.Invitation) error {
	return c.do(ctx, http.MethodPost, "/users", nil, inv, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	sess, err := c.creds.Session(ctx)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+sess.IDToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("path", path),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		c.logger.Error("request failed", append(fields, zap.Error(err))...)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Info("request", append(fields, zap.Int("status", resp.StatusCode))...)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Message: errorMessage(slurp)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = data
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		return payload.Message
	}
	return ""
}
