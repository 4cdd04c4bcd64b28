// Package client talks to the session API on behalf of one user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/balkashynov/tasktick/internal/models"
	"github.com/balkashynov/tasktick/internal/tracking"
)

const headerUserID = "X-User-ID"

// APIError is a non-2xx response from the session API
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

// Is lets callers match API errors against the tracking sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case tracking.ErrConflict:
		return e.Code == "conflict"
	case tracking.ErrInvalidState:
		return e.Code == "invalid_state"
	case tracking.ErrNotFound:
		return e.Code == "not_found"
	}
	return false
}

// Client is a session API client bound to one user
type Client struct {
	baseURL string
	userID  string
	client  *http.Client
}

// New creates a client. httpClient may be nil.
func New(baseURL, userID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		client:  httpClient,
	}
}

// Start starts tracking taskID
func (c *Client) Start(ctx context.Context, taskID uint) (*models.SessionView, error) {
	var view models.SessionView
	body := map[string]uint{"task_id": taskID}
	if _, err := c.do(ctx, http.MethodPost, "/api/sessions", body, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) Pause(ctx context.Context, id uint) (*models.SessionView, error) {
	return c.action(ctx, id, "pause")
}

func (c *Client) Resume(ctx context.Context, id uint) (*models.SessionView, error) {
	return c.action(ctx, id, "resume")
}

func (c *Client) End(ctx context.Context, id uint) (*models.SessionView, error) {
	return c.action(ctx, id, "end")
}

func (c *Client) Heartbeat(ctx context.Context, id uint) (*models.SessionView, error) {
	return c.action(ctx, id, "heartbeat")
}

// Get fetches one session
func (c *Client) Get(ctx context.Context, id uint) (*models.SessionView, error) {
	var view models.SessionView
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/sessions/%d", id), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Active returns the user's active session, or nil if there is none
func (c *Client) Active(ctx context.Context) (*models.SessionView, error) {
	var view models.SessionView
	status, err := c.do(ctx, http.MethodGet, "/api/sessions/active", nil, &view)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &view, nil
}

// TaskSessions lists the user's sessions on a task, newest first
func (c *Client) TaskSessions(ctx context.Context, taskID uint) ([]models.SessionView, error) {
	var list struct {
		Sessions []models.SessionView `json:"sessions"`
	}
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/%d/sessions", taskID), nil, &list); err != nil {
		return nil, err
	}
	return list.Sessions, nil
}

func (c *Client) TaskSummary(ctx context.Context, taskID uint) (*models.TaskSummary, error) {
	var summary models.TaskSummary
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/%d/summary", taskID), nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) action(ctx context.Context, id uint, action string) (*models.SessionView, error) {
	var view models.SessionView
	path := fmt.Sprintf("/api/sessions/%d/%s", id, action)
	if _, err := c.do(ctx, http.MethodPost, path, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// do sends one request and decodes a 2xx body into out. It returns the status code.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(headerUserID, c.userID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var parsed struct {
			Code  string `json:"code"`
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &parsed) == nil {
			apiErr.Code, apiErr.Message = parsed.Code, parsed.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return resp.StatusCode, apiErr
	}

	if resp.StatusCode == http.StatusNoContent || out == nil || len(respBody) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}
