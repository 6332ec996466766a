// Package scheduler wraps the central scheduling API's task endpoints in a
// typed, authenticated HTTP client. Retries are deliberately the caller's
// responsibility: scheduler-communication failures and provider failures
// follow different policies.
package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"publishd/internal/config"
	"publishd/internal/pkg/logger"
)

// Client talks to the scheduler API on behalf of one daemon instance.
type Client struct {
	baseURL  string
	password string
	daemonID string
	http     *http.Client
	log      *logger.Logger
}

// NewClient builds a client from the daemon configuration. Every request
// carries the daemon auth headers and is aborted after the configured
// request timeout.
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.APIBaseURL, "/"),
		password: cfg.APIPassword,
		daemonID: cfg.DaemonID,
		http:     &http.Client{Timeout: cfg.RequestTimeout},
		log:      log.WithComponent("scheduler-client"),
	}
}

type tasksResponse struct {
	Tasks []PublishTask `json:"tasks"`
}

type updatedResponse struct {
	Updated bool `json:"updated"`
}

// FetchTasks lists up to limit tasks waiting in the given queue
// ("pending" or "cleanup").
func (c *Client) FetchTasks(ctx context.Context, limit int, queue string) ([]PublishTask, error) {
	path := fmt.Sprintf("/api/scheduler/tasks?limit=%d&status=%s", limit, url.QueryEscape(queue))

	var out tasksResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// UpdateTask reports the outcome of one publish task.
func (c *Client) UpdateTask(ctx context.Context, taskID string, req UpdateTaskRequest) (bool, error) {
	path := "/api/scheduler/tasks/" + url.PathEscape(taskID)

	var out updatedResponse
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return false, err
	}
	return out.Updated, nil
}

// CompleteCleanup reports the outcome of one cleanup task.
func (c *Client) CompleteCleanup(ctx context.Context, taskID string, req CompleteCleanupRequest) (bool, error) {
	path := "/api/scheduler/tasks/" + url.PathEscape(taskID) + "/cleanup"

	var out updatedResponse
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return false, err
	}
	return out.Updated, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("scheduler: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("scheduler: build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("x-daemon-password", c.password)
	req.Header.Set("x-daemon-id", c.daemonID)

	log := c.log.WithRequestID(requestID)
	log.Debug("scheduler request", "method", method, "path", path)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("scheduler: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		log.Warn("scheduler request rejected", "status", res.StatusCode)
		return fmt.Errorf("scheduler: %s %s returned %d: %s", method, path, res.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("scheduler: decode response for %s %s: %w", method, path, err)
	}
	return nil
}
