// Package httpaction delegates actions to an HTTP endpoint: the descriptor is
// POSTed as JSON and the response is read back as an ActionResult.
package httpaction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/template"
)

const defaultTimeout = 30 * time.Second

var (
	// ErrURLInvalid is returned when no endpoint URL is configured.
	ErrURLInvalid = errors.New("invalid action endpoint URL")
	// ErrServerError is returned when the endpoint keeps answering with a 5xx status.
	ErrServerError = errors.New("server error during action request")
)

// RetryConfig defines how 5xx answers and transport errors are retried.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// Executor POSTs descriptors to URL. URL and header values are templates
// rendered against the descriptor, e.g. "https://actions.local/{{ .type }}".
type Executor struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
	Retry   RetryConfig

	client *http.Client
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithHeaders sets request headers.
func WithHeaders(headers map[string]string) Option {
	return func(e *Executor) { e.Headers = headers }
}

// WithRetry sets the retry policy.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(e *Executor) { e.Retry = RetryConfig{Attempts: max(attempts, 1), Delay: delay} }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Executor) { e.Timeout = timeout }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Executor) { e.client = client }
}

// NewExecutor creates an executor for the endpoint at url.
func NewExecutor(url string, logger *slog.Logger, opts ...Option) (*Executor, error) {
	if url == "" {
		return nil, ErrURLInvalid
	}

	_, err := template.RenderString(url, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("invalid URL template: %w", err)
	}

	executor := &Executor{
		URL:     url,
		Headers: map[string]string{},
		Timeout: defaultTimeout,
		Retry:   RetryConfig{Attempts: 1},
		logger:  logger.With("module", "http_action"),
	}

	for _, opt := range opts {
		opt(executor)
	}

	if executor.client == nil {
		executor.client = &http.Client{Timeout: executor.Timeout}
	}

	return executor, nil
}

// Execute sends the descriptor, retrying transport errors and 5xx answers.
func (e *Executor) Execute(ctx context.Context, descriptor models.ActionDescriptor) (*models.ActionResult, error) {
	logger := e.logger.With("type", descriptor.Type, "task_id", descriptor.TaskID)

	body, err := json.Marshal(descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action descriptor: %w", err)
	}

	var lastErr error

	for attempt := 1; attempt <= e.Retry.Attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, "Retrying action request", "attempt", attempt, "attempts", e.Retry.Attempts)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.Retry.Delay):
			}
		}

		req, err := e.buildRequest(ctx, descriptor, body)
		if err != nil {
			return nil, err
		}

		resp, err := e.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("action request failed: %w", err)

			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)

			continue
		}

		return e.processResponse(ctx, logger, resp)
	}

	return nil, fmt.Errorf("all %d attempts failed, last error: %w", e.Retry.Attempts, lastErr)
}

func (e *Executor) buildRequest(ctx context.Context, descriptor models.ActionDescriptor, body []byte) (*http.Request, error) {
	url, err := template.RenderWithDescriptor(e.URL, &descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to render URL template: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%v", url), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create action request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range e.Headers {
		rendered, err := template.RenderWithDescriptor(value, &descriptor)
		if err != nil {
			return nil, fmt.Errorf("failed to render header '%s' template: %w", key, err)
		}

		req.Header.Set(key, fmt.Sprintf("%v", rendered))
	}

	return req, nil
}

// processResponse reads an ActionResult document. Any other JSON body becomes
// the result data, with success decided by the status code.
func (e *Executor) processResponse(ctx context.Context, logger *slog.Logger, resp *http.Response) (*models.ActionResult, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read action response: %w", err)
	}

	ok := resp.StatusCode < http.StatusBadRequest

	var document map[string]any

	err = json.Unmarshal(payload, &document)
	if err != nil {
		logger.WarnContext(ctx, "Action response is not a JSON object", "status", resp.StatusCode, "error", err)

		result := &models.ActionResult{Success: ok, Data: map[string]any{"body": string(payload)}}
		if !ok {
			result.Error = fmt.Sprintf("action endpoint answered %d", resp.StatusCode)
		}

		return result, nil
	}

	if _, isResult := document["success"]; isResult {
		var result models.ActionResult

		err = json.Unmarshal(payload, &result)
		if err != nil {
			return nil, fmt.Errorf("failed to decode action result: %w", err)
		}

		result.Success = result.Success && ok

		return &result, nil
	}

	result := &models.ActionResult{Success: ok, Data: document}
	if !ok {
		result.Error = fmt.Sprintf("action endpoint answered %d", resp.StatusCode)
	}

	logger.InfoContext(ctx, "Action request completed", "status", resp.StatusCode, "success", result.Success)

	return result, nil
}
