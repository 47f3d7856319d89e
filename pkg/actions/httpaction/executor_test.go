package httpaction_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowpilot/pkg/actions/httpaction"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/testutil"
)

var descriptor = models.ActionDescriptor{
	Type:       "calendar.book_meeting",
	Payload:    map[string]any{"startTime": "10:00"},
	WorkflowID: "wf-1",
	TaskID:     "task-1",
}

func TestNewExecutor(t *testing.T) {
	_, err := httpaction.NewExecutor("", testutil.Logger())
	require.ErrorIs(t, err, httpaction.ErrURLInvalid)

	_, err = httpaction.NewExecutor("http://x/{{ .type", testutil.Logger())
	require.Error(t, err)

	executor, err := httpaction.NewExecutor("http://x", testutil.Logger())
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, executor.Timeout)
	assert.Equal(t, 1, executor.Retry.Attempts)
}

func TestExecutor_PostsDescriptor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/actions/calendar.book_meeting", r.URL.Path)
		assert.Equal(t, "wf-1", r.Header.Get("X-Workflow-ID"))

		var received models.ActionDescriptor
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		assert.Equal(t, "10:00", received.Payload["startTime"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "data": {"event_id": "evt-9"}}`))
	}))
	defer server.Close()

	executor, err := httpaction.NewExecutor(server.URL+"/actions/{{ .type }}", testutil.Logger(),
		httpaction.WithHeaders(map[string]string{"X-Workflow-ID": "{{ .workflow_id }}"}))
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), descriptor)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "evt-9", result.Data["event_id"])
}

func TestExecutor_ClientErrorIsAFailedResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"reason": "slot taken"}`))
	}))
	defer server.Close()

	executor, err := httpaction.NewExecutor(server.URL, testutil.Logger())
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), descriptor)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "slot taken", result.Data["reason"])
	assert.Contains(t, result.Error, "409")
}

func TestExecutor_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		_, _ = w.Write([]byte(`{"booked": true}`))
	}))
	defer server.Close()

	executor, err := httpaction.NewExecutor(server.URL, testutil.Logger(), httpaction.WithRetry(3, time.Millisecond))
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), descriptor)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, true, result.Data["booked"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecutor_GivesUpAfterAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	executor, err := httpaction.NewExecutor(server.URL, testutil.Logger(), httpaction.WithRetry(2, time.Millisecond))
	require.NoError(t, err)

	_, err = executor.Execute(context.Background(), descriptor)
	require.ErrorIs(t, err, httpaction.ErrServerError)
}
