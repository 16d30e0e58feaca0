package forge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"pixelforge/internal/jobclient"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{BaseURL: srv.URL, Model: "test-model", APIKey: "secret"})
	require.NoError(t, err)
	return client
}

func TestSubmitHappyPath(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/test-model/run", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		input, _ := payload["input"].(map[string]any)
		require.Equal(t, "a calico cat", input["prompt"])

		_ = json.NewEncoder(w).Encode(map[string]any{"id": "J1", "status": "IN_QUEUE"})
	})

	ack, err := client.Submit(context.Background(), jobclient.Request{Prompt: "a calico cat"})
	require.NoError(t, err)
	require.Equal(t, "J1", ack.JobID)
	require.Equal(t, jobclient.StatusQueued, ack.Status)
}

func TestSubmitRejectsEmptyPrompt(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be issued")
	})
	_, err := client.Submit(context.Background(), jobclient.Request{Prompt: "   "})
	require.Error(t, err)
}

func TestSubmitErrorPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "prompt rejected by safety filter"})
	})

	_, err := client.Submit(context.Background(), jobclient.Request{Prompt: "cat"})
	require.ErrorContains(t, err, "prompt rejected by safety filter")
}

func TestGetStatusCompletedWithInlineArtifact(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/test-model/status/J1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "J1",
			"status":        "COMPLETED",
			"delayTime":     350,
			"executionTime": 4200,
			"output": map[string]any{
				"images": []map[string]any{
					{"filename": "a.png", "type": "base64", "data": base64.StdEncoding.EncodeToString(raw)},
					{"filename": "b.png", "type": "url", "url": "https://cdn.example.com/b.png"},
				},
				"warnings": []string{"seed ignored"},
			},
		})
	})

	upd, err := client.GetStatus(context.Background(), "J1")
	require.NoError(t, err)
	require.Equal(t, "J1", upd.JobID)
	require.Equal(t, jobclient.StatusCompleted, upd.Status)
	require.EqualValues(t, 350, *upd.QueueDelayMs)
	require.EqualValues(t, 4200, *upd.ExecutionMs)
	require.NotNil(t, upd.Output)
	require.Len(t, upd.Output.Artifacts, 2)
	require.Equal(t, raw, upd.Output.Artifacts[0].Data)
	require.Equal(t, "https://cdn.example.com/b.png", upd.Output.Artifacts[1].URL)
	require.Equal(t, []string{"seed ignored"}, upd.Output.Warnings)
}

func TestGetStatusFailedPassesMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "J1",
			"status": "FAILED",
			"error":  "CUDA out of memory",
		})
	})

	upd, err := client.GetStatus(context.Background(), "J1")
	require.NoError(t, err)
	require.Equal(t, jobclient.StatusFailed, upd.Status)
	require.Equal(t, "CUDA out of memory", upd.ErrorMessage)
}

func TestGetStatusUnexpectedStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "J1", "status": "PAUSED"})
	})

	_, err := client.GetStatus(context.Background(), "J1")
	require.ErrorContains(t, err, "unexpected status")
}

func TestGetStatusMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway timeout</html>"))
	})

	_, err := client.GetStatus(context.Background(), "J1")
	require.ErrorContains(t, err, "decode response")
}

func TestGetStatusBadArtifactEncoding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "J1",
			"status": "COMPLETED",
			"output": map[string]any{
				"images": []map[string]any{{"filename": "a.png", "type": "base64", "data": "!!not-base64!!"}},
			},
		})
	})

	_, err := client.GetStatus(context.Background(), "J1")
	require.ErrorContains(t, err, "decode artifact")
}

func TestStatusFromAPI(t *testing.T) {
	tests := []struct {
		in   string
		want jobclient.Status
	}{
		{"IN_QUEUE", jobclient.StatusQueued},
		{"queued", jobclient.StatusQueued},
		{"IN_PROGRESS", jobclient.StatusRunning},
		{"COMPLETED", jobclient.StatusCompleted},
		{"error", jobclient.StatusFailed},
		{"CANCELLED", jobclient.StatusCancelled},
	}
	for _, tc := range tests {
		got, err := statusFromAPI(tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
	_, err := statusFromAPI("LIMBO")
	require.Error(t, err)
}
