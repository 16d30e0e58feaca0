// Package forge implements jobclient.Backend against the remote generation
// API. One job is submitted per run call; status is fetched per job ID with
// queue/execution timings reported in milliseconds.
package forge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pixelforge/internal/infra"
	"pixelforge/internal/jobclient"
	"pixelforge/internal/telemetry"
)

// Options configures the forge API client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the forge generation API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type runRequest struct {
	Input runInput `json:"input"`
}

type runInput struct {
	Prompt string         `json:"prompt"`
	Params map[string]any `json:"params,omitempty"`
}

type runResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type statusResponse struct {
	ID            string        `json:"id"`
	Status        string        `json:"status"`
	DelayTime     *int64        `json:"delayTime,omitempty"`
	ExecutionTime *int64        `json:"executionTime,omitempty"`
	Error         string        `json:"error,omitempty"`
	Output        *statusOutput `json:"output,omitempty"`
}

type statusOutput struct {
	Images   []statusImage `json:"images"`
	Warnings []string      `json:"warnings,omitempty"`
}

type statusImage struct {
	Filename string `json:"filename"`
	Type     string `json:"type"`
	Data     string `json:"data,omitempty"`
	URL      string `json:"url,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("forge: base url is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "pixelforge-xl"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Submit enqueues one generation run and returns its remote job ID.
func (c *Client) Submit(ctx context.Context, req jobclient.Request) (jobclient.SubmitAck, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return jobclient.SubmitAck{}, errors.New("forge: prompt is required")
	}
	payload := runRequest{Input: runInput{Prompt: prompt, Params: req.Params}}
	endpoint := fmt.Sprintf("%s/v2/%s/run", c.baseURL, c.model)

	var decoded runResponse
	if err := c.postJSON(ctx, endpoint, payload, &decoded); err != nil {
		return jobclient.SubmitAck{}, err
	}
	if decoded.ID == "" {
		return jobclient.SubmitAck{}, errors.New("forge: empty job id in run response")
	}
	status, err := statusFromAPI(decoded.Status)
	if err != nil {
		return jobclient.SubmitAck{}, err
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("job_id", decoded.ID).
		Msg("forge: job submitted")
	return jobclient.SubmitAck{JobID: decoded.ID, Status: status}, nil
}

// GetStatus fetches the current state of a previously submitted job.
func (c *Client) GetStatus(ctx context.Context, jobID string) (jobclient.StatusUpdate, error) {
	if strings.TrimSpace(jobID) == "" {
		return jobclient.StatusUpdate{}, errors.New("forge: job id is required")
	}
	telemetry.PollRequests.Inc()
	endpoint := fmt.Sprintf("%s/v2/%s/status/%s", c.baseURL, c.model, jobID)

	var decoded statusResponse
	if err := c.getJSON(ctx, endpoint, &decoded); err != nil {
		return jobclient.StatusUpdate{}, err
	}
	status, err := statusFromAPI(decoded.Status)
	if err != nil {
		return jobclient.StatusUpdate{}, err
	}
	upd := jobclient.StatusUpdate{
		JobID:        decoded.ID,
		Status:       status,
		QueueDelayMs: decoded.DelayTime,
		ExecutionMs:  decoded.ExecutionTime,
		ErrorMessage: decoded.Error,
	}
	if decoded.Output != nil {
		out, err := decodeOutput(decoded.Output)
		if err != nil {
			return jobclient.StatusUpdate{}, err
		}
		upd.Output = out
	}
	return upd, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("forge: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("forge: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("forge: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("forge: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("forge: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error != "" {
			return fmt.Errorf("forge: %s (status %d)", detail.Error, resp.StatusCode)
		}
		return fmt.Errorf("forge: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("forge: decode response: %w", err)
	}
	return nil
}

func decodeOutput(out *statusOutput) (*jobclient.Output, error) {
	result := &jobclient.Output{Warnings: out.Warnings}
	for i, img := range out.Images {
		name := strings.TrimSpace(img.Filename)
		if name == "" {
			name = fmt.Sprintf("image-%02d.png", i+1)
		}
		switch strings.ToLower(img.Type) {
		case "base64", "":
			data, err := base64.StdEncoding.DecodeString(img.Data)
			if err != nil {
				return nil, fmt.Errorf("forge: decode artifact %q: %w", name, err)
			}
			result.Artifacts = append(result.Artifacts, jobclient.Artifact{Filename: name, Data: data})
		case "url":
			if img.URL == "" {
				return nil, fmt.Errorf("forge: artifact %q missing url", name)
			}
			result.Artifacts = append(result.Artifacts, jobclient.Artifact{Filename: name, URL: img.URL})
		default:
			return nil, fmt.Errorf("forge: artifact %q has unsupported type %q", name, img.Type)
		}
	}
	return result, nil
}

// statusFromAPI maps wire status strings onto the job client's state set.
func statusFromAPI(s string) (jobclient.Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IN_QUEUE", "QUEUED":
		return jobclient.StatusQueued, nil
	case "IN_PROGRESS", "RUNNING":
		return jobclient.StatusRunning, nil
	case "COMPLETED":
		return jobclient.StatusCompleted, nil
	case "FAILED", "ERROR":
		return jobclient.StatusFailed, nil
	case "CANCELLED":
		return jobclient.StatusCancelled, nil
	default:
		return "", fmt.Errorf("forge: unexpected status %q", s)
	}
}

var _ jobclient.Backend = (*Client)(nil)
