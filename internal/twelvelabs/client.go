// Package twelvelabs provides a client for the TwelveLabs video
// understanding API: task creation from a video URL, task status polling,
// and semantic search against an indexed video.
//
// Indexing is a multi-step process:
//  1. Create a task that ingests the video from a (presigned) URL
//  2. Poll the task until it reports ready (yielding a video id) or failed
//  3. Search the index, filtered to that video id
package twelvelabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the TwelveLabs API base URL.
	DefaultBaseURL = "https://api.twelvelabs.io/v1.2"

	// Per-request timeouts.
	taskTimeout   = 30 * time.Second
	searchTimeout = 60 * time.Second

	// maxErrorBody caps how much of an error body is kept in APIError.
	maxErrorBody = 2048
)

// Task statuses reported by the service.
const (
	StatusUploading = "uploading"
	StatusReady     = "ready"
	StatusFailed    = "failed"
)

// SearchOptions are the modalities every search runs against.
var SearchOptions = []string{"visual", "conversation"}

// ErrPollTimeout is returned by WaitForTask when the task does not reach a
// terminal status before the poll deadline.
var ErrPollTimeout = errors.New("task did not become ready before the poll deadline")

// APIError is a non-success HTTP response from the service.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// TaskFailedError reports that the service could not index the video.
type TaskFailedError struct {
	TaskID string
	Reason string
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("video upload failed for task %s: %s", e.TaskID, e.Reason)
}

// Client provides methods for the TwelveLabs REST API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewClient creates a TwelveLabs API client. An empty baseURL selects DefaultBaseURL.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// --- API request/response types ---

type createTaskRequest struct {
	URL      string `json:"url"`
	IndexID  string `json:"index_id"`
	Language string `json:"language"`
}

type createTaskResponse struct {
	ID string `json:"_id"`
}

// TaskState is the response from GET /tasks/{id}.
type TaskState struct {
	ID      string `json:"_id,omitempty"`
	Status  string `json:"status"`
	VideoID string `json:"video_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type searchRequest struct {
	Query         string       `json:"query"`
	IndexID       string       `json:"index_id"`
	SearchOptions []string     `json:"search_options"`
	Filter        searchFilter `json:"filter"`
}

type searchFilter struct {
	VideoID string `json:"video_id"`
}

// --- Tasks ---

// CreateTask submits a video URL for indexing and returns the task id.
// The service acknowledges creation with 201; anything else is an *APIError.
func (c *Client) CreateTask(ctx context.Context, videoURL, indexID, language string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	status, body, err := c.doJSON(ctx, http.MethodPost, "/tasks", createTaskRequest{
		URL:      videoURL,
		IndexID:  indexID,
		Language: language,
	})
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	if status != http.StatusCreated {
		return "", &APIError{Op: "create task", StatusCode: status, Body: truncate(string(body), maxErrorBody)}
	}

	var resp createTaskResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("create task: parse response: %w (body: %s)", err, truncate(string(body), 200))
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create task: no task id returned (body: %s)", truncate(string(body), 200))
	}
	log.Info().Str("taskId", resp.ID).Str("indexId", indexID).Msg("TwelveLabs task created")
	return resp.ID, nil
}

// TaskStatus returns the current state of an indexing task.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*TaskState, error) {
	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	status, body, err := c.doJSON(ctx, http.MethodGet, "/tasks/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("task status: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{Op: "task status", StatusCode: status, Body: truncate(string(body), maxErrorBody)}
	}

	var state TaskState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("task status: parse response: %w (body: %s)", err, truncate(string(body), 200))
	}
	return &state, nil
}

// --- Search ---

// Search runs one natural-language query against the index, restricted to
// videoID, and returns the raw response body. Decoding is left to the
// caller so a malformed body can be handled per query.
func (c *Client) Search(ctx context.Context, query, indexID, videoID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	status, body, err := c.doJSON(ctx, http.MethodPost, "/search", searchRequest{
		Query:         query,
		IndexID:       indexID,
		SearchOptions: SearchOptions,
		Filter:        searchFilter{VideoID: videoID},
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if status != http.StatusOK {
		return nil, &APIError{Op: "search", StatusCode: status, Body: truncate(string(body), maxErrorBody)}
	}
	return body, nil
}

// --- Internal helpers ---

// doJSON sends a request with an optional JSON payload and returns the status
// code and full response body.
func (c *Client) doJSON(ctx context.Context, method, path string, payload interface{}) (int, []byte, error) {
	startTime := time.Now()

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug().Str("method", method).Str("path", path).Msg("TwelveLabs API request")
	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("TwelveLabs API response")
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("TwelveLabs API response")

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return httpResp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return httpResp.StatusCode, body, nil
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
