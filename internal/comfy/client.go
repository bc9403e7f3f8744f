package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every backend call; a stuck backend surfaces as a
// failure rather than a hung handler.
const DefaultTimeout = 30 * time.Second

// Client talks to one ComfyUI backend endpoint. Submissions never return
// an error: all transport and HTTP failures are folded into the
// SubmitResult failure shape.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the given backend base URL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// BaseURL returns the backend endpoint this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitResult is the never-throw outcome of a workflow submission.
type SubmitResult struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JobStatus mirrors the backend's per-job status block.
type JobStatus struct {
	Completed bool    `json:"completed"`
	StatusStr string  `json:"status_str"`
	Messages  [][]any `json:"messages"`
}

// Artifact is one produced output file reference.
type Artifact struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// NodeOutput is the backend's per-node output block.
type NodeOutput struct {
	Images []Artifact `json:"images,omitempty"`
	Gifs   []Artifact `json:"gifs,omitempty"`
	Videos []Artifact `json:"videos,omitempty"`
}

// JobHistory is the backend's execution record for one job.
type JobHistory struct {
	Status  JobStatus             `json:"status"`
	Outputs map[string]NodeOutput `json:"outputs"`
}

// ErrorMessage joins the backend's error message tuples into one string.
func (h *JobHistory) ErrorMessage() string {
	var parts []string
	for _, msg := range h.Status.Messages {
		if len(msg) == 0 {
			continue
		}
		tag, _ := msg[0].(string)
		if tag != "execution_error" && tag != "execution_interrupted" {
			continue
		}
		if len(msg) > 1 {
			detail, err := json.Marshal(msg[1])
			if err == nil {
				parts = append(parts, fmt.Sprintf("%s: %s", tag, detail))
				continue
			}
		}
		parts = append(parts, tag)
	}
	if len(parts) == 0 {
		return h.Status.StatusStr
	}
	return strings.Join(parts, "; ")
}

// Submit sends a job graph to the backend. Errors never propagate; they
// are converted into a failure result.
func (c *Client) Submit(ctx context.Context, workflow Workflow) SubmitResult {
	body, err := json.Marshal(map[string]any{"prompt": workflow})
	if err != nil {
		return SubmitResult{Success: false, Error: fmt.Sprintf("failed to encode workflow: %v", err)}
	}

	data, err := c.request(ctx, http.MethodPost, "/prompt", bytes.NewReader(body))
	if err != nil {
		return SubmitResult{Success: false, Error: err.Error()}
	}

	var result struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return SubmitResult{Success: false, Error: fmt.Sprintf("failed to parse response: %v", err)}
	}
	if result.PromptID == "" {
		return SubmitResult{Success: false, Error: "backend returned no job id"}
	}
	return SubmitResult{Success: true, JobID: result.PromptID}
}

// UploadImage sends image bytes to the backend's upload endpoint and
// returns the backend-assigned name to reference in a job graph.
func (c *Client) UploadImage(ctx context.Context, image io.Reader, filename string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return "", fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.WriteField("overwrite", "true"); err != nil {
		return "", fmt.Errorf("failed to write form field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/image", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload failed (status %d): %s", resp.StatusCode, string(data))
	}

	var result struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	if result.Name == "" {
		return filename, nil
	}
	return result.Name, nil
}

// History fetches the backend's execution record for a job. A nil result
// with nil error means the backend has no record for the handle yet.
func (c *Client) History(ctx context.Context, jobID string) (*JobHistory, error) {
	data, err := c.request(ctx, http.MethodGet, "/history/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}

	var history map[string]JobHistory
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	entry, ok := history[jobID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// ImageURLs returns view URLs for every image artifact in the history.
func (c *Client) ImageURLs(history *JobHistory) []string {
	var urls []string
	for _, node := range history.Outputs {
		for _, img := range node.Images {
			urls = append(urls, c.viewURL(img))
		}
	}
	return urls
}

// VideoURLs returns view URLs for every video artifact in the history.
// VHS_VideoCombine reports its output under gifs, so both lists count.
func (c *Client) VideoURLs(history *JobHistory) []string {
	var urls []string
	for _, node := range history.Outputs {
		for _, gif := range node.Gifs {
			urls = append(urls, c.viewURL(gif))
		}
		for _, video := range node.Videos {
			urls = append(urls, c.viewURL(video))
		}
	}
	return urls
}

// TestConnection probes the backend's system stats endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.request(ctx, http.MethodGet, "/system_stats", nil)
	return err
}

func (c *Client) viewURL(a Artifact) string {
	q := url.Values{}
	q.Set("filename", a.Filename)
	q.Set("subfolder", a.Subfolder)
	q.Set("type", a.Type)
	return c.baseURL + "/view?" + q.Encode()
}

func (c *Client) request(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend error (status %d): %s", resp.StatusCode, string(data))
	}
	return data, nil
}
