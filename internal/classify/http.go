package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds one classification call. The gate degrades to
// keyword matching when this elapses, so it is deliberately short.
const DefaultTimeout = 5 * time.Second

// HTTPConfig configures the HTTP classifier client.
type HTTPConfig struct {
	// BaseURL is the classifier endpoint, e.g. "http://classifier:8090".
	// The client POSTs to BaseURL + "/v1/classify".
	BaseURL string

	// Name tags results produced through this client (default: "llm").
	Name string

	// Timeout is the maximum duration for one request (default: 5s).
	Timeout time.Duration

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// HTTPClassifier calls a remote classification service over JSON/HTTP.
type HTTPClassifier struct {
	baseURL string
	name    string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPClassifier creates a classifier client with the given configuration.
func NewHTTPClassifier(cfg HTTPConfig) (*HTTPClassifier, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("classifier base URL is required")
	}
	if cfg.Name == "" {
		cfg.Name = "llm"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &HTTPClassifier{
		baseURL: cfg.BaseURL,
		name:    cfg.Name,
		timeout: cfg.Timeout,
		client:  cfg.Client,
	}, nil
}

type classifyRequest struct {
	Prompt string `json:"prompt"`
}

// Classify sends the prompt to the remote service and validates the reply.
func (c *HTTPClassifier) Classify(ctx context.Context, prompt string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(classifyRequest{Prompt: prompt})
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Result{}, fmt.Errorf("classifier timed out after %v: %w", c.timeout, err)
		}
		return Result{}, fmt.Errorf("classifier unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read a little of the body for the log line, then drop it.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Result{}, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, snippet)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("failed to decode classify response: %w", err)
	}
	if !KnownLabel(result.Label) {
		return Result{}, fmt.Errorf("classifier returned unknown label %q", result.Label)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return Result{}, fmt.Errorf("classifier confidence %v out of range", result.Confidence)
	}
	result.Method = c.name
	return result, nil
}
