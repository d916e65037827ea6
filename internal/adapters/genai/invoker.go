// Package genai calls a multi-model generative-AI endpoint and retries
// across a fallback chain of models when the upstream does not recognize
// the requested one.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avian-io/roost/pkg/metrics"
)

// Default invoker configuration constants.
const (
	defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout  = 45 * time.Second
)

// Invoker performs one synchronous generation call against a concrete model.
type Invoker interface {
	Invoke(ctx context.Context, model string, parts []Part) (string, error)
}

// ClientOption applies a configuration option to the Client.
type ClientOption func(*Client)

// WithAPIKey sets the upstream credential.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithEndpoint overrides the upstream base URL.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

// WithTimeout bounds a single generation attempt.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient sets the HTTP client used for upstream calls.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// Client implements Invoker against a generateContent-style HTTP endpoint.
type Client struct {
	apiKey     string
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a Client with configuration options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		endpoint: defaultEndpoint,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Invoke performs exactly one network attempt against model. Retrying
// across models is the resolver's job, not this layer's.
//
// Failure classification: missing credential -> ErrNoAPIKey; transport
// failure -> ErrUpstreamUnavailable; non-2xx -> *UpstreamError; a parsed
// response with no candidate text -> ErrEmptyResponse. On success the
// non-empty text fragments of the first candidate are joined by newline
// and trimmed; the result is never empty.
func (c *Client) Invoke(ctx context.Context, model string, parts []Part) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.endpoint, model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordInferenceAttempt(model, "unavailable")
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordInferenceAttempt(model, "unavailable")
		return "", fmt.Errorf("%w: read response: %v", ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		metrics.RecordInferenceAttempt(model, "error")
		return "", &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		metrics.RecordInferenceAttempt(model, "empty")
		metrics.RecordEmptyResponse()
		return "", fmt.Errorf("%w: malformed body", ErrEmptyResponse)
	}
	if len(parsed.Candidates) == 0 {
		metrics.RecordInferenceAttempt(model, "empty")
		metrics.RecordEmptyResponse()
		return "", fmt.Errorf("%w: no candidates", ErrEmptyResponse)
	}

	var chunks []string
	for _, p := range parsed.Candidates[0].Content.Parts {
		if p.Text != "" {
			chunks = append(chunks, p.Text)
		}
	}
	text := strings.TrimSpace(strings.Join(chunks, "\n"))
	if text == "" {
		metrics.RecordInferenceAttempt(model, "empty")
		metrics.RecordEmptyResponse()
		return "", fmt.Errorf("%w: no text in candidate", ErrEmptyResponse)
	}

	metrics.RecordInferenceAttempt(model, "success")
	return text, nil
}
