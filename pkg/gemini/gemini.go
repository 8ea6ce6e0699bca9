// Package gemini is a minimal client for the Gemini generateContent REST endpoint.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

var (
	// ErrNotConfigured is returned when the client has no API key.
	ErrNotConfigured = errors.New("gemini: api key not configured")
	// ErrMalformedResponse is returned when the provider answers 2xx but the body has no usable text.
	ErrMalformedResponse = errors.New("gemini: malformed response")
)

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == fiber.StatusTooManyRequests || e.StatusCode >= fiber.StatusInternalServerError
}

// Config holds client settings.
type Config struct {
	APIKey       string
	Model        string
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client sends prompts to a Gemini model.
type Client struct {
	cfg Config
}

// NewClient creates a new Client, filling unset durations with defaults.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-pro"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateText sends prompt as a single user turn and returns the concatenated text of the first candidate.
// Transport errors, 429 and 5xx answers are retried up to MaxRetries times.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}

	payload := generateRequest{Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}}}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("Retrying Gemini request (attempt %d/%d) after: %v", attempt+1, c.cfg.MaxRetries+1, lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := c.do(payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable(err) {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
}

func (c *Client) do(payload generateRequest) (string, error) {
	agent := fiber.Post(c.endpoint())
	agent.Set("x-goog-api-key", c.cfg.APIKey)
	agent.JSON(payload)
	agent.Timeout(c.cfg.Timeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return "", &transportError{err: errors.Join(errs...)}
	}

	var resp generateResponse
	decodeErr := json.Unmarshal(body, &resp)

	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil && resp.Error != nil && resp.Error.Message != "" {
			msg = resp.Error.Message
		}
		return "", &APIError{StatusCode: code, Message: msg}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty text (finish reason %q)", ErrMalformedResponse, resp.Candidates[0].FinishReason)
	}
	return text, nil
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return "gemini: request failed: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var tErr *transportError
	if errors.As(err, &tErr) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}
