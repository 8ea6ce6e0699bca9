package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"storycraft/pkg/gemini"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(baseURL string, retries int) *gemini.Client {
	return gemini.NewClient(gemini.Config{
		APIKey:       "test-key",
		Model:        "gemini-pro",
		BaseURL:      baseURL,
		Timeout:      2 * time.Second,
		MaxRetries:   retries,
		RetryBackoff: time.Millisecond,
	})
}

const okBody = `{"candidates":[{"content":{"role":"model","parts":[{"text":"  Fox and "},{"text":"the Moon "}]},"finishReason":"STOP"}]}`

func TestGenerateText_Success(t *testing.T) {
	var gotPrompt, gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.Unmarshal(body, &req); err == nil && len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			gotPrompt = req.Contents[0].Parts[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	text, err := newClient(srv.URL, 0).GenerateText(context.Background(), "title please")
	require.NoError(t, err)
	assert.Equal(t, "Fox and the Moon", text)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "/v1beta/models/gemini-pro:generateContent", gotPath)
	assert.Equal(t, "title please", gotPrompt)
}

func TestGenerateText_NotConfigured(t *testing.T) {
	client := gemini.NewClient(gemini.Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.GenerateText(context.Background(), "hi")
	assert.ErrorIs(t, err, gemini.ErrNotConfigured)
}

func TestGenerateText_RetriesTransientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`)
			return
		}
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	text, err := newClient(srv.URL, 2).GenerateText(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Fox and the Moon", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGenerateText_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"code":500,"message":"boom"}}`)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 1).GenerateText(context.Background(), "hi")
	var apiErr *gemini.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Message)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGenerateText_ClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"API key not valid"}}`)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 3).GenerateText(context.Background(), "hi")
	var apiErr *gemini.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.False(t, apiErr.Temporary())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerateText_MalformedResponses(t *testing.T) {
	bodies := map[string]string{
		"not json":      `<html>oops</html>`,
		"no candidates": `{"candidates":[]}`,
		"empty text":    `{"candidates":[{"content":{"parts":[{"text":"   "}]},"finishReason":"SAFETY"}]}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()

			_, err := newClient(srv.URL, 2).GenerateText(context.Background(), "hi")
			assert.ErrorIs(t, err, gemini.ErrMalformedResponse)
		})
	}
}

func TestGenerateText_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newClient("http://127.0.0.1:1", 2).GenerateText(ctx, "hi")
	assert.ErrorIs(t, err, context.Canceled)
}
