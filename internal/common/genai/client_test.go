package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-support/internal/common/config"
	apperrors "social-support/internal/common/errors"
	"social-support/internal/common/logger"
)

func testConfig(url string) config.GenAIConfig {
	return config.GenAIConfig{
		BaseURL:     url,
		APIKey:      "sk-test",
		Model:       "gpt-3.5-turbo",
		Timeout:     1000,
		MaxTokens:   500,
		Temperature: 0.7,
	}
}

func testRequest() Request {
	return Request{Messages: []Message{
		{Role: "system", Content: "You write applications."},
		{Role: "user", Content: "Describe my situation."},
	}}
}

// ==========================
// Success path
// ==========================

func TestGenerate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-3.5-turbo", body.Model)
		assert.Equal(t, 500, body.MaxTokens)
		assert.InDelta(t, 0.7, body.Temperature, 0.0001)
		assert.Len(t, body.Messages, 2)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  I am writing to request support.  "}}]}`))
	}))
	defer server.Close()

	c := NewClient(testConfig(server.URL), nil, logger.NewTestLogger(t))
	text, err := c.Generate(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, "I am writing to request support.", text)
}

// ==========================
// Error classification
// ==========================

func TestGenerate_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		code      apperrors.ErrorCode
		retryable bool
	}{
		{"unauthorized", 401, `{"error":{"message":"Incorrect API key"}}`, apperrors.ErrCodeGenAIAuthFailed, false},
		{"rate limited", 429, `{"error":{"message":"Rate limit"}}`, apperrors.ErrCodeGenAIRateLimited, true},
		{"server error", 503, `upstream down`, apperrors.ErrCodeGenAIUnavailable, true},
		{"bad request", 400, `{"error":{"message":"bad model"}}`, apperrors.ErrCodeGenAIRequestRejected, false},
		{"no choices", 200, `{"choices":[]}`, apperrors.ErrCodeGenAIMalformedResponse, false},
		{"empty content", 200, `{"choices":[{"message":{"content":"  "}}]}`, apperrors.ErrCodeGenAIMalformedResponse, false},
		{"not json", 200, `<html>`, apperrors.ErrCodeGenAIMalformedResponse, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(testConfig(server.URL), nil, logger.NewTestLogger(t))
			_, err := c.Generate(context.Background(), testRequest())

			require.Error(t, err)
			stdErr, ok := apperrors.AsStandard(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, stdErr.Code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
		})
	}
}

func TestGenerate_MissingCredentials(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.APIKey = " "
	_, err := NewClient(cfg, nil, logger.NewTestLogger(t)).Generate(context.Background(), testRequest())

	assert.True(t, apperrors.Is(err, apperrors.ErrCodeGenAIMissingCredentials))
	assert.Equal(t, 0, calls)
}

func TestGenerate_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := testConfig(server.URL)
	cfg.Timeout = 50
	_, err := NewClient(cfg, nil, logger.NewTestLogger(t)).Generate(context.Background(), testRequest())

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeGenAITimeout))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestGenerate_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// disconnects are only noticed once the body is consumed
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := NewClient(testConfig(server.URL), nil, logger.NewTestLogger(t)).Generate(ctx, testRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, apperrors.IsRetryable(err))
}

func TestGenerate_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(testConfig(url), nil, logger.NewTestLogger(t)).Generate(context.Background(), testRequest())
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeGenAIUnavailable))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestServiceMessage(t *testing.T) {
	assert.Equal(t, "quota exceeded", serviceMessage([]byte(`{"error":{"message":"quota exceeded"}}`)))
	assert.Equal(t, "upstream down", serviceMessage([]byte("  upstream down \n")))

	arabic := strings.Repeat("خطأ", 100)
	got := serviceMessage([]byte(arabic))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, maxServiceMessageRunes, utf8.RuneCountInString(got))
	assert.True(t, strings.HasPrefix(arabic, got))
}
