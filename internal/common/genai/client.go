// Package genai is an OpenAI-compatible chat completions client.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"social-support/internal/common/config"
	apperrors "social-support/internal/common/errors"
	apphttp "social-support/internal/common/http"
	"social-support/internal/common/logger"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single chat completion call.
type Request struct {
	Messages []Message
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client performs one attempt per Generate call; retries belong to the caller.
type Client struct {
	http    *apphttp.Client
	cfg     config.GenAIConfig
	timeout time.Duration
	logger  logger.Logger
}

func NewClient(cfg config.GenAIConfig, httpClient *apphttp.Client, log logger.Logger) *Client {
	timeout := config.GetDuration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if httpClient == nil {
		// the per-attempt context carries the deadline
		httpClient = apphttp.NewClient(0)
	}
	return &Client{
		http:    httpClient,
		cfg:     cfg,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "genai", "model": cfg.Model}),
	}
}

// Generate returns the trimmed content of the first choice.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", apperrors.NewGenAIMissingCredentialsError()
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    req.Messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	start := time.Now()
	resp, err := c.http.PostJSON(attemptCtx, c.cfg.BaseURL, headers, body)
	if err != nil {
		if ctx.Err() != nil {
			// cancelled by the caller, not a service failure
			return "", ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", apperrors.NewGenAITimeoutError(c.timeout)
		}
		return "", apperrors.NewGenAIUnavailableError(err)
	}

	c.logger.Debug("Chat completion response", map[string]interface{}{
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", apperrors.NewGenAIAuthFailedError(serviceMessage(resp.Body))
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", apperrors.NewGenAIRateLimitedError(serviceMessage(resp.Body))
	case resp.StatusCode >= 500:
		return "", apperrors.NewGenAIUnavailableError(
			fmt.Errorf("status %d: %s", resp.StatusCode, serviceMessage(resp.Body)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", apperrors.NewGenAIRequestRejectedError(resp.StatusCode, serviceMessage(resp.Body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", apperrors.NewGenAIMalformedResponseError(err.Error())
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", apperrors.NewGenAIMalformedResponseError("no content in first choice")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

const maxServiceMessageRunes = 200

func serviceMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if r := []rune(s); len(r) > maxServiceMessageRunes {
		s = string(r[:maxServiceMessageRunes])
	}
	return s
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
