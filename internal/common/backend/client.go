// Package backend submits completed applications to the social support service.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"social-support/internal/common/config"
	apperrors "social-support/internal/common/errors"
	apphttp "social-support/internal/common/http"
	"social-support/internal/common/logger"
	"social-support/internal/form"
)

const submitPath = "/social-support"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the service's answer to a submission.
type Response struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	Timestamp     string `json:"timestamp"`
}

// Client posts drafts to {base}/social-support. One attempt per call.
type Client struct {
	http    *apphttp.Client
	url     string
	timeout time.Duration
	logger  logger.Logger
}

func NewClient(cfg config.SubmissionConfig, httpClient *apphttp.Client, log logger.Logger) *Client {
	timeout := config.GetDuration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = apphttp.NewClient(0)
	}
	return &Client{
		http:    httpClient,
		url:     strings.TrimRight(cfg.BaseURL, "/") + submitPath,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "backend"}),
	}
}

func (c *Client) Submit(ctx context.Context, draft form.ApplicationDraft) (Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.PostJSON(attemptCtx, c.url, nil, draft)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("no response within %s", c.timeout)
		}
		return Response{}, apperrors.NewSubmissionNetworkError(err)
	}

	var out Response
	decodeErr := json.Unmarshal(resp.Body, &out)

	c.logger.Debug("Submission response", map[string]interface{}{
		"status":        resp.StatusCode,
		"applicationId": out.ApplicationID,
	})

	switch {
	case resp.StatusCode >= 500:
		return Response{}, apperrors.NewSubmissionServerError(resp.StatusCode, out.Message)
	case resp.StatusCode >= 400:
		return Response{}, apperrors.NewSubmissionRejectedError(resp.StatusCode, out.Message)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Response{}, apperrors.NewSubmissionServerError(resp.StatusCode, "unexpected status")
	case decodeErr != nil:
		return Response{}, apperrors.NewSubmissionServerError(resp.StatusCode, "malformed response: "+decodeErr.Error())
	case out.Status == StatusError:
		return Response{}, apperrors.NewSubmissionRejectedError(resp.StatusCode, out.Message)
	case out.ApplicationID == "":
		return Response{}, apperrors.NewSubmissionServerError(resp.StatusCode, "response has no applicationId")
	}
	return out, nil
}
