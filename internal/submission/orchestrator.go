// Package submission sends the completed draft to the social support service
// and clears local progress once the service has accepted it.
package submission

import (
	"context"
	"sync/atomic"
	"time"

	"social-support/internal/common/backend"
	apperrors "social-support/internal/common/errors"
	"social-support/internal/common/logger"
	"social-support/internal/common/metrics"
	"social-support/internal/common/retry"
	"social-support/internal/form"
	"social-support/internal/wizard"
)

type Submitter interface {
	Submit(ctx context.Context, draft form.ApplicationDraft) (backend.Response, error)
}

// FormState is the part of the wizard touched by a submission.
type FormState interface {
	State() wizard.State
	ResetAll()
}

// SliceRemover deletes a persisted slice.
type SliceRemover interface {
	RemoveSlice(name string)
}

type Recorder interface {
	RecordOperation(ctx context.Context, operation, status string, duration time.Duration)
}

type Orchestrator struct {
	submitter Submitter
	form      FormState
	drafts    SliceRemover
	policy    retry.Policy
	recorder  Recorder
	logger    logger.Logger

	submitting atomic.Bool
}

func NewOrchestrator(submitter Submitter, fs FormState, drafts SliceRemover, policy retry.Policy, recorder Recorder, log logger.Logger) *Orchestrator {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.IsRetryable == nil {
		policy.IsRetryable = apperrors.IsRetryable
	}
	return &Orchestrator{
		submitter: submitter,
		form:      fs,
		drafts:    drafts,
		policy:    policy,
		recorder:  recorder,
		logger:    log.WithFields(map[string]interface{}{"component": "submission"}),
	}
}

// IsSubmitting reports whether a submission is in flight.
func (o *Orchestrator) IsSubmitting() bool {
	return o.submitting.Load()
}

// Submit sends the current draft. On success the wizard is reset, the
// persisted slice removed and the application ID returned. On failure
// nothing is changed and the error is returned for the caller to show.
func (o *Orchestrator) Submit(ctx context.Context) (string, error) {
	if !o.submitting.CompareAndSwap(false, true) {
		return "", apperrors.NewSubmissionInProgressError()
	}
	defer o.submitting.Store(false)

	start := time.Now()
	draft := o.form.State().Draft

	policy := o.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		o.logger.Warn("Submission failed, retrying", map[string]interface{}{
			"attempt":     attempt,
			"nextRetryIn": delay.String(),
			"error":       err.Error(),
		})
	}

	var resp backend.Response
	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		r, err := o.submitter.Submit(ctx, draft)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		stdErr := apperrors.Normalize(err)
		metrics.Submissions.WithLabelValues("failure").Inc()
		o.record("failure", start)
		o.logger.Error("Submission failed", map[string]interface{}{
			"errorCode":     string(stdErr.Code),
			"errorCategory": apperrors.GetErrorCategory(stdErr.Code),
			"details":       stdErr.Details,
			"duration":      time.Since(start).String(),
		})
		if _, ok := apperrors.AsStandard(err); !ok {
			return "", apperrors.NewSubmissionNetworkError(err)
		}
		return "", err
	}

	o.form.ResetAll()
	o.drafts.RemoveSlice(wizard.SliceKey)

	metrics.Submissions.WithLabelValues("success").Inc()
	o.record("success", start)
	o.logger.Info("Application submitted", map[string]interface{}{
		"applicationId": resp.ApplicationID,
		"duration":      time.Since(start).String(),
	})
	return resp.ApplicationID, nil
}

func (o *Orchestrator) record(status string, start time.Time) {
	if o.recorder != nil {
		o.recorder.RecordOperation(context.Background(), "submission.submit", status, time.Since(start))
	}
}
