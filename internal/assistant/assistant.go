// Package assistant drafts free-text situation answers with a generative text
// service. Each Open mints a session token; results that arrive for a token
// that is no longer current are dropped.
package assistant

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "social-support/internal/common/errors"
	"social-support/internal/common/genai"
	"social-support/internal/common/logger"
	"social-support/internal/common/metrics"
	"social-support/internal/common/retry"
	"social-support/internal/common/validation"
	"social-support/internal/form"
	"social-support/internal/wizard"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
	StatusReady      Status = "ready"
	StatusEditing    Status = "editing"
	StatusError      Status = "error"
)

// Session is a snapshot of the current draft session.
type Session struct {
	Token         string
	Field         string
	Status        Status
	GeneratedText string
	EditedText    string
	ErrorMessage  string
	ErrorKey      string
	Attempts      int
}

// Generator produces text for a chat request.
type Generator interface {
	Generate(ctx context.Context, req genai.Request) (string, error)
}

// FormState is the part of the wizard the assistant writes into.
type FormState interface {
	State() wizard.State
	UpdateStep(step form.StepKey, values map[string]interface{}) error
	Validate(index int) validation.Result
}

// Recorder receives operation timings.
type Recorder interface {
	RecordOperation(ctx context.Context, operation, status string, duration time.Duration)
}

type Config struct {
	// MinLength is the trimmed length a field needs before help is offered.
	MinLength int
	// RequiresDraft applies MinLength to empty fields too.
	RequiresDraft bool
	Policy        retry.Policy
}

type Assistant struct {
	gen      Generator
	form     FormState
	cfg      Config
	recorder Recorder
	logger   logger.Logger

	mu      sync.Mutex
	session Session
	request genai.Request
	opts    Options
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(gen Generator, fs FormState, cfg Config, recorder Recorder, log logger.Logger) *Assistant {
	if cfg.Policy.MaxAttempts < 1 {
		cfg.Policy = retry.FromRetries(2, time.Second)
	}
	if cfg.Policy.IsRetryable == nil {
		cfg.Policy.IsRetryable = apperrors.IsRetryable
	}
	return &Assistant{
		gen:      gen,
		form:     fs,
		cfg:      cfg,
		recorder: recorder,
		logger:   log.WithFields(map[string]interface{}{"component": "assistant"}),
		session:  Session{Status: StatusIdle},
	}
}

// CanAssist reports whether the help trigger is enabled for a field holding
// current.
func (a *Assistant) CanAssist(field, current string) bool {
	if !isAssistField(field) {
		return false
	}
	trimmed := strings.TrimSpace(current)
	if trimmed == "" && !a.cfg.RequiresDraft {
		return true
	}
	return utf8.RuneCountInString(trimmed) >= a.cfg.MinLength
}

// Snapshot returns a copy of the session.
func (a *Assistant) Snapshot() Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// Open starts a session for field using snapshot as applicant context.
func (a *Assistant) Open(ctx context.Context, field string, snapshot form.ApplicationDraft, opts Options) error {
	current, _ := snapshot.Situation.Get(field)
	if !a.CanAssist(field, current) {
		return apperrors.NewAssistUnavailableError("field: " + field)
	}
	req, err := BuildRequest(field, snapshot, opts)
	if err != nil {
		return apperrors.NewAssistUnavailableError(err.Error())
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.request = req
	a.opts = opts.withDefaults()
	a.startLocked(ctx, field)
	return nil
}

// Regenerate re-issues the current request under a new token.
func (a *Assistant) Regenerate(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.session.Status {
	case StatusReady, StatusEditing, StatusError, StatusGenerating:
	default:
		return apperrors.NewAssistUnavailableError("no open session")
	}
	a.startLocked(ctx, a.session.Field)
	return nil
}

func (a *Assistant) startLocked(ctx context.Context, field string) {
	if a.cancel != nil {
		a.cancel()
	}
	genCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	token := uuid.NewString()
	a.session = Session{Token: token, Field: field, Status: StatusGenerating}
	a.cancel = cancel
	a.done = done

	policy := a.cfg.Policy
	if a.opts.NoRetry {
		policy.MaxAttempts = 1
	}

	a.logger.Info("Generating draft", map[string]interface{}{
		"field":       field,
		"token":       token,
		"maxAttempts": policy.MaxAttempts,
	})
	go a.generate(genCtx, token, field, a.request, policy, done)
}

func (a *Assistant) generate(ctx context.Context, token, field string, req genai.Request, policy retry.Policy, done chan struct{}) {
	defer close(done)

	start := time.Now()
	var text string
	attempts := 0
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		a.logger.Warn("Draft generation failed, retrying", map[string]interface{}{
			"field":       field,
			"attempt":     attempt,
			"nextRetryIn": delay.String(),
			"error":       err.Error(),
		})
	}

	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		attempts = attempt
		out, err := a.gen.Generate(ctx, req)
		if err != nil {
			metrics.AssistAttempts.WithLabelValues("failure").Inc()
			return err
		}
		metrics.AssistAttempts.WithLabelValues("success").Inc()
		text = out
		return nil
	})

	status := "ready"
	if err != nil {
		status = "error"
	}
	if ctx.Err() != nil {
		status = "cancelled"
	}
	metrics.AssistGenerations.WithLabelValues(field, status).Inc()
	metrics.AssistDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if a.recorder != nil {
		a.recorder.RecordOperation(context.Background(), "assist.generate", status, time.Since(start))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session.Token != token {
		a.logger.Debug("Dropping result of a superseded session", map[string]interface{}{"token": token})
		return
	}
	a.session.Attempts = attempts
	if err != nil {
		a.session.Status = StatusError
		a.session.ErrorMessage = apperrors.UserMessage(err)
		a.session.ErrorKey = apperrors.MessageKey(err)
		a.logger.Error("Draft generation failed", map[string]interface{}{
			"field":    field,
			"attempts": attempts,
			"error":    err.Error(),
		})
		return
	}
	a.session.Status = StatusReady
	a.session.GeneratedText = text
}

// Wait blocks until the in-flight generation settles or ctx is done.
func (a *Assistant) Wait(ctx context.Context) error {
	a.mu.Lock()
	done := a.done
	a.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BeginEdit moves a ready session into editing, seeding the buffer with the
// generated text.
func (a *Assistant) BeginEdit() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.session.Status {
	case StatusEditing:
		return nil
	case StatusReady:
		a.session.Status = StatusEditing
		a.session.EditedText = a.session.GeneratedText
		return nil
	}
	return apperrors.NewAssistUnavailableError("nothing to edit")
}

// Edit replaces the edit buffer, entering editing first when ready.
func (a *Assistant) Edit(text string) error {
	if err := a.BeginEdit(); err != nil {
		return err
	}
	a.mu.Lock()
	a.session.EditedText = text
	a.mu.Unlock()
	return nil
}

// CancelEdit discards the buffer and returns to ready.
func (a *Assistant) CancelEdit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session.Status == StatusEditing {
		a.session.Status = StatusReady
		a.session.EditedText = ""
	}
}

// Accept writes the authoritative text into the situation slice, closes the
// session and returns the slice's validation result.
func (a *Assistant) Accept() (validation.Result, error) {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()

	var text string
	switch s.Status {
	case StatusReady:
		text = s.GeneratedText
	case StatusEditing:
		text = s.EditedText
	default:
		return validation.Result{}, apperrors.NewAssistUnavailableError("no text to accept")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return validation.Result{}, apperrors.NewAssistUnavailableError("accepted text is empty")
	}

	if err := a.form.UpdateStep(form.StepSituation, map[string]interface{}{s.Field: text}); err != nil {
		return validation.Result{}, err
	}
	a.closeIf(s.Token)

	a.logger.Info("Draft accepted", map[string]interface{}{"field": s.Field, "edited": s.Status == StatusEditing})
	return a.form.Validate(form.StepSituation.Index()), nil
}

// Close discards the session; an in-flight result is ignored.
func (a *Assistant) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeLocked()
}

func (a *Assistant) closeIf(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session.Token == token {
		a.closeLocked()
	}
}

func (a *Assistant) closeLocked() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.session = Session{Status: StatusIdle}
}
