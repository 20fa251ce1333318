// Package app assembles the wizard, its persistence and its collaborators
// from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"social-support/internal/assistant"
	"social-support/internal/common/backend"
	"social-support/internal/common/config"
	"social-support/internal/common/database"
	apperrors "social-support/internal/common/errors"
	"social-support/internal/common/genai"
	"social-support/internal/common/logger"
	"social-support/internal/common/retry"
	"social-support/internal/draftstore"
	"social-support/internal/form"
	"social-support/internal/submission"
	"social-support/internal/wizard"
)

const redisKeyPrefix = "ssa:"

// Recorder receives operation timings (observability.Observability).
type Recorder interface {
	RecordOperation(ctx context.Context, operation, status string, duration time.Duration)
}

// Options replace configured collaborators. Zero values use the config.
type Options struct {
	Now       func() time.Time
	Backend   draftstore.Backend
	Generator assistant.Generator
	Submitter submission.Submitter
	Recorder  Recorder
}

// App is one restored wizard session.
type App struct {
	Config     *config.Config
	Logger     logger.Logger
	Validator  *form.Validator
	Form       *wizard.Store
	Drafts     *draftstore.Store
	Autosaver  *draftstore.Autosaver
	Assistant  *assistant.Assistant
	Submission *submission.Orchestrator
	Boundary   *apperrors.Boundary

	unsubscribe func()
	closers     []func() error
}

func New(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   log,
		Boundary: apperrors.NewBoundary(log),
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	store := opts.Backend
	if store == nil {
		var err error
		store, err = a.openBackend(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Drafts = draftstore.NewStore(store, cfg.Storage.Key, log)
	a.Boundary.WithCountStore(recoveryCounter{drafts: a.Drafts})
	a.Autosaver = draftstore.NewAutosaver(a.Drafts, wizard.SliceKey)
	a.closers = append(a.closers, func() error { a.Autosaver.Close(); return nil })

	a.Validator = form.NewValidator(cfg.Form.SituationMinLength, now)
	env := wizard.Env{Now: now, Validator: a.Validator}
	a.Form = wizard.NewStore(wizard.Restore(a.Drafts, log), env, log)
	a.unsubscribe = a.Form.Subscribe(func(s wizard.State) { a.Autosaver.Schedule(s) })

	gen := opts.Generator
	if gen == nil {
		gen = genai.NewClient(cfg.GenAI, nil, log)
	}
	a.Assistant = assistant.New(gen, a.Form, assistant.Config{
		MinLength:     cfg.Form.AssistMinLength,
		RequiresDraft: cfg.Form.AssistRequiresDraft,
		Policy:        retry.FromRetries(cfg.GenAI.MaxRetries, config.GetDuration(cfg.GenAI.BaseDelay)),
	}, opts.Recorder, log)

	sub := opts.Submitter
	if sub == nil {
		sub = newSubmitter(cfg.Submission, log)
	}
	a.Submission = submission.NewOrchestrator(sub, a.Form, a.Autosaver,
		retry.FromRetries(cfg.Submission.MaxRetries, config.GetDuration(cfg.Submission.BaseDelay)),
		opts.Recorder, log)

	log.Debug("Session restored", map[string]interface{}{
		"storage":     cfg.Storage.Backend,
		"currentStep": a.Form.State().CurrentStep,
	})
	return a, nil
}

func (a *App) openBackend(ctx context.Context) (draftstore.Backend, error) {
	cfg := a.Config
	switch cfg.Storage.Backend {
	case "memory":
		return draftstore.NewMemoryBackend(), nil

	case "file":
		return draftstore.NewFileBackend(cfg.Storage.Directory)

	case "redis":
		client, err := database.NewRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)

		policy := retry.FromRetries(2, 500*time.Millisecond)
		policy.IsRetryable = func(error) bool { return true }
		policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			a.Logger.Warn("Redis connection failed, retrying", map[string]interface{}{
				"attempt":     attempt,
				"nextRetryIn": delay.String(),
				"error":       err.Error(),
			})
		}
		if err := retry.Do(ctx, policy, func(ctx context.Context, _ int) error {
			return client.Ping(ctx)
		}); err != nil {
			return nil, fmt.Errorf("redis storage unavailable: %w", err)
		}
		return draftstore.NewRedisBackend(client, redisKeyPrefix), nil

	case "sqlite":
		client, err := database.NewSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return draftstore.NewSQLiteBackend(client), nil
	}
	return nil, fmt.Errorf("storage backend %q is not supported", cfg.Storage.Backend)
}

func newSubmitter(cfg config.SubmissionConfig, log logger.Logger) submission.Submitter {
	if cfg.Mode == "http" {
		return backend.NewClient(cfg, nil, log)
	}
	return backend.NewSimulator(config.GetDuration(cfg.SimulatedDelay))
}

// ClearLocalData removes everything persisted under the storage key and
// resets the wizard. Offered by the recovery screen after repeated failures.
func (a *App) ClearLocalData() {
	a.Form.ResetAll()
	a.Autosaver.RemoveSlice(wizard.SliceKey)
	a.Drafts.Clear()
	a.Boundary.Reset()
}

// Close cancels any AI session, flushes pending saves and releases storage.
func (a *App) Close() error {
	if a.Assistant != nil {
		a.Assistant.Close()
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	var firstErr error
	// reverse order: the autosaver flushes before its backend closes
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
