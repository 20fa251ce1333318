package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-support/internal/assistant"
	"social-support/internal/common/backend"
	"social-support/internal/common/config"
	apperrors "social-support/internal/common/errors"
	"social-support/internal/common/genai"
	"social-support/internal/common/logger"
	"social-support/internal/draftstore"
	"social-support/internal/form"
	"social-support/internal/wizard"
)

var clock = time.Date(2024, time.June, 15, 9, 30, 0, 0, time.UTC)

func testConfig(backendName string) *config.Config {
	return &config.Config{
		Form: config.FormConfig{
			SituationMinLength:  form.DefaultSituationMinLength,
			AssistMinLength:     form.DefaultSituationMinLength,
			AssistRequiresDraft: true,
		},
		GenAI:      config.GenAIConfig{MaxRetries: 2, BaseDelay: 1},
		Submission: config.SubmissionConfig{Mode: "simulated", MaxRetries: 2, BaseDelay: 1},
		Storage:    config.StorageConfig{Backend: backendName, Key: draftstore.DefaultKey},
	}
}

type cannedGenerator string

func (g cannedGenerator) Generate(context.Context, genai.Request) (string, error) {
	return string(g), nil
}

func open(t *testing.T, cfg *config.Config, opts Options) *App {
	t.Helper()
	opts.Now = func() time.Time { return clock }
	a, err := New(context.Background(), cfg, logger.NewTestLogger(t), opts)
	require.NoError(t, err)
	return a
}

func fillPersonalAndFamily(t *testing.T, a *App) {
	require.NoError(t, a.Form.UpdateStep(form.StepPersonal, map[string]interface{}{
		"name":             "Jane Doe",
		"nationalId":       "784199012345678",
		"dob":              "1990-04-12",
		"gender":           "female",
		"country":          "AE",
		"phoneCountryCode": "+971",
		"phone":            "501234567",
		"email":            "jane@example.com",
	}))
	res, moved := a.Form.GoNext()
	require.True(t, moved, "personal step errors: %v", res.FieldErrors)

	require.NoError(t, a.Form.UpdateStep(form.StepFamily, map[string]interface{}{
		"maritalStatus":    "married",
		"dependents":       3,
		"employmentStatus": "unemployed",
		"incomeCurrency":   "AED",
		"monthlyIncome":    "1200",
		"housingStatus":    "rented",
	}))
	res, moved = a.Form.GoNext()
	require.True(t, moved, "family step errors: %v", res.FieldErrors)
}

// ==========================
// End-to-end flows
// ==========================

func TestFlow_AssistAndSubmit(t *testing.T) {
	store := draftstore.NewMemoryBackend()
	cfg := testConfig("memory")
	a := open(t, cfg, Options{
		Backend:   store,
		Generator: cannedGenerator("Since my husband lost his job our savings have run out."),
		Submitter: &backend.Simulator{},
	})

	fillPersonalAndFamily(t, a)
	require.NoError(t, a.Form.UpdateStep(form.StepSituation, map[string]interface{}{
		form.FieldFinancialSituation:      "We cannot pay rent.",
		form.FieldEmploymentCircumstances: "Both of us are out of work now.",
		form.FieldReasonForApplying:       "Support until we find new jobs.",
	}))

	ctx := context.Background()
	require.NoError(t, a.Assistant.Open(ctx, form.FieldFinancialSituation, a.Form.State().Draft, assistant.Options{}))
	require.NoError(t, a.Assistant.Wait(ctx))
	res, err := a.Assistant.Accept()
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Equal(t, "Since my husband lost his job our savings have run out.",
		a.Form.State().Draft.Situation.FinancialSituation)

	id, err := a.Submission.Submit(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^SSA-\d{6}-[A-Z0-9]{6}$`, id)
	require.NoError(t, a.Close())

	reopened := open(t, cfg, Options{Backend: store})
	defer reopened.Close()
	assert.Equal(t, wizard.InitialState(), reopened.Form.State())
}

func TestFlow_SubmissionFailureKeepsDraft(t *testing.T) {
	store := draftstore.NewMemoryBackend()
	cfg := testConfig("memory")
	a := open(t, cfg, Options{
		Backend:   store,
		Submitter: &backend.Simulator{Fail: apperrors.NewSubmissionRejectedError(400, "Duplicate national ID.")},
	})
	fillPersonalAndFamily(t, a)
	before := a.Form.State()

	_, err := a.Submission.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Duplicate national ID.", apperrors.UserMessage(err))
	require.NoError(t, a.Close())

	reopened := open(t, cfg, Options{Backend: store})
	defer reopened.Close()
	got := reopened.Form.State()
	assert.Equal(t, before.CurrentStep, got.CurrentStep)
	assert.Equal(t, before.Draft.Personal, got.Draft.Personal)
	assert.Equal(t, before.Draft.Family, got.Draft.Family)
}

func TestFlow_ProgressSurvivesRestart(t *testing.T) {
	cfg := testConfig("file")
	cfg.Storage.Directory = t.TempDir()

	a := open(t, cfg, Options{})
	fillPersonalAndFamily(t, a)
	a.Form.SetLanguage(form.LanguageSecondary)
	require.NoError(t, a.Close())

	reopened := open(t, cfg, Options{})
	defer reopened.Close()
	s := reopened.Form.State()
	assert.Equal(t, 2, s.CurrentStep)
	assert.Equal(t, "Jane Doe", s.Draft.Personal.Name)
	assert.Equal(t, form.Numeric("3"), s.Draft.Family.Dependents)
	assert.Equal(t, form.LanguageSecondary, s.Draft.Meta.Language)
	require.NotNil(t, s.Draft.Meta.LastSavedAt)
	assert.True(t, clock.Equal(*s.Draft.Meta.LastSavedAt))
}

func TestClearLocalData(t *testing.T) {
	store := draftstore.NewMemoryBackend()
	a := open(t, testConfig("memory"), Options{Backend: store})
	defer a.Close()
	fillPersonalAndFamily(t, a)
	a.Autosaver.Flush()
	a.Boundary.Recover(apperrors.NewUnhandledRuntimeError("boom"))

	a.ClearLocalData()

	_, found, err := store.Get(context.Background(), draftstore.DefaultKey)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, a.Form.State().CurrentStep)
	assert.Equal(t, 0, a.Boundary.Count())
}

func TestRecoveryCount_SurvivesRestart(t *testing.T) {
	store := draftstore.NewMemoryBackend()
	cfg := testConfig("memory")
	failure := apperrors.NewUnhandledRuntimeError("boom")

	for i := 0; i < apperrors.SuggestClearCacheAfter; i++ {
		a := open(t, cfg, Options{Backend: store})
		assert.False(t, a.Boundary.Recover(failure).SuggestClearCache)
		require.NoError(t, a.Close())
	}

	a := open(t, cfg, Options{Backend: store})
	defer a.Close()
	fillPersonalAndFamily(t, a)
	assert.Equal(t, apperrors.SuggestClearCacheAfter, a.Boundary.Count())
	assert.True(t, a.Boundary.Recover(failure).SuggestClearCache)

	a.ClearLocalData()
	assert.Equal(t, 0, a.Boundary.Count())
	_, found, err := store.Get(context.Background(), draftstore.DefaultKey)
	require.NoError(t, err)
	assert.False(t, found)

	reopened := open(t, cfg, Options{Backend: store})
	defer reopened.Close()
	assert.Equal(t, 0, reopened.Boundary.Count())
}

// ==========================
// Storage backends
// ==========================

func TestNew_StorageBackends(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name      string
		configure func(cfg *config.Config)
	}{
		{"file", func(cfg *config.Config) { cfg.Storage.Directory = t.TempDir() }},
		{"sqlite", func(cfg *config.Config) { cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "drafts.db") }},
		{"redis", func(cfg *config.Config) { cfg.Redis = config.RedisConfig{Address: mr.Addr(), Timeout: 500} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(tt.name)
			tt.configure(cfg)

			a := open(t, cfg, Options{})
			require.NoError(t, a.Form.UpdateStep(form.StepPersonal, map[string]interface{}{"name": "Jane Doe"}))
			require.NoError(t, a.Close())

			reopened := open(t, cfg, Options{})
			defer reopened.Close()
			assert.Equal(t, "Jane Doe", reopened.Form.State().Draft.Personal.Name)
		})
	}
	assert.True(t, mr.Exists(redisKeyPrefix+draftstore.DefaultKey))
}

func TestNew_RedisUnavailable(t *testing.T) {
	cfg := testConfig("redis")
	cfg.Redis = config.RedisConfig{Address: "127.0.0.1:1", Timeout: 100}

	_, err := New(context.Background(), cfg, logger.NewNoOpLogger(), Options{})
	assert.ErrorContains(t, err, "redis storage unavailable")
}

func TestNew_UnsupportedBackend(t *testing.T) {
	_, err := New(context.Background(), testConfig("floppy"), logger.NewNoOpLogger(), Options{})
	assert.Error(t, err)
}
