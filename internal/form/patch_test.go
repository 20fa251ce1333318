package form

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "social-support/internal/common/errors"
	"social-support/internal/common/validation"
)

// ==========================
// NewPatch
// ==========================

func TestNewPatch_RejectsUnknownKeys(t *testing.T) {
	_, err := NewPatch(StepPersonal, map[string]interface{}{
		"name":     "Jane",
		"nickname": "JD",
	})
	require.Error(t, err)

	stdErr, ok := apperrors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeInvalidPatch, stdErr.Code)
	fieldErrors := stdErr.Metadata["fieldErrors"].(map[string]validation.ReasonCode)
	assert.Equal(t, validation.ReasonUnknownField, fieldErrors["nickname"])
	assert.NotContains(t, fieldErrors, "name")
}

func TestNewPatch_RejectsWrongTypes(t *testing.T) {
	_, err := NewPatch(StepPersonal, map[string]interface{}{"name": 42})
	require.Error(t, err)

	_, err = NewPatch(StepFamily, map[string]interface{}{"maritalStatus": true})
	require.Error(t, err)
}

func TestNewPatch_AcceptsNumbersAndStringsForNumericFields(t *testing.T) {
	for _, v := range []interface{}{2, 2.0, "2", "two", nil} {
		_, err := NewPatch(StepFamily, map[string]interface{}{"dependents": v})
		assert.NoError(t, err, "%v", v)
	}
}

func TestNewPatch_UnknownStep(t *testing.T) {
	_, err := NewPatch(StepKey("meta"), map[string]interface{}{})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidPatch))
}

func TestNewPatch_CopiesValues(t *testing.T) {
	values := map[string]interface{}{"name": "Jane"}
	p, err := NewPatch(StepPersonal, values)
	require.NoError(t, err)

	values["name"] = "Changed"
	assert.Equal(t, "Jane", p.Values["name"])
}

// ==========================
// Apply
// ==========================

func TestApply_ShallowMerge(t *testing.T) {
	d := EmptyDraft()
	d.Personal = validPersonal()

	updated, err := d.Apply(MustPatch(StepPersonal, map[string]interface{}{"city": "Abu Dhabi"}))
	require.NoError(t, err)

	assert.Equal(t, "Abu Dhabi", updated.Personal.City)
	assert.Equal(t, d.Personal.Name, updated.Personal.Name)
	assert.Equal(t, d.Personal.Email, updated.Personal.Email)
	assert.Equal(t, "Dubai", d.Personal.City, "input draft must stay untouched")
}

func TestApply_Idempotent(t *testing.T) {
	p := MustPatch(StepFamily, map[string]interface{}{"dependents": 3, "monthlyIncome": 1200.5})

	once, err := EmptyDraft().Apply(p)
	require.NoError(t, err)
	twice, err := once.Apply(p)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, Numeric("3"), once.Family.Dependents)
	assert.Equal(t, Numeric("1200.5"), once.Family.MonthlyIncome)
}

func TestApply_OtherSlicesUntouched(t *testing.T) {
	d := EmptyDraft()
	d.Family = validFamily()

	updated, err := d.Apply(MustPatch(StepSituation, map[string]interface{}{
		FieldReasonForApplying: "Need help with rent",
	}))
	require.NoError(t, err)
	assert.Equal(t, d.Family, updated.Family)
	assert.Equal(t, "Need help with rent", updated.Situation.ReasonForApplying)
}

func TestApply_OutOfRangeNumberCanBeCorrected(t *testing.T) {
	d, err := EmptyDraft().Apply(MustPatch(StepFamily, map[string]interface{}{"monthlyIncome": "1e400"}))
	require.NoError(t, err)
	assert.Equal(t, Numeric("1e400"), d.Family.MonthlyIncome)

	d, err = d.Apply(MustPatch(StepFamily, map[string]interface{}{"maritalStatus": "single"}))
	require.NoError(t, err)
	assert.Equal(t, "single", d.Family.MaritalStatus)
	assert.Equal(t, Numeric("1e400"), d.Family.MonthlyIncome)

	d, err = d.Apply(MustPatch(StepFamily, map[string]interface{}{"monthlyIncome": "5000"}))
	require.NoError(t, err)
	assert.Equal(t, Numeric("5000"), d.Family.MonthlyIncome)
}

func TestApply_KeepsNumericTextOnUnrelatedUpdate(t *testing.T) {
	d := EmptyDraft()
	d.Family = validFamily()
	d.Family.MonthlyIncome = Numeric("12345678901234567890")
	d.Family.Dependents = Numeric("2.50")

	updated, err := d.Apply(MustPatch(StepFamily, map[string]interface{}{"housingStatus": "owned"}))
	require.NoError(t, err)

	assert.Equal(t, Numeric("12345678901234567890"), updated.Family.MonthlyIncome)
	assert.Equal(t, Numeric("2.50"), updated.Family.Dependents)
	assert.Equal(t, "owned", updated.Family.HousingStatus)
}

// ==========================
// Numeric encoding
// ==========================

func TestNumeric_JSON(t *testing.T) {
	tests := []struct {
		value Numeric
		json  string
	}{
		{"2", `2`},
		{"2500.75", `2500.75`},
		{"abc", `"abc"`},
		{"", `null`},
		{"007", `"007"`},
	}
	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(data))

			var back Numeric
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.value, back)
		})
	}

	var n Numeric
	assert.Error(t, json.Unmarshal([]byte(`true`), &n))
}

func TestDraft_JSONRoundTrip(t *testing.T) {
	saved := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	d := ApplicationDraft{
		Personal:  validPersonal(),
		Family:    validFamily(),
		Situation: validSituation(),
		Meta:      Meta{LastSavedAt: &saved, Language: LanguageSecondary},
	}

	data, err := json.Marshal(d)
	require.NoError(t, err)

	var back ApplicationDraft
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, d.Personal, back.Personal)
	assert.Equal(t, d.Family, back.Family)
	assert.True(t, saved.Equal(*back.Meta.LastSavedAt))
	assert.Equal(t, LanguageSecondary, back.Language())
}

func TestStepAt(t *testing.T) {
	for i, want := range []StepKey{StepPersonal, StepFamily, StepSituation} {
		got, ok := StepAt(i)
		assert.True(t, ok)
		assert.Equal(t, want, got)
		assert.Equal(t, i, got.Index())
	}
	_, ok := StepAt(3)
	assert.False(t, ok)
	assert.Equal(t, -1, StepKey("meta").Index())
}
