// Package form holds the application draft model, its per-step validators and
// the patch boundary that rejects unknown keys.
package form

import (
	"time"
)

// StepKey names a slice of the draft that one wizard step edits.
type StepKey string

const (
	StepPersonal  StepKey = "personal"
	StepFamily    StepKey = "family"
	StepSituation StepKey = "situation"
)

// StepCount is the number of wizard steps.
const StepCount = 3

var steps = [StepCount]StepKey{StepPersonal, StepFamily, StepSituation}

// StepAt maps a step index to its key.
func StepAt(index int) (StepKey, bool) {
	if index < 0 || index >= StepCount {
		return "", false
	}
	return steps[index], true
}

// Index returns the step position, or -1 for an unknown key.
func (k StepKey) Index() int {
	for i, s := range steps {
		if s == k {
			return i
		}
	}
	return -1
}

// Steps lists the step keys in wizard order.
func Steps() []StepKey {
	out := make([]StepKey, StepCount)
	copy(out, steps[:])
	return out
}

// Language is the UI and generation language.
type Language string

const (
	LanguagePrimary   Language = "en"
	LanguageSecondary Language = "ar"
)

// DisplayName is the language name used inside generation prompts.
func (l Language) DisplayName() string {
	if l == LanguageSecondary {
		return "Arabic"
	}
	return "English"
}

func ParseLanguage(s string) (Language, bool) {
	switch Language(s) {
	case LanguagePrimary, LanguageSecondary:
		return Language(s), true
	}
	return "", false
}

type Personal struct {
	Name             string `json:"name"`
	NationalID       string `json:"nationalId"`
	DOB              string `json:"dob"`
	Gender           string `json:"gender"`
	Address          string `json:"address"`
	City             string `json:"city"`
	State            string `json:"state"`
	Country          string `json:"country"`
	PhoneCountryCode string `json:"phoneCountryCode"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
}

type Family struct {
	MaritalStatus    string  `json:"maritalStatus"`
	Dependents       Numeric `json:"dependents"`
	EmploymentStatus string  `json:"employmentStatus"`
	IncomeCurrency   string  `json:"incomeCurrency"`
	MonthlyIncome    Numeric `json:"monthlyIncome"`
	HousingStatus    string  `json:"housingStatus"`
}

type Situation struct {
	FinancialSituation      string `json:"financialSituation"`
	EmploymentCircumstances string `json:"employmentCircumstances"`
	ReasonForApplying       string `json:"reasonForApplying"`
}

// Situation field keys, also the targets of the AI draft assistant.
const (
	FieldFinancialSituation      = "financialSituation"
	FieldEmploymentCircumstances = "employmentCircumstances"
	FieldReasonForApplying       = "reasonForApplying"
)

// Get returns the value of a situation field.
func (s Situation) Get(field string) (string, bool) {
	switch field {
	case FieldFinancialSituation:
		return s.FinancialSituation, true
	case FieldEmploymentCircumstances:
		return s.EmploymentCircumstances, true
	case FieldReasonForApplying:
		return s.ReasonForApplying, true
	}
	return "", false
}

type Meta struct {
	LastSavedAt *time.Time `json:"lastSavedAt,omitempty"`
	Language    Language   `json:"language"`
}

// ApplicationDraft is the in-progress answer set. The three step slices are
// always present.
type ApplicationDraft struct {
	Personal  Personal  `json:"personal"`
	Family    Family    `json:"family"`
	Situation Situation `json:"situation"`
	Meta      Meta      `json:"meta"`
}

// EmptyDraft returns a draft with every field blank.
func EmptyDraft() ApplicationDraft {
	return ApplicationDraft{Meta: Meta{Language: LanguagePrimary}}
}

// Language falls back to the primary language.
func (d ApplicationDraft) Language() Language {
	if lang, ok := ParseLanguage(string(d.Meta.Language)); ok {
		return lang
	}
	return LanguagePrimary
}
