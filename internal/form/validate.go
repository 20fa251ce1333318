package form

import (
	"regexp"
	"strings"
	"time"

	"social-support/internal/common/validation"
)

const (
	MinimumAge    = 18
	MaxDependents = 20
	MaxIncome     = 10_000_000

	// DefaultSituationMinLength is the minimum trimmed length of each
	// situation answer.
	DefaultSituationMinLength = 15

	dateLayout = "2006-01-02"
)

var (
	namePattern        = regexp.MustCompile(`^[A-Za-z\s]+$`)
	lettersPattern     = regexp.MustCompile(`^[A-Za-z\s]+$`)
	nationalIDPattern  = regexp.MustCompile(`^\d{15}$`)
	phonePattern       = regexp.MustCompile(`^\d{7,12}$`)
	countryCodePattern = regexp.MustCompile(`^\+\d{1,4}$`)
	currencyPattern    = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Validator checks step slices. It is pure apart from the injected clock.
type Validator struct {
	now                func() time.Time
	situationMinLength int
}

// NewValidator uses time.Now when now is nil and the default minimum length
// when situationMinLength is not positive.
func NewValidator(situationMinLength int, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	if situationMinLength <= 0 {
		situationMinLength = DefaultSituationMinLength
	}
	return &Validator{now: now, situationMinLength: situationMinLength}
}

func (v *Validator) SituationMinLength() int { return v.situationMinLength }

// ValidateStep validates the slice that step index edits.
func (v *Validator) ValidateStep(index int, d ApplicationDraft) validation.Result {
	switch index {
	case 0:
		return v.ValidatePersonal(d.Personal)
	case 1:
		return v.ValidateFamily(d.Family)
	case 2:
		return v.ValidateSituation(d.Situation)
	}
	c := validation.NewCollector()
	c.Fail("step", validation.ReasonOutOfRange)
	return c.Result()
}

// ValidateAll validates every step.
func (v *Validator) ValidateAll(d ApplicationDraft) map[StepKey]validation.Result {
	out := make(map[StepKey]validation.Result, StepCount)
	for i, step := range steps {
		out[step] = v.ValidateStep(i, d)
	}
	return out
}

func (v *Validator) ValidatePersonal(p Personal) validation.Result {
	c := validation.NewCollector()
	c.Check("name", p.Name, validation.Required(), validation.Pattern(namePattern), validation.MinLength(2))
	c.Check("nationalId", p.NationalID, validation.Required(), validation.Pattern(nationalIDPattern))
	c.Check("dob", p.DOB, validation.Required(), v.adult())
	c.Check("gender", p.Gender, validation.Required(), validation.OneOf(Genders...))
	c.Check("address", p.Address, validation.Optional(validation.MinLength(5)))
	c.Check("city", p.City, validation.Optional(validation.Pattern(lettersPattern)))
	c.Check("state", p.State, validation.Optional(validation.Pattern(lettersPattern)))
	c.Check("country", p.Country, validation.Required())
	c.Check("phoneCountryCode", p.PhoneCountryCode, validation.Required(), validation.Pattern(countryCodePattern))
	c.Check("phone", p.Phone, validation.Required(), validation.Pattern(phonePattern))
	c.Check("email", p.Email, validation.Required(), validation.Email())
	return c.Result()
}

func (v *Validator) ValidateFamily(f Family) validation.Result {
	c := validation.NewCollector()
	c.Check("maritalStatus", f.MaritalStatus, validation.Required(), validation.OneOf(MaritalStatuses...))
	c.Check("dependents", f.Dependents.String(), validation.Required(), validation.IntRange(0, MaxDependents))
	c.Check("employmentStatus", f.EmploymentStatus, validation.Required(), validation.OneOf(EmploymentStatuses...))
	c.Check("incomeCurrency", f.IncomeCurrency, validation.Required(), validation.Pattern(currencyPattern))
	c.Check("monthlyIncome", f.MonthlyIncome.String(), validation.Required(), validation.PositiveAtMost(MaxIncome))
	c.Check("housingStatus", f.HousingStatus, validation.Required(), validation.OneOf(HousingStatuses...))
	return c.Result()
}

func (v *Validator) ValidateSituation(s Situation) validation.Result {
	c := validation.NewCollector()
	for _, field := range stepFields[StepSituation] {
		value, _ := s.Get(field)
		c.Check(field, value, validation.Required(), validation.TrimmedMinLength(v.situationMinLength))
	}
	return c.Result()
}

// adult requires a YYYY-MM-DD date at least MinimumAge years before today,
// compared by year, month and day so the birthday itself qualifies.
func (v *Validator) adult() validation.Rule {
	return func(value string) validation.ReasonCode {
		dob, err := time.Parse(dateLayout, strings.TrimSpace(value))
		if err != nil {
			return validation.ReasonFormatInvalid
		}
		if !IsAdult(dob, v.now()) {
			return validation.ReasonUnderage
		}
		return ""
	}
}

// IsAdult reports whether someone born on dob is at least MinimumAge on the
// calendar date of today.
func IsAdult(dob, today time.Time) bool {
	y, m, d := today.Date()
	by, bm, bd := dob.Date()
	by += MinimumAge
	if y != by {
		return y > by
	}
	if m != bm {
		return m > bm
	}
	return d >= bd
}
