package validation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ReasonCode is the symbolic reason a field failed. The presentation layer
// maps it to a localized message.
type ReasonCode string

const (
	ReasonRequired      ReasonCode = "required"
	ReasonFormatInvalid ReasonCode = "formatInvalid"
	ReasonOutOfRange    ReasonCode = "outOfRange"
	ReasonMinLength     ReasonCode = "minLength"
	ReasonNotAllowed    ReasonCode = "notAllowed"
	ReasonUnderage      ReasonCode = "underage"
	ReasonUnknownField  ReasonCode = "unknownField"
)

// Rule checks one value and returns the failure reason, or "" when it passes.
type Rule func(value string) ReasonCode

// Result is the outcome of validating a step slice.
type Result struct {
	IsValid     bool                  `json:"isValid"`
	FieldErrors map[string]ReasonCode `json:"fieldErrors"`
}

// Collector accumulates field failures, one reason per field.
type Collector struct {
	errs map[string]ReasonCode
}

func NewCollector() *Collector {
	return &Collector{errs: make(map[string]ReasonCode)}
}

// Check folds rules over value and records the first failure under field.
func (c *Collector) Check(field, value string, rules ...Rule) {
	if reason := Field(value, rules...); reason != "" {
		c.errs[field] = reason
	}
}

// Fail records a reason directly.
func (c *Collector) Fail(field string, reason ReasonCode) {
	c.errs[field] = reason
}

func (c *Collector) Result() Result {
	return Result{IsValid: len(c.errs) == 0, FieldErrors: c.errs}
}

// Field applies rules in order and stops at the first failure.
func Field(value string, rules ...Rule) ReasonCode {
	for _, rule := range rules {
		if reason := rule(value); reason != "" {
			return reason
		}
	}
	return ""
}

// Optional runs rules only when the trimmed value is non-empty.
func Optional(rules ...Rule) Rule {
	return func(value string) ReasonCode {
		if strings.TrimSpace(value) == "" {
			return ""
		}
		return Field(value, rules...)
	}
}

func Required() Rule {
	return func(value string) ReasonCode {
		if strings.TrimSpace(value) == "" {
			return ReasonRequired
		}
		return ""
	}
}

func Pattern(re *regexp.Regexp) Rule {
	return func(value string) ReasonCode {
		if !re.MatchString(value) {
			return ReasonFormatInvalid
		}
		return ""
	}
}

// MinLength counts characters, not bytes.
func MinLength(n int) Rule {
	return func(value string) ReasonCode {
		if utf8.RuneCountInString(value) < n {
			return ReasonMinLength
		}
		return ""
	}
}

// TrimmedMinLength counts characters after trimming surrounding whitespace.
func TrimmedMinLength(n int) Rule {
	return func(value string) ReasonCode {
		return MinLength(n)(strings.TrimSpace(value))
	}
}

func OneOf(allowed ...string) Rule {
	return func(value string) ReasonCode {
		for _, a := range allowed {
			if value == a {
				return ""
			}
		}
		return ReasonNotAllowed
	}
}

// IntRange requires a base-10 integer within [min, max].
func IntRange(min, max int) Rule {
	return func(value string) ReasonCode {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return ReasonFormatInvalid
		}
		if n < min || n > max {
			return ReasonOutOfRange
		}
		return ""
	}
}

// PositiveAtMost requires a finite number in (0, max].
func PositiveAtMost(max float64) Rule {
	return func(value string) ReasonCode {
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || f != f {
			return ReasonFormatInvalid
		}
		if f <= 0 || f > max {
			return ReasonOutOfRange
		}
		return ""
	}
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func Email() Rule {
	return func(value string) ReasonCode {
		if !ValidateEmail(value) {
			return ReasonFormatInvalid
		}
		return ""
	}
}
