package form

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	apperrors "social-support/internal/common/errors"
	"social-support/internal/common/validation"
)

var stepFields = map[StepKey][]string{
	StepPersonal: {
		"name", "nationalId", "dob", "gender", "address", "city", "state",
		"country", "phoneCountryCode", "phone", "email",
	},
	StepFamily: {
		"maritalStatus", "dependents", "employmentStatus", "incomeCurrency",
		"monthlyIncome", "housingStatus",
	},
	StepSituation: {
		FieldFinancialSituation, FieldEmploymentCircumstances, FieldReasonForApplying,
	},
}

var numericFields = map[string]bool{
	"dependents":    true,
	"monthlyIncome": true,
}

// Fields lists the keys a step accepts.
func Fields(step StepKey) []string {
	return append([]string(nil), stepFields[step]...)
}

func patchSchema(step StepKey) validation.JSONSchema {
	props := make(map[string]validation.Property)
	for _, f := range stepFields[step] {
		if numericFields[f] {
			props[f] = validation.Property{Type: []string{"number", "string", "null"}}
			continue
		}
		props[f] = validation.Property{Type: "string"}
	}
	return validation.JSONSchema{Type: "object", Properties: props}
}

// Patch is a partial update of one step slice whose keys and value types have
// been checked against the step's record.
type Patch struct {
	Step   StepKey
	Values map[string]interface{}
}

// NewPatch checks values against the step's schema. Unknown keys and values of
// the wrong type are rejected with an INVALID_PATCH error carrying per-field
// reason codes under the "fieldErrors" metadata key.
func NewPatch(step StepKey, values map[string]interface{}) (Patch, error) {
	if step.Index() < 0 {
		return Patch{}, apperrors.NewInvalidPatchError(fmt.Sprintf("unknown step %q", step))
	}
	if values == nil {
		values = map[string]interface{}{}
	}

	violations, err := validation.ValidateDocument(values, patchSchema(step))
	if err != nil {
		return Patch{}, apperrors.NewInvalidPatchError(err.Error())
	}
	if len(violations) > 0 {
		fieldErrors := make(map[string]validation.ReasonCode, len(violations))
		names := make([]string, 0, len(violations))
		for _, v := range violations {
			fieldErrors[v.Field] = v.Code
			names = append(names, fmt.Sprintf("%s: %s", v.Field, v.Code))
		}
		sort.Strings(names)
		return Patch{}, apperrors.NewInvalidPatchError(strings.Join(names, ", ")).
			WithMetadata("step", string(step)).
			WithMetadata("fieldErrors", fieldErrors)
	}

	copied := make(map[string]interface{}, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Patch{Step: step, Values: copied}, nil
}

// MustPatch is NewPatch for literals known to be valid.
func MustPatch(step StepKey, values map[string]interface{}) Patch {
	p, err := NewPatch(step, values)
	if err != nil {
		panic(err)
	}
	return p
}

// Apply shallow-merges the patch into the matching slice and returns the
// updated draft. Keys absent from the patch keep their values.
func (d ApplicationDraft) Apply(p Patch) (ApplicationDraft, error) {
	if len(p.Values) == 0 {
		return d, nil
	}
	switch p.Step {
	case StepPersonal:
		return d, mergeInto(&d.Personal, p.Values)
	case StepFamily:
		return d, mergeInto(&d.Family, p.Values)
	case StepSituation:
		return d, mergeInto(&d.Situation, p.Values)
	}
	return d, apperrors.NewInvalidPatchError(fmt.Sprintf("unknown step %q", p.Step))
}

func mergeInto(slice interface{}, values map[string]interface{}) error {
	current, err := json.Marshal(slice)
	if err != nil {
		return err
	}
	// numbers stay json.Number so stored text survives the round trip
	merged := make(map[string]interface{})
	dec := json.NewDecoder(bytes.NewReader(current))
	dec.UseNumber()
	if err := dec.Decode(&merged); err != nil {
		return err
	}
	for k, v := range values {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, slice)
}
