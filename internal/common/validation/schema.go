package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema is the subset of JSON Schema used to describe patch documents.
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties"`
}

type Property struct {
	Type        interface{} `json:"type"` // string or []string
	Description string      `json:"description,omitempty"`
}

// ValidationError is a single schema violation.
type ValidationError struct {
	Field   string     `json:"field"`
	Message string     `json:"message"`
	Code    ReasonCode `json:"code"`
}

func (s JSONSchema) toMap() map[string]interface{} {
	props := make(map[string]interface{}, len(s.Properties))
	for name, p := range s.Properties {
		prop := map[string]interface{}{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[name] = prop
	}
	m := map[string]interface{}{
		"type":                 s.Type,
		"properties":           props,
		"additionalProperties": s.AdditionalProperties,
	}
	if len(s.Required) > 0 {
		m["required"] = s.Required
	}
	return m
}

// ValidateDocument checks doc against schema with gojsonschema and maps the
// violations onto reason codes.
func ValidateDocument(doc map[string]interface{}, schema JSONSchema) ([]ValidationError, error) {
	schemaLoader := gojsonschema.NewGoLoader(schema.toMap())
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	out := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		code := ReasonFormatInvalid
		switch desc.Type() {
		case "additional_property_not_allowed":
			code = ReasonUnknownField
			if prop, ok := desc.Details()["property"].(string); ok {
				field = prop
			}
		case "required":
			code = ReasonRequired
			if prop, ok := desc.Details()["property"].(string); ok {
				field = prop
			}
		}
		out = append(out, ValidationError{
			Field:   field,
			Message: desc.Description(),
			Code:    code,
		})
	}
	return out, nil
}
