// internal/common/validation/schema.go

// Package validation checks inbound payloads against JSON schemas before
// they reach the conversation core.
package validation

import (
	"fmt"
	"strings"

	apperrors "loan-advisor/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// ChatRequestSchema describes the body of POST /chat and the variables of
// the loan-process-message job. data_update keys are normalized downstream,
// so only the common spellings are typed here.
const ChatRequestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"customer_id":    {"type": "string", "maxLength": 128},
		"application_id": {"type": "string", "maxLength": 64},
		"message":        {"type": "string", "maxLength": 4000},
		"data_update": {
			"type": "object",
			"properties": {
				"name":          {"type": "string", "maxLength": 200},
				"email":         {"type": "string", "format": "email"},
				"phone":         {"type": "string", "pattern": "^\\+?[0-9][0-9 \\-]{8,15}$"},
				"pan":           {"type": "string", "pattern": "^[A-Za-z]{5}[0-9]{4}[A-Za-z]$"},
				"aadhar":        {"type": "string", "pattern": "^[0-9]{12}$"},
				"salary":        {"type": "number", "minimum": 0},
				"credit_score":  {"type": "number", "minimum": 300, "maximum": 900},
				"loan_amount":   {"type": "number", "minimum": 1},
				"interest_rate": {"type": "number", "minimum": 0, "maximum": 100},
				"tenure_months": {"type": "number", "minimum": 1, "maximum": 360},
				"status":        {"type": "string"}
			}
		}
	},
	"required": ["message"],
	"anyOf": [
		{"required": ["customer_id"]},
		{"required": ["application_id"]}
	]
}`

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validator holds one compiled schema and is safe for concurrent use.
type Validator struct {
	schema *gojsonschema.Schema
}

func NewValidator(schemaJSON string) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// MustValidator panics on an invalid schema. Use it for package-level schemas.
func MustValidator(schemaJSON string) *Validator {
	v, err := NewValidator(schemaJSON)
	if err != nil {
		panic(err)
	}
	return v
}

var chatRequest = MustValidator(ChatRequestSchema)

// ValidateChatRequest validates a raw JSON body.
func ValidateChatRequest(body []byte) *ValidationResult {
	return chatRequest.validate(gojsonschema.NewBytesLoader(body))
}

// ValidateChatVariables validates an already decoded document, such as job
// variables.
func ValidateChatVariables(doc map[string]interface{}) *ValidationResult {
	return chatRequest.Validate(doc)
}

// Validate checks a Go value (map, struct or slice) against the schema.
func (v *Validator) Validate(doc interface{}) *ValidationResult {
	return v.validate(gojsonschema.NewGoLoader(doc))
}

func (v *Validator) validate(doc gojsonschema.JSONLoader) *ValidationResult {
	result, err := v.schema.Validate(doc)
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: err.Error(),
			Code:    "INVALID_DOCUMENT",
		}}}
	}
	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Err converts a failed result into a validation StandardError, or nil.
func (vr *ValidationResult) Err() error {
	if vr.Valid {
		return nil
	}
	return apperrors.NewValidationError(strings.Join(vr.GetErrorMessages(), "; "))
}
