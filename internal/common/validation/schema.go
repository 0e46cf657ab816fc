package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema used to check model payloads before they
// are trusted.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Compile parses a JSON schema document.
func Compile(name, source string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: compiled}, nil
}

// MustCompile is Compile for package-level schema literals.
func MustCompile(name, source string) *Schema {
	s, err := Compile(name, source)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string { return s.name }

// ValidateJSON validates a raw JSON document. A document that is not JSON at
// all yields an error rather than a result.
func (s *Schema) ValidateJSON(raw []byte) (*ValidationResult, error) {
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%s: payload is not valid JSON", s.name)
	}
	return s.validate(gojsonschema.NewBytesLoader(raw))
}

// ValidateValue validates an already decoded Go value.
func (s *Schema) ValidateValue(v interface{}) (*ValidationResult, error) {
	return s.validate(gojsonschema.NewGoLoader(v))
}

func (s *Schema) validate(doc gojsonschema.JSONLoader) (*ValidationResult, error) {
	result, err := s.schema.Validate(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	return out, nil
}

// DecodeValidated validates raw against s and, when valid, unmarshals it into out.
func (s *Schema) DecodeValidated(raw []byte, out interface{}) error {
	result, err := s.ValidateJSON(raw)
	if err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("%s: %s", s.name, strings.Join(result.GetErrorMessages(), "; "))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}

// GetErrorMessages returns formatted error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}
