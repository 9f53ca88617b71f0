package models

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// FieldType discriminates the kinds of form fields a template can declare.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldTextarea    FieldType = "textarea"
	FieldNumber      FieldType = "number"
	FieldDate        FieldType = "date"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multiselect"
	FieldCheckbox    FieldType = "checkbox"
	FieldFile        FieldType = "file"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldNumber, FieldDate,
		FieldSelect, FieldMultiSelect, FieldCheckbox, FieldFile:
		return true
	}
	return false
}

// NeedsOptions reports whether the type requires a declared option list.
func (t FieldType) NeedsOptions() bool {
	return t == FieldSelect || t == FieldMultiSelect
}

// FieldDefinition declares one field of a template's form schema. Options
// only applies to select/multiselect; Min/Max only to number fields.
type FieldDefinition struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
	Min      *float64  `json:"min,omitempty"`
	Max      *float64  `json:"max,omitempty"`
}

// FieldValues is an application's submitted data, keyed by field id. Values
// have already been coerced to their canonical types by ValidateFields.
type FieldValues map[string]any

// FieldError describes a single validation failure against the schema.
type FieldError struct {
	FieldID string `json:"field_id"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.FieldID + ": " + e.Message
}

const dateLayout = "2006-01-02"

// ValidateFields checks raw submitted data against a field schema. It
// collects every failure instead of stopping at the first, and returns the
// cleaned data with values coerced to canonical types. Keys not declared in
// the schema are dropped silently so older clients keep working after a
// template gains fields.
func ValidateFields(fields []FieldDefinition, raw map[string]any) ([]FieldError, FieldValues) {
	var errs []FieldError
	clean := make(FieldValues, len(fields))

	for _, f := range fields {
		value, present := raw[f.ID]
		if !present || isEmpty(value) {
			if f.Required {
				errs = append(errs, FieldError{FieldID: f.ID, Message: "value is required"})
			}
			continue
		}

		coerced, err := coerceField(f, value)
		if err != nil {
			errs = append(errs, FieldError{FieldID: f.ID, Message: err.Error()})
			continue
		}
		clean[f.ID] = coerced
	}

	if len(errs) > 0 {
		return errs, nil
	}
	return nil, clean
}

// coerceField validates a single present value and returns its canonical
// representation.
func coerceField(f FieldDefinition, value any) (any, error) {
	switch f.Type {
	case FieldText, FieldTextarea:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", value)
		}
		return s, nil

	case FieldNumber:
		n, ok := asNumber(value)
		if !ok {
			return nil, fmt.Errorf("expected a number, got %v", value)
		}
		if f.Min != nil && n < *f.Min {
			return nil, fmt.Errorf("must be at least %v", *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return nil, fmt.Errorf("must be at most %v", *f.Max)
		}
		return n, nil

	case FieldDate:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected a date string, got %T", value)
		}
		if _, err := time.Parse(dateLayout, s); err != nil {
			return nil, fmt.Errorf("expected a date in %s form", dateLayout)
		}
		return s, nil

	case FieldSelect:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", value)
		}
		if !contains(f.Options, s) {
			return nil, fmt.Errorf("%q is not one of the declared options", s)
		}
		return s, nil

	case FieldMultiSelect:
		selected, err := asStringSlice(value)
		if err != nil {
			return nil, err
		}
		for _, s := range selected {
			if !contains(f.Options, s) {
				return nil, fmt.Errorf("%q is not one of the declared options", s)
			}
		}
		return selected, nil

	case FieldCheckbox:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected a boolean, got %T", value)
		}
		if f.Required && !b {
			return nil, fmt.Errorf("must be checked")
		}
		return b, nil

	case FieldFile:
		// File fields carry an opaque storage URL obtained from the
		// attachment store beforehand; raw bytes are never accepted here.
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected a storage URL, got %T", value)
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" {
			return nil, fmt.Errorf("expected a storage URL")
		}
		return s, nil
	}

	return nil, fmt.Errorf("unsupported field type %q", f.Type)
}

// asNumber coerces the JSON-ish values we accept into a finite float64.
// Numeric strings are coerced so HTML form submissions round-trip.
func asNumber(value any) (float64, bool) {
	var n float64
	switch v := value.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func asStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected strings, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of strings, got %T", value)
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	}
	return false
}

func contains(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}
