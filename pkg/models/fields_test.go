package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFieldsCoercesAndCleans(t *testing.T) {
	min, max := 0.0, 1000.0
	fields := []FieldDefinition{
		{ID: "amount", Label: "Amount", Type: FieldNumber, Required: true, Min: &min, Max: &max},
		{ID: "memo", Label: "Memo", Type: FieldTextarea},
		{ID: "when", Label: "When", Type: FieldDate},
		{ID: "tags", Label: "Tags", Type: FieldMultiSelect, Options: []string{"a", "b", "c"}},
	}

	errs, clean := ValidateFields(fields, map[string]any{
		"amount":  "42.5", // form submissions arrive as strings
		"when":    "2026-08-24",
		"tags":    []any{"a", "c"},
		"unknown": "dropped",
	})

	require.Empty(t, errs)
	assert.Equal(t, 42.5, clean["amount"])
	assert.Equal(t, "2026-08-24", clean["when"])
	assert.Equal(t, []string{"a", "c"}, clean["tags"])
	assert.NotContains(t, clean, "unknown")
	assert.NotContains(t, clean, "memo", "optional absent fields stay absent")
}

func TestValidateFieldsCollectsEveryError(t *testing.T) {
	fields := []FieldDefinition{
		{ID: "amount", Label: "Amount", Type: FieldNumber, Required: true},
		{ID: "vendor", Label: "Vendor", Type: FieldText, Required: true},
		{ID: "category", Label: "Category", Type: FieldSelect, Options: []string{"x", "y"}},
	}

	errs, clean := ValidateFields(fields, map[string]any{
		"amount":   "lots",
		"category": "z",
	})

	assert.Nil(t, clean, "no clean data on failure")
	require.Len(t, errs, 3)
	byField := map[string]string{}
	for _, e := range errs {
		byField[e.FieldID] = e.Message
	}
	assert.Contains(t, byField, "amount")
	assert.Contains(t, byField, "vendor")
	assert.Contains(t, byField, "category")
}

func TestValidateFieldsRequiredTreatsBlankAsMissing(t *testing.T) {
	fields := []FieldDefinition{
		{ID: "vendor", Label: "Vendor", Type: FieldText, Required: true},
	}

	errs, _ := ValidateFields(fields, map[string]any{"vendor": "   "})
	require.Len(t, errs, 1)
	assert.Equal(t, "vendor", errs[0].FieldID)
}

func TestValidateFieldsNumberBounds(t *testing.T) {
	min, max := 10.0, 100.0
	fields := []FieldDefinition{
		{ID: "n", Label: "N", Type: FieldNumber, Min: &min, Max: &max},
	}

	errs, clean := ValidateFields(fields, map[string]any{"n": 50})
	assert.Empty(t, errs)
	assert.Equal(t, float64(50), clean["n"])

	errs, _ = ValidateFields(fields, map[string]any{"n": 5})
	assert.Len(t, errs, 1)

	errs, _ = ValidateFields(fields, map[string]any{"n": 500})
	assert.Len(t, errs, 1)
}

func TestValidateFieldsRequiredCheckboxMustBeChecked(t *testing.T) {
	fields := []FieldDefinition{
		{ID: "agree", Label: "Agree", Type: FieldCheckbox, Required: true},
	}

	errs, _ := ValidateFields(fields, map[string]any{"agree": false})
	require.Len(t, errs, 1)

	errs, clean := ValidateFields(fields, map[string]any{"agree": true})
	assert.Empty(t, errs)
	assert.Equal(t, true, clean["agree"])
}

func TestValidateFieldsFileWantsURL(t *testing.T) {
	fields := []FieldDefinition{
		{ID: "doc", Label: "Document", Type: FieldFile},
	}

	errs, clean := ValidateFields(fields, map[string]any{"doc": "s3://bucket/key.pdf"})
	assert.Empty(t, errs)
	assert.Equal(t, "s3://bucket/key.pdf", clean["doc"])

	errs, _ = ValidateFields(fields, map[string]any{"doc": "not a url"})
	assert.Len(t, errs, 1)

	errs, _ = ValidateFields(fields, map[string]any{"doc": []byte("raw bytes")})
	assert.Len(t, errs, 1)
}

func TestValidateFieldsSelectEnforcesOptions(t *testing.T) {
	fields := []FieldDefinition{
		{ID: "cat", Label: "Category", Type: FieldSelect, Options: []string{"equipment", "travel"}},
	}

	errs, clean := ValidateFields(fields, map[string]any{"cat": "travel"})
	assert.Empty(t, errs)
	assert.Equal(t, "travel", clean["cat"])

	errs, _ = ValidateFields(fields, map[string]any{"cat": "snacks"})
	assert.Len(t, errs, 1)
}

func TestValidateFieldsBadDate(t *testing.T) {
	fields := []FieldDefinition{
		{ID: "when", Label: "When", Type: FieldDate},
	}

	errs, _ := ValidateFields(fields, map[string]any{"when": "24/08/2026"})
	assert.Len(t, errs, 1)
}

func TestAsNumberRejectsNonFinite(t *testing.T) {
	_, ok := asNumber("NaN")
	assert.False(t, ok)
	_, ok = asNumber("Inf")
	assert.False(t, ok)
	n, ok := asNumber(int64(7))
	assert.True(t, ok)
	assert.Equal(t, float64(7), n)
}
