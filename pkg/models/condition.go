package models

import (
	"errors"
)

// Condition is a numeric range predicate over a submitted field. A step
// carrying a condition only participates in an application's chain when the
// predicate holds for the submitted data. Absent bounds are unbounded on
// that side; both bounds are inclusive.
type Condition struct {
	FieldID string   `json:"field_id"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
}

// Validate rejects malformed conditions at route-save time, so evaluation
// never has to deal with them.
func (c *Condition) Validate() error {
	if c.FieldID == "" {
		return errors.New("condition: field_id is required")
	}
	if c.Min == nil && c.Max == nil {
		return errors.New("condition: at least one of min/max is required")
	}
	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		return errors.New("condition: min must not exceed max")
	}
	return nil
}

// Applies evaluates the condition against submitted data. It fails closed:
// if the keyed field is absent or not numeric the condition does not apply,
// so a misconfigured step is excluded rather than silently always included.
func (c *Condition) Applies(data FieldValues) bool {
	raw, ok := data[c.FieldID]
	if !ok {
		return false
	}
	n, ok := asNumber(raw)
	if !ok {
		return false
	}
	if c.Min != nil && n < *c.Min {
		return false
	}
	if c.Max != nil && n > *c.Max {
		return false
	}
	return true
}
