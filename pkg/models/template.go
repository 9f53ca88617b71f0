package models

import (
	"time"
)

// Template binds a form schema to exactly one route. Applications are always
// originated from a template; the schema governs what data they may carry
// and the route governs who approves them.
type Template struct {
	ID          string            `json:"id"`
	TenantID    string            `json:"tenant_id"`
	RouteID     string            `json:"route_id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Fields      []FieldDefinition `json:"fields"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
