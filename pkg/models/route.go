package models

import (
	"time"
)

// Route is a reusable, ordered definition of approval steps. Once a template
// references a route it can no longer be deleted.
type Route struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Steps     []Step    `json:"steps"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Step is one stage in a route. Orders are assigned by the server, 1..N with
// no gaps. When RequireAll is set, every member holding ApproverRole must
// concur before the step completes.
type Step struct {
	ID           string     `json:"id"`
	RouteID      string     `json:"route_id"`
	Order        int        `json:"order"`
	ApproverRole Role       `json:"approver_role"`
	RequireAll   bool       `json:"require_all"`
	Condition    *Condition `json:"condition,omitempty"`
}

// StepAt returns the step with the given order, or nil.
func (r *Route) StepAt(order int) *Step {
	for i := range r.Steps {
		if r.Steps[i].Order == order {
			return &r.Steps[i]
		}
	}
	return nil
}
