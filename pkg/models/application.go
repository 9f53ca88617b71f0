package models

import (
	"time"
)

// ApplicationStatus is the lifecycle state of an application. APPROVED and
// REJECTED are terminal.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "PENDING"
	StatusApproved ApplicationStatus = "APPROVED"
	StatusRejected ApplicationStatus = "REJECTED"
)

// AssignmentStatus is the decision state of one step assignment.
type AssignmentStatus string

const (
	AssignmentWaiting    AssignmentStatus = "WAITING"
	AssignmentInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentApproved   AssignmentStatus = "APPROVED"
	AssignmentRejected   AssignmentStatus = "REJECTED"
)

// Application is one submission routed through a route's steps. Data is
// immutable after creation; Status and CurrentStep are the only fields the
// engine mutates afterwards. CurrentStep is nil once the application is
// terminal.
type Application struct {
	ID          string            `json:"id"`
	TenantID    string            `json:"tenant_id"`
	TemplateID  string            `json:"template_id"`
	ApplicantID string            `json:"applicant_id"`
	Title       string            `json:"title"`
	Data        FieldValues       `json:"data"`
	Status      ApplicationStatus `json:"status"`
	CurrentStep *int              `json:"current_step,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// StepAssignment records the decision state of one step for one application.
// The approver role is copied from the step at submission time so later
// route edits never change who may act on an in-flight application. When the
// step fans out to multiple concurring approvers, AssigneeID binds the row
// to one of them; for single-approver steps it is set when someone acts.
type StepAssignment struct {
	ID            string           `json:"id"`
	ApplicationID string           `json:"application_id"`
	StepOrder     int              `json:"step_order"`
	ApproverRole  Role             `json:"approver_role"`
	RequireAll    bool             `json:"require_all"`
	Status        AssignmentStatus `json:"status"`
	AssigneeID    *string          `json:"assignee_id,omitempty"`
	Comment       *string          `json:"comment,omitempty"`
	ActedAt       *time.Time       `json:"acted_at,omitempty"`
}

// Decision is what Act returns: the application and its full assignment
// chain after the transition committed. External layers hang audit logging
// and notification off this value; the engine itself performs neither.
type Decision struct {
	Application *Application      `json:"application"`
	Assignments []*StepAssignment `json:"assignments"`
}
