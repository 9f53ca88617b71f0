package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"groupdesk/backend/internal/repository"
	"groupdesk/backend/pkg/models"
)

// Action is a decision on the current step.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ApplicationService drives applications through their approval chain. It is
// the only component that mutates application or assignment state after
// submission.
type ApplicationService struct {
	templates repository.TemplateStore
	routes    repository.RouteStore
	apps      repository.ApplicationStore
	directory RoleDirectory
}

// NewApplicationService creates an ApplicationService.
func NewApplicationService(templates repository.TemplateStore, routes repository.RouteStore, apps repository.ApplicationStore, directory RoleDirectory) *ApplicationService {
	return &ApplicationService{
		templates: templates,
		routes:    routes,
		apps:      apps,
		directory: directory,
	}
}

// Submit validates raw data against the template's schema, filters the
// route's steps by their conditions, and creates the application with its
// full assignment chain in one atomic write. Steps whose condition does not
// hold are excluded from the chain entirely; they never appear as waiting
// placeholders.
func (s *ApplicationService) Submit(ctx context.Context, tenantID, templateID, applicantID, title string, raw map[string]any) (*models.Decision, error) {
	if strings.TrimSpace(title) == "" {
		return nil, &ValidationError{Message: "title is required"}
	}

	template, err := s.templates.GetTemplate(ctx, tenantID, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Kind: "template", ID: templateID}
		}
		return nil, err
	}

	route, err := s.routes.GetRoute(ctx, tenantID, template.RouteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// a template must always point at a live route
			return nil, &InvariantViolation{Message: fmt.Sprintf("template %s references missing route %s", template.ID, template.RouteID)}
		}
		return nil, err
	}

	fieldErrs, clean := models.ValidateFields(template.Fields, raw)
	if len(fieldErrs) > 0 {
		return nil, &ValidationError{FieldErrors: fieldErrs}
	}

	var included []models.Step
	for _, step := range route.Steps {
		if step.Condition == nil || step.Condition.Applies(clean) {
			included = append(included, step)
		}
	}
	if len(included) == 0 {
		// every accepted submission must resolve to at least one live step;
		// silently auto-approving here would skip the whole route
		return nil, &InvariantViolation{Message: fmt.Sprintf("route %s resolves to no steps for this submission", route.ID)}
	}

	first := included[0].Order
	app := &models.Application{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		TemplateID:  template.ID,
		ApplicantID: applicantID,
		Title:       title,
		Data:        clean,
		Status:      models.StatusPending,
		CurrentStep: &first,
	}

	var assignments []*models.StepAssignment
	for _, step := range included {
		status := models.AssignmentWaiting
		if step.Order == first {
			status = models.AssignmentInProgress
		}
		if step.RequireAll {
			members, err := s.directory.MembersWithRole(ctx, tenantID, step.ApproverRole)
			if err != nil {
				return nil, err
			}
			if len(members) == 0 {
				// the step could never complete; fail the submission rather
				// than create an application nobody can act on
				return nil, &InvariantViolation{Message: fmt.Sprintf("step %d requires all %s members but the tenant has none", step.Order, step.ApproverRole)}
			}
			for _, m := range members {
				assigneeID := m.ID
				assignments = append(assignments, &models.StepAssignment{
					ID:            uuid.New().String(),
					ApplicationID: app.ID,
					StepOrder:     step.Order,
					ApproverRole:  step.ApproverRole,
					RequireAll:    true,
					Status:        status,
					AssigneeID:    &assigneeID,
				})
			}
			continue
		}
		assignments = append(assignments, &models.StepAssignment{
			ID:            uuid.New().String(),
			ApplicationID: app.ID,
			StepOrder:     step.Order,
			ApproverRole:  step.ApproverRole,
			RequireAll:    false,
			Status:        status,
		})
	}

	if err := s.apps.CreateApplication(ctx, app, assignments); err != nil {
		return nil, err
	}
	return &models.Decision{Application: app, Assignments: assignments}, nil
}

// Act applies an approve/reject decision to the application's current step.
// The whole transition runs inside one store transaction against freshly
// reloaded state, so of two racing calls exactly one succeeds and the other
// gets a ConflictError. The returned decision carries the updated state for
// external audit or notification layers; Act itself has no side effects
// beyond the store.
func (s *ApplicationService) Act(ctx context.Context, tenantID, applicationID, actorID string, actingRole models.Role, action Action, comment string) (*models.Decision, error) {
	if action != ActionApprove && action != ActionReject {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown action %q", action)}
	}

	app, assignments, err := s.apps.Decide(ctx, tenantID, applicationID, func(app *models.Application, assignments []*models.StepAssignment) error {
		return transition(app, assignments, actorID, actingRole, action, comment)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Kind: "application", ID: applicationID}
		}
		return nil, err
	}
	return &models.Decision{Application: app, Assignments: assignments}, nil
}

// Get returns one application with its assignment chain.
func (s *ApplicationService) Get(ctx context.Context, tenantID, id string) (*models.Decision, error) {
	app, err := s.apps.GetApplication(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Kind: "application", ID: id}
		}
		return nil, err
	}
	assignments, err := s.apps.ListAssignments(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return &models.Decision{Application: app, Assignments: assignments}, nil
}

// List returns a tenant's applications matching the filter. A lock-free read
// of committed state.
func (s *ApplicationService) List(ctx context.Context, tenantID string, filter repository.ApplicationFilter) ([]*models.Application, error) {
	return s.apps.ListApplications(ctx, tenantID, filter)
}

// transition is the state machine proper. It runs inside the store's Decide
// transaction and mutates app/assignments in place; any returned error
// aborts with nothing written.
func transition(app *models.Application, assignments []*models.StepAssignment, actorID string, actingRole models.Role, action Action, comment string) error {
	if app.Status != models.StatusPending {
		return &ConflictError{Message: "application is already decided"}
	}
	if app.CurrentStep == nil {
		return &InvariantViolation{Message: "pending application has no current step"}
	}
	current := *app.CurrentStep

	var open []*models.StepAssignment
	for _, a := range assignments {
		if a.StepOrder == current && a.Status == models.AssignmentInProgress {
			open = append(open, a)
		}
	}
	if len(open) == 0 {
		return &InvariantViolation{Message: fmt.Sprintf("no in-progress assignment at step %d", current)}
	}

	if actingRole != open[0].ApproverRole {
		return &AuthorizationError{Message: fmt.Sprintf("step %d requires role %s", current, open[0].ApproverRole)}
	}

	target := open[0]
	if target.RequireAll {
		target = nil
		for _, a := range open {
			if a.AssigneeID != nil && *a.AssigneeID == actorID {
				target = a
				break
			}
		}
		if target == nil {
			for _, a := range assignments {
				if a.StepOrder == current && a.AssigneeID != nil && *a.AssigneeID == actorID {
					return &ConflictError{Message: "you have already acted on this step"}
				}
			}
			return &AuthorizationError{Message: "you are not an assignee of this step"}
		}
	}

	now := time.Now()
	actor := actorID
	target.AssigneeID = &actor
	target.ActedAt = &now
	if comment != "" {
		c := comment
		target.Comment = &c
	}

	if action == ActionReject {
		// terminal; earlier approvals are left untouched
		target.Status = models.AssignmentRejected
		app.Status = models.StatusRejected
		app.CurrentStep = nil
		return nil
	}

	target.Status = models.AssignmentApproved

	// requireAll fan-in: the step completes only once every assignment at
	// this order has approved
	for _, a := range assignments {
		if a.StepOrder == current && a.Status == models.AssignmentInProgress {
			return nil
		}
	}

	next := 0
	for _, a := range assignments {
		if a.StepOrder > current && (next == 0 || a.StepOrder < next) {
			next = a.StepOrder
		}
	}
	if next == 0 {
		app.Status = models.StatusApproved
		app.CurrentStep = nil
		return nil
	}

	app.CurrentStep = &next
	for _, a := range assignments {
		if a.StepOrder == next && a.Status == models.AssignmentWaiting {
			a.Status = models.AssignmentInProgress
		}
	}
	return nil
}
