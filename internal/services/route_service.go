package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"groupdesk/backend/internal/repository"
	"groupdesk/backend/pkg/models"
)

// StepInput is the caller's definition of one route step. Orders are never
// client-supplied; the service assigns 1..N in submission order so the chain
// can have no gaps or duplicates.
type StepInput struct {
	ApproverRole models.Role       `json:"approver_role"`
	RequireAll   bool              `json:"require_all"`
	Condition    *models.Condition `json:"condition,omitempty"`
}

// RouteService owns route and template definitions.
type RouteService struct {
	routes    repository.RouteStore
	templates repository.TemplateStore
}

// NewRouteService creates a RouteService.
func NewRouteService(routes repository.RouteStore, templates repository.TemplateStore) *RouteService {
	return &RouteService{routes: routes, templates: templates}
}

// CreateRoute validates and persists a new route. Conditions are rejected
// here, at save time, so the evaluator never sees a malformed one.
func (s *RouteService) CreateRoute(ctx context.Context, tenantID, name string, steps []StepInput) (*models.Route, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Message: "route name is required"}
	}
	if len(steps) == 0 {
		return nil, &ValidationError{Message: "a route needs at least one step"}
	}
	for i, in := range steps {
		if !in.ApproverRole.Valid() {
			return nil, &ValidationError{Message: fmt.Sprintf("step %d: unknown approver role %q", i+1, in.ApproverRole)}
		}
		if in.Condition != nil {
			if err := in.Condition.Validate(); err != nil {
				return nil, &ValidationError{Message: fmt.Sprintf("step %d: %v", i+1, err)}
			}
		}
	}

	route := &models.Route{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		Name:     name,
		Steps:    make([]models.Step, len(steps)),
	}
	for i, in := range steps {
		route.Steps[i] = models.Step{
			ID:           uuid.New().String(),
			RouteID:      route.ID,
			Order:        i + 1,
			ApproverRole: in.ApproverRole,
			RequireAll:   in.RequireAll,
			Condition:    in.Condition,
		}
	}

	if err := s.routes.CreateRoute(ctx, route); err != nil {
		return nil, err
	}
	return route, nil
}

// GetRoute returns a tenant's route.
func (s *RouteService) GetRoute(ctx context.Context, tenantID, id string) (*models.Route, error) {
	route, err := s.routes.GetRoute(ctx, tenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Kind: "route", ID: id}
	}
	return route, err
}

// ListRoutes returns every route of a tenant.
func (s *RouteService) ListRoutes(ctx context.Context, tenantID string) ([]*models.Route, error) {
	return s.routes.ListRoutes(ctx, tenantID)
}

// DeleteRoute removes a route. A route referenced by any template is in
// active use and must not be deleted; the store enforces the check and the
// delete in one transaction.
func (s *RouteService) DeleteRoute(ctx context.Context, tenantID, id string) error {
	err := s.routes.DeleteRoute(ctx, tenantID, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &NotFoundError{Kind: "route", ID: id}
	case errors.Is(err, repository.ErrReferenced):
		return &ConflictError{Message: "route is referenced by a template"}
	}
	return err
}

// CreateTemplate validates and persists a new template bound to a route of
// the same tenant.
func (s *RouteService) CreateTemplate(ctx context.Context, tenantID, routeID, name, description string, fields []models.FieldDefinition) (*models.Template, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Message: "template name is required"}
	}
	if len(fields) == 0 {
		return nil, &ValidationError{Message: "a template needs at least one field"}
	}
	if err := validateFieldSchema(fields); err != nil {
		return nil, err
	}

	if _, err := s.routes.GetRoute(ctx, tenantID, routeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Kind: "route", ID: routeID}
		}
		return nil, err
	}

	template := &models.Template{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		RouteID:     routeID,
		Name:        name,
		Description: description,
		Fields:      fields,
	}
	if err := s.templates.CreateTemplate(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

// GetTemplate returns a tenant's template.
func (s *RouteService) GetTemplate(ctx context.Context, tenantID, id string) (*models.Template, error) {
	template, err := s.templates.GetTemplate(ctx, tenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Kind: "template", ID: id}
	}
	return template, err
}

// ListTemplates returns every template of a tenant.
func (s *RouteService) ListTemplates(ctx context.Context, tenantID string) ([]*models.Template, error) {
	return s.templates.ListTemplates(ctx, tenantID)
}

// DeleteTemplate removes a template unless applications were submitted
// through it.
func (s *RouteService) DeleteTemplate(ctx context.Context, tenantID, id string) error {
	err := s.templates.DeleteTemplate(ctx, tenantID, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &NotFoundError{Kind: "template", ID: id}
	case errors.Is(err, repository.ErrReferenced):
		return &ConflictError{Message: "template has applications"}
	}
	return err
}

func validateFieldSchema(fields []models.FieldDefinition) error {
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if strings.TrimSpace(f.ID) == "" {
			return &ValidationError{Message: fmt.Sprintf("field %d: id is required", i+1)}
		}
		if seen[f.ID] {
			return &ValidationError{Message: fmt.Sprintf("duplicate field id %q", f.ID)}
		}
		seen[f.ID] = true
		if !f.Type.Valid() {
			return &ValidationError{Message: fmt.Sprintf("field %q: unknown type %q", f.ID, f.Type)}
		}
		if f.Type.NeedsOptions() && len(f.Options) == 0 {
			return &ValidationError{Message: fmt.Sprintf("field %q: %s fields need options", f.ID, f.Type)}
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return &ValidationError{Message: fmt.Sprintf("field %q: min exceeds max", f.ID)}
		}
	}
	return nil
}
