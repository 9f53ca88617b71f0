package repository

import (
	"context"
	"errors"

	"groupdesk/backend/pkg/models"
)

// Sentinel errors returned by stores. The service layer maps these onto its
// caller-facing error taxonomy.
var (
	// ErrNotFound covers both genuinely missing rows and rows belonging to
	// another tenant; the two are indistinguishable on purpose.
	ErrNotFound = errors.New("repository: not found")
	// ErrReferenced is returned when a delete is blocked by rows that still
	// reference the target.
	ErrReferenced = errors.New("repository: still referenced")
)

// TenantStore persists tenants.
type TenantStore interface {
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error)
}

// MemberStore persists tenant members and backs role resolution.
type MemberStore interface {
	CreateMember(ctx context.Context, member *models.Member) error
	GetMember(ctx context.Context, tenantID, id string) (*models.Member, error)
	GetMemberByEmail(ctx context.Context, tenantID, email string) (*models.Member, error)
	ListMembersByRole(ctx context.Context, tenantID string, role models.Role) ([]*models.Member, error)
}

// RouteStore persists approval routes and their steps.
type RouteStore interface {
	CreateRoute(ctx context.Context, route *models.Route) error
	GetRoute(ctx context.Context, tenantID, id string) (*models.Route, error)
	ListRoutes(ctx context.Context, tenantID string) ([]*models.Route, error)
	// DeleteRoute removes a route and its steps. It fails with ErrReferenced
	// when any template still points at the route; the reference check and
	// the delete run in one transaction so a template created concurrently
	// cannot slip through.
	DeleteRoute(ctx context.Context, tenantID, id string) error
}

// TemplateStore persists application templates.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, template *models.Template) error
	GetTemplate(ctx context.Context, tenantID, id string) (*models.Template, error)
	ListTemplates(ctx context.Context, tenantID string) ([]*models.Template, error)
	// DeleteTemplate fails with ErrReferenced when applications exist for it.
	DeleteTemplate(ctx context.Context, tenantID, id string) error
}

// ApplicationFilter narrows ListApplications. Zero values mean "any".
type ApplicationFilter struct {
	Status      models.ApplicationStatus
	TemplateID  string
	ApplicantID string
}

// DecideFunc is invoked by Decide with a freshly loaded application and its
// assignment chain, inside the store's transaction. It mutates the rows in
// place; returning an error aborts the transaction with nothing written.
type DecideFunc func(app *models.Application, assignments []*models.StepAssignment) error

// ApplicationStore persists applications and their step assignments.
type ApplicationStore interface {
	// CreateApplication writes the application and its whole assignment
	// chain atomically.
	CreateApplication(ctx context.Context, app *models.Application, assignments []*models.StepAssignment) error
	GetApplication(ctx context.Context, tenantID, id string) (*models.Application, error)
	ListApplications(ctx context.Context, tenantID string, filter ApplicationFilter) ([]*models.Application, error)
	ListAssignments(ctx context.Context, tenantID, applicationID string) ([]*models.StepAssignment, error)
	// Decide runs fn against the current application state under a lock that
	// serializes concurrent decisions on the same application, then persists
	// whatever fn changed. Exactly one of two racing calls sees the
	// pre-decision state.
	Decide(ctx context.Context, tenantID, id string, fn DecideFunc) (*models.Application, []*models.StepAssignment, error)
}

// Store aggregates every store the service layer needs.
type Store interface {
	TenantStore
	MemberStore
	RouteStore
	TemplateStore
	ApplicationStore
	Ping(ctx context.Context) error
}
