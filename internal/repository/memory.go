package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"groupdesk/backend/pkg/models"
)

// MemoryStore is an in-memory implementation of Store. The engine is tested
// against it; it is also handy for local development without a database. A
// single mutex serializes every mutation, which trivially gives Decide the
// same one-winner guarantee the Postgres row lock provides.
type MemoryStore struct {
	mu          sync.Mutex
	tenants     map[string]*models.Tenant
	members     map[string]*models.Member
	routes      map[string]*models.Route
	templates   map[string]*models.Template
	apps        map[string]*models.Application
	assignments map[string][]*models.StepAssignment // keyed by application id
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:     make(map[string]*models.Tenant),
		members:     make(map[string]*models.Member),
		routes:      make(map[string]*models.Route),
		templates:   make(map[string]*models.Template),
		apps:        make(map[string]*models.Application),
		assignments: make(map[string][]*models.StepAssignment),
	}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	now := time.Now()
	tenant.CreatedAt, tenant.UpdatedAt = now, now
	cp := *tenant
	s.tenants[tenant.ID] = &cp
	return nil
}

func (s *MemoryStore) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.Domain == domain {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateMember(ctx context.Context, member *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if member.ID == "" {
		member.ID = uuid.New().String()
	}
	now := time.Now()
	member.CreatedAt, member.UpdatedAt = now, now
	cp := *member
	s.members[member.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMember(ctx context.Context, tenantID, id string) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok || m.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) GetMemberByEmail(ctx context.Context, tenantID, email string) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.TenantID == tenantID && m.Email == email {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListMembersByRole(ctx context.Context, tenantID string, role models.Role) ([]*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Member
	for _, m := range s.members {
		if m.TenantID == tenantID && m.Role == role {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *MemoryStore) CreateRoute(ctx context.Context, route *models.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	route.CreatedAt, route.UpdatedAt = now, now
	s.routes[route.ID] = copyRoute(route)
	return nil
}

func (s *MemoryStore) GetRoute(ctx context.Context, tenantID, id string) (*models.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.routes[id]
	if !ok || r.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return copyRoute(r), nil
}

func (s *MemoryStore) ListRoutes(ctx context.Context, tenantID string) ([]*models.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Route
	for _, r := range s.routes {
		if r.TenantID == tenantID {
			out = append(out, copyRoute(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteRoute(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.routes[id]
	if !ok || r.TenantID != tenantID {
		return ErrNotFound
	}
	for _, t := range s.templates {
		if t.RouteID == id {
			return ErrReferenced
		}
	}
	delete(s.routes, id)
	return nil
}

func (s *MemoryStore) CreateTemplate(ctx context.Context, template *models.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	template.CreatedAt, template.UpdatedAt = now, now
	s.templates[template.ID] = copyTemplate(template)
	return nil
}

func (s *MemoryStore) GetTemplate(ctx context.Context, tenantID, id string) (*models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok || t.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return copyTemplate(t), nil
}

func (s *MemoryStore) ListTemplates(ctx context.Context, tenantID string) ([]*models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Template
	for _, t := range s.templates {
		if t.TenantID == tenantID {
			out = append(out, copyTemplate(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteTemplate(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok || t.TenantID != tenantID {
		return ErrNotFound
	}
	for _, app := range s.apps {
		if app.TemplateID == id {
			return ErrReferenced
		}
	}
	delete(s.templates, id)
	return nil
}

func (s *MemoryStore) CreateApplication(ctx context.Context, app *models.Application, assignments []*models.StepAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	app.CreatedAt, app.UpdatedAt = now, now
	s.apps[app.ID] = copyApplication(app)
	chain := make([]*models.StepAssignment, len(assignments))
	for i, a := range assignments {
		chain[i] = copyAssignment(a)
	}
	s.assignments[app.ID] = chain
	return nil
}

func (s *MemoryStore) GetApplication(ctx context.Context, tenantID, id string) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok || app.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return copyApplication(app), nil
}

func (s *MemoryStore) ListApplications(ctx context.Context, tenantID string, filter ApplicationFilter) ([]*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Application
	for _, app := range s.apps {
		if app.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		if filter.TemplateID != "" && app.TemplateID != filter.TemplateID {
			continue
		}
		if filter.ApplicantID != "" && app.ApplicantID != filter.ApplicantID {
			continue
		}
		out = append(out, copyApplication(app))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListAssignments(ctx context.Context, tenantID, applicationID string) ([]*models.StepAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[applicationID]
	if !ok || app.TenantID != tenantID {
		return nil, ErrNotFound
	}
	chain := s.assignments[applicationID]
	out := make([]*models.StepAssignment, len(chain))
	for i, a := range chain {
		out[i] = copyAssignment(a)
	}
	return out, nil
}

// Decide runs fn on copies of the stored rows under the store mutex and
// writes them back only when fn succeeds.
func (s *MemoryStore) Decide(ctx context.Context, tenantID, id string, fn DecideFunc) (*models.Application, []*models.StepAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.apps[id]
	if !ok || stored.TenantID != tenantID {
		return nil, nil, ErrNotFound
	}

	app := copyApplication(stored)
	chain := s.assignments[id]
	assignments := make([]*models.StepAssignment, len(chain))
	for i, a := range chain {
		assignments[i] = copyAssignment(a)
	}

	if err := fn(app, assignments); err != nil {
		return nil, nil, err
	}

	app.UpdatedAt = time.Now()
	s.apps[id] = copyApplication(app)
	saved := make([]*models.StepAssignment, len(assignments))
	for i, a := range assignments {
		saved[i] = copyAssignment(a)
	}
	s.assignments[id] = saved

	return app, assignments, nil
}

func copyRoute(r *models.Route) *models.Route {
	cp := *r
	cp.Steps = make([]models.Step, len(r.Steps))
	copy(cp.Steps, r.Steps)
	for i := range cp.Steps {
		if c := r.Steps[i].Condition; c != nil {
			cc := *c
			cp.Steps[i].Condition = &cc
		}
	}
	return &cp
}

func copyTemplate(t *models.Template) *models.Template {
	cp := *t
	cp.Fields = make([]models.FieldDefinition, len(t.Fields))
	copy(cp.Fields, t.Fields)
	return &cp
}

func copyApplication(app *models.Application) *models.Application {
	cp := *app
	if app.CurrentStep != nil {
		v := *app.CurrentStep
		cp.CurrentStep = &v
	}
	cp.Data = make(models.FieldValues, len(app.Data))
	for k, v := range app.Data {
		cp.Data[k] = v
	}
	return &cp
}

func copyAssignment(a *models.StepAssignment) *models.StepAssignment {
	cp := *a
	if a.AssigneeID != nil {
		v := *a.AssigneeID
		cp.AssigneeID = &v
	}
	if a.Comment != nil {
		v := *a.Comment
		cp.Comment = &v
	}
	if a.ActedAt != nil {
		v := *a.ActedAt
		cp.ActedAt = &v
	}
	return &cp
}
