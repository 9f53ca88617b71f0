package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"groupdesk/backend/pkg/models"
)

// CreateRoute writes the route and all of its steps in one transaction.
func (s *PostgresStore) CreateRoute(ctx context.Context, route *models.Route) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO routes (id, tenant_id, name) VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		route.ID, route.TenantID, route.Name,
	).Scan(&route.CreatedAt, &route.UpdatedAt)
	if err != nil {
		return err
	}

	for i := range route.Steps {
		step := &route.Steps[i]
		var condField *string
		var condMin, condMax *float64
		if step.Condition != nil {
			condField = &step.Condition.FieldID
			condMin = step.Condition.Min
			condMax = step.Condition.Max
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO route_steps
			 (id, route_id, step_order, approver_role, require_all, condition_field, condition_min, condition_max)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			step.ID, route.ID, step.Order, string(step.ApproverRole), step.RequireAll,
			condField, condMin, condMax)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetRoute retrieves a route with its steps in order.
func (s *PostgresStore) GetRoute(ctx context.Context, tenantID, id string) (*models.Route, error) {
	var r models.Route
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, name, created_at, updated_at
		 FROM routes WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&r.ID, &r.TenantID, &r.Name, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	steps, err := s.loadSteps(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	r.Steps = steps
	return &r, nil
}

// ListRoutes returns every route of a tenant, steps included.
func (s *PostgresStore) ListRoutes(ctx context.Context, tenantID string) ([]*models.Route, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, name, created_at, updated_at
		 FROM routes WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []*models.Route
	for rows.Next() {
		var r models.Route
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Name, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		routes = append(routes, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, r := range routes {
		steps, err := s.loadSteps(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		r.Steps = steps
	}
	return routes, nil
}

// DeleteRoute removes a route unless a template still references it. The
// reference check runs in the same transaction as the delete so a template
// created concurrently cannot orphan itself.
func (s *PostgresStore) DeleteRoute(ctx context.Context, tenantID, id string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var referenced bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM templates WHERE route_id = $1)`, id,
	).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return ErrReferenced
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM routes WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) loadSteps(ctx context.Context, routeID string) ([]models.Step, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, route_id, step_order, approver_role, require_all,
		        condition_field, condition_min, condition_max
		 FROM route_steps WHERE route_id = $1 ORDER BY step_order`,
		routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []models.Step
	for rows.Next() {
		var step models.Step
		var role string
		var condField *string
		var condMin, condMax *float64
		err := rows.Scan(&step.ID, &step.RouteID, &step.Order, &role, &step.RequireAll,
			&condField, &condMin, &condMax)
		if err != nil {
			return nil, err
		}
		step.ApproverRole = models.Role(role)
		if condField != nil {
			step.Condition = &models.Condition{FieldID: *condField, Min: condMin, Max: condMax}
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// CreateTemplate saves a template, serializing its field schema as JSONB.
func (s *PostgresStore) CreateTemplate(ctx context.Context, template *models.Template) error {
	fields, err := json.Marshal(template.Fields)
	if err != nil {
		return err
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO templates (id, tenant_id, route_id, name, description, fields)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		template.ID, template.TenantID, template.RouteID, template.Name,
		template.Description, fields,
	).Scan(&template.CreatedAt, &template.UpdatedAt)
}

// GetTemplate retrieves a template within a tenant.
func (s *PostgresStore) GetTemplate(ctx context.Context, tenantID, id string) (*models.Template, error) {
	return s.scanTemplate(s.db.QueryRow(ctx,
		`SELECT id, tenant_id, route_id, name, description, fields, created_at, updated_at
		 FROM templates WHERE tenant_id = $1 AND id = $2`,
		tenantID, id))
}

// ListTemplates returns every template of a tenant.
func (s *PostgresStore) ListTemplates(ctx context.Context, tenantID string) ([]*models.Template, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, route_id, name, description, fields, created_at, updated_at
		 FROM templates WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*models.Template
	for rows.Next() {
		t, err := s.scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// DeleteTemplate removes a template unless applications still reference it.
func (s *PostgresStore) DeleteTemplate(ctx context.Context, tenantID, id string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var referenced bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM applications WHERE template_id = $1)`, id,
	).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return ErrReferenced
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM templates WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) scanTemplate(row pgx.Row) (*models.Template, error) {
	var t models.Template
	var fields []byte
	err := row.Scan(&t.ID, &t.TenantID, &t.RouteID, &t.Name, &t.Description, &fields,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &t.Fields); err != nil {
		return nil, err
	}
	return &t, nil
}
