package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"

	"groupdesk/backend/pkg/models"
)

// CreateApplication writes the application and its assignment chain in one
// transaction; a failure on any row leaves nothing behind.
func (s *PostgresStore) CreateApplication(ctx context.Context, app *models.Application, assignments []*models.StepAssignment) error {
	data, err := json.Marshal(app.Data)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO applications
		 (id, tenant_id, template_id, applicant_id, title, data, status, current_step)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		app.ID, app.TenantID, app.TemplateID, app.ApplicantID, app.Title, data,
		string(app.Status), app.CurrentStep,
	).Scan(&app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return err
	}

	for _, a := range assignments {
		_, err = tx.Exec(ctx,
			`INSERT INTO step_assignments
			 (id, application_id, step_order, approver_role, require_all, status, assignee_id, comment, acted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			a.ID, a.ApplicationID, a.StepOrder, string(a.ApproverRole), a.RequireAll,
			string(a.Status), a.AssigneeID, a.Comment, a.ActedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetApplication retrieves an application within a tenant.
func (s *PostgresStore) GetApplication(ctx context.Context, tenantID, id string) (*models.Application, error) {
	return scanApplication(s.db.QueryRow(ctx,
		`SELECT id, tenant_id, template_id, applicant_id, title, data, status, current_step, created_at, updated_at
		 FROM applications WHERE tenant_id = $1 AND id = $2`,
		tenantID, id))
}

// ListApplications returns a tenant's applications matching the filter,
// newest first. This is a plain committed read with no locking.
func (s *PostgresStore) ListApplications(ctx context.Context, tenantID string, filter ApplicationFilter) ([]*models.Application, error) {
	query := `SELECT id, tenant_id, template_id, applicant_id, title, data, status, current_step, created_at, updated_at
	          FROM applications WHERE tenant_id = $1`
	args := []any{tenantID}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + itoa(len(args))
	}
	if filter.TemplateID != "" {
		args = append(args, filter.TemplateID)
		query += ` AND template_id = $` + itoa(len(args))
	}
	if filter.ApplicantID != "" {
		args = append(args, filter.ApplicantID)
		query += ` AND applicant_id = $` + itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// ListAssignments returns the assignment chain for an application in step
// order. The tenant check goes through the application row.
func (s *PostgresStore) ListAssignments(ctx context.Context, tenantID, applicationID string) ([]*models.StepAssignment, error) {
	if _, err := s.GetApplication(ctx, tenantID, applicationID); err != nil {
		return nil, err
	}
	return s.loadAssignments(ctx, s.db, applicationID)
}

// Decide reloads the application and its assignments under a row lock, runs
// fn, and persists the result. Two concurrent calls on the same application
// serialize on the FOR UPDATE lock, so the second sees the first's committed
// state and fn can reject it.
func (s *PostgresStore) Decide(ctx context.Context, tenantID, id string, fn DecideFunc) (*models.Application, []*models.StepAssignment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	app, err := scanApplication(tx.QueryRow(ctx,
		`SELECT id, tenant_id, template_id, applicant_id, title, data, status, current_step, created_at, updated_at
		 FROM applications WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		tenantID, id))
	if err != nil {
		return nil, nil, err
	}

	assignments, err := s.loadAssignments(ctx, tx, app.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := fn(app, assignments); err != nil {
		return nil, nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE applications SET status = $1, current_step = $2, updated_at = now() WHERE id = $3`,
		string(app.Status), app.CurrentStep, app.ID)
	if err != nil {
		return nil, nil, err
	}

	for _, a := range assignments {
		_, err = tx.Exec(ctx,
			`UPDATE step_assignments SET status = $1, assignee_id = $2, comment = $3, acted_at = $4 WHERE id = $5`,
			string(a.Status), a.AssigneeID, a.Comment, a.ActedAt, a.ID)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return app, assignments, nil
}

// querier is satisfied by both pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *PostgresStore) loadAssignments(ctx context.Context, q querier, applicationID string) ([]*models.StepAssignment, error) {
	rows, err := q.Query(ctx,
		`SELECT id, application_id, step_order, approver_role, require_all, status, assignee_id, comment, acted_at
		 FROM step_assignments WHERE application_id = $1 ORDER BY step_order, id`,
		applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []*models.StepAssignment
	for rows.Next() {
		var a models.StepAssignment
		var role, status string
		err := rows.Scan(&a.ID, &a.ApplicationID, &a.StepOrder, &role, &a.RequireAll,
			&status, &a.AssigneeID, &a.Comment, &a.ActedAt)
		if err != nil {
			return nil, err
		}
		a.ApproverRole = models.Role(role)
		a.Status = models.AssignmentStatus(status)
		assignments = append(assignments, &a)
	}
	return assignments, rows.Err()
}

func scanApplication(row pgx.Row) (*models.Application, error) {
	var app models.Application
	var data []byte
	var status string
	err := row.Scan(&app.ID, &app.TenantID, &app.TemplateID, &app.ApplicantID, &app.Title,
		&data, &status, &app.CurrentStep, &app.CreatedAt, &app.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	app.Status = models.ApplicationStatus(status)
	if err := json.Unmarshal(data, &app.Data); err != nil {
		return nil, err
	}
	return &app, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
