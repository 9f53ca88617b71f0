package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"groupdesk/backend/pkg/models"
)

// PostgresStore is the PostgreSQL implementation of Store.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// CreateTenant saves a tenant, assigning an id when the caller left it empty.
func (s *PostgresStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO tenants (id, name, domain) VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		tenant.ID, tenant.Name, tenant.Domain,
	).Scan(&tenant.CreatedAt, &tenant.UpdatedAt)
}

// GetTenantByDomain looks a tenant up by its email domain.
func (s *PostgresStore) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.QueryRow(ctx,
		`SELECT id, name, domain, created_at, updated_at FROM tenants WHERE domain = $1`,
		domain,
	).Scan(&t.ID, &t.Name, &t.Domain, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateMember saves a member, assigning an id when the caller left it empty.
func (s *PostgresStore) CreateMember(ctx context.Context, member *models.Member) error {
	if member.ID == "" {
		member.ID = uuid.New().String()
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO members (id, tenant_id, email, name, role) VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		member.ID, member.TenantID, member.Email, member.Name, string(member.Role),
	).Scan(&member.CreatedAt, &member.UpdatedAt)
}

// GetMember retrieves a member by id within a tenant.
func (s *PostgresStore) GetMember(ctx context.Context, tenantID, id string) (*models.Member, error) {
	return s.scanMember(s.db.QueryRow(ctx,
		`SELECT id, tenant_id, email, name, role, created_at, updated_at
		 FROM members WHERE tenant_id = $1 AND id = $2`,
		tenantID, id))
}

// GetMemberByEmail retrieves a member by email within a tenant.
func (s *PostgresStore) GetMemberByEmail(ctx context.Context, tenantID, email string) (*models.Member, error) {
	return s.scanMember(s.db.QueryRow(ctx,
		`SELECT id, tenant_id, email, name, role, created_at, updated_at
		 FROM members WHERE tenant_id = $1 AND email = $2`,
		tenantID, email))
}

// ListMembersByRole returns every member of a tenant holding the given role.
func (s *PostgresStore) ListMembersByRole(ctx context.Context, tenantID string, role models.Role) ([]*models.Member, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, email, name, role, created_at, updated_at
		 FROM members WHERE tenant_id = $1 AND role = $2 ORDER BY email`,
		tenantID, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		m, err := s.scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *PostgresStore) scanMember(row pgx.Row) (*models.Member, error) {
	var m models.Member
	var role string
	err := row.Scan(&m.ID, &m.TenantID, &m.Email, &m.Name, &role, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	return &m, nil
}
