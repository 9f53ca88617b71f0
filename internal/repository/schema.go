package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSQL is the canonical schema for the approval service. It is applied
// by the seed command and by integration tests; production migrations run
// the same statements.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS tenants (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	domain     TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS members (
	id         UUID PRIMARY KEY,
	tenant_id  UUID NOT NULL REFERENCES tenants(id),
	email      TEXT NOT NULL,
	name       TEXT NOT NULL,
	role       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, email)
);

CREATE TABLE IF NOT EXISTS routes (
	id         UUID PRIMARY KEY,
	tenant_id  UUID NOT NULL REFERENCES tenants(id),
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS route_steps (
	id             UUID PRIMARY KEY,
	route_id       UUID NOT NULL REFERENCES routes(id) ON DELETE CASCADE,
	step_order     INT NOT NULL,
	approver_role  TEXT NOT NULL,
	require_all    BOOLEAN NOT NULL DEFAULT FALSE,
	condition_field TEXT,
	condition_min  DOUBLE PRECISION,
	condition_max  DOUBLE PRECISION,
	UNIQUE (route_id, step_order)
);

CREATE TABLE IF NOT EXISTS templates (
	id          UUID PRIMARY KEY,
	tenant_id   UUID NOT NULL REFERENCES tenants(id),
	route_id    UUID NOT NULL REFERENCES routes(id),
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	fields      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS applications (
	id           UUID PRIMARY KEY,
	tenant_id    UUID NOT NULL REFERENCES tenants(id),
	template_id  UUID NOT NULL REFERENCES templates(id),
	applicant_id UUID NOT NULL,
	title        TEXT NOT NULL,
	data         JSONB NOT NULL,
	status       TEXT NOT NULL,
	current_step INT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_applications_tenant_status
	ON applications (tenant_id, status);

CREATE TABLE IF NOT EXISTS step_assignments (
	id             UUID PRIMARY KEY,
	application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
	step_order     INT NOT NULL,
	approver_role  TEXT NOT NULL,
	require_all    BOOLEAN NOT NULL DEFAULT FALSE,
	status         TEXT NOT NULL,
	assignee_id    UUID,
	comment        TEXT,
	acted_at       TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_step_assignments_application
	ON step_assignments (application_id, step_order);
`

// Migrate applies the schema to the connected database.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaSQL)
	return err
}
