package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"groupdesk/backend/pkg/models"
)

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	require.NoError(t, Migrate(ctx, pool))

	store := NewPostgresStore(pool)

	tenant := &models.Tenant{Name: "Acme", Domain: "acme.test"}
	require.NoError(t, store.CreateTenant(ctx, tenant))

	member := &models.Member{TenantID: tenant.ID, Email: "admin@acme.test", Name: "Admin", Role: models.RoleAdmin}
	require.NoError(t, store.CreateMember(ctx, member))

	t.Run("tenant and member lookup", func(t *testing.T) {
		got, err := store.GetTenantByDomain(ctx, "acme.test")
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, got.ID)

		m, err := store.GetMemberByEmail(ctx, tenant.ID, "admin@acme.test")
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, m.Role)

		admins, err := store.ListMembersByRole(ctx, tenant.ID, models.RoleAdmin)
		require.NoError(t, err)
		assert.Len(t, admins, 1)

		_, err = store.GetMemberByEmail(ctx, tenant.ID, "nobody@acme.test")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	threshold := 10000.0
	route := &models.Route{
		ID:       "11111111-1111-1111-1111-111111111111",
		TenantID: tenant.ID,
		Name:     "High-value purchase",
		Steps: []models.Step{
			{
				ID:           "21111111-1111-1111-1111-111111111111",
				RouteID:      "11111111-1111-1111-1111-111111111111",
				Order:        1,
				ApproverRole: models.RoleAccountant,
				Condition:    &models.Condition{FieldID: "amount", Min: &threshold},
			},
			{
				ID:           "21111111-1111-1111-1111-111111111112",
				RouteID:      "11111111-1111-1111-1111-111111111111",
				Order:        2,
				ApproverRole: models.RoleAdmin,
				RequireAll:   true,
			},
		},
	}

	t.Run("route round trip keeps steps and condition", func(t *testing.T) {
		require.NoError(t, store.CreateRoute(ctx, route))

		got, err := store.GetRoute(ctx, tenant.ID, route.ID)
		require.NoError(t, err)
		require.Len(t, got.Steps, 2)
		assert.Equal(t, 1, got.Steps[0].Order)
		require.NotNil(t, got.Steps[0].Condition)
		assert.Equal(t, "amount", got.Steps[0].Condition.FieldID)
		require.NotNil(t, got.Steps[0].Condition.Min)
		assert.Equal(t, threshold, *got.Steps[0].Condition.Min)
		assert.Nil(t, got.Steps[0].Condition.Max)
		assert.True(t, got.Steps[1].RequireAll)
		assert.Nil(t, got.Steps[1].Condition)

		// not visible from another tenant
		other := &models.Tenant{Name: "Other", Domain: "other.test"}
		require.NoError(t, store.CreateTenant(ctx, other))
		_, err = store.GetRoute(ctx, other.ID, route.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	template := &models.Template{
		ID:       "31111111-1111-1111-1111-111111111111",
		TenantID: tenant.ID,
		RouteID:  route.ID,
		Name:     "Purchase request",
		Fields: []models.FieldDefinition{
			{ID: "amount", Label: "Amount", Type: models.FieldNumber, Required: true},
			{ID: "category", Label: "Category", Type: models.FieldSelect, Options: []string{"equipment", "travel"}},
		},
	}

	t.Run("template round trip keeps field schema", func(t *testing.T) {
		require.NoError(t, store.CreateTemplate(ctx, template))

		got, err := store.GetTemplate(ctx, tenant.ID, template.ID)
		require.NoError(t, err)
		require.Len(t, got.Fields, 2)
		assert.Equal(t, models.FieldNumber, got.Fields[0].Type)
		assert.True(t, got.Fields[0].Required)
		assert.Equal(t, []string{"equipment", "travel"}, got.Fields[1].Options)
	})

	t.Run("delete route blocked while template references it", func(t *testing.T) {
		err := store.DeleteRoute(ctx, tenant.ID, route.ID)
		assert.ErrorIs(t, err, ErrReferenced)
	})

	first := 1
	app := &models.Application{
		ID:          "41111111-1111-1111-1111-111111111111",
		TenantID:    tenant.ID,
		TemplateID:  template.ID,
		ApplicantID: member.ID,
		Title:       "Servers",
		Data:        models.FieldValues{"amount": 15000.0},
		Status:      models.StatusPending,
		CurrentStep: &first,
	}
	assigneeID := member.ID
	assignments := []*models.StepAssignment{
		{
			ID:            "51111111-1111-1111-1111-111111111111",
			ApplicationID: app.ID,
			StepOrder:     1,
			ApproverRole:  models.RoleAccountant,
			Status:        models.AssignmentInProgress,
		},
		{
			ID:            "51111111-1111-1111-1111-111111111112",
			ApplicationID: app.ID,
			StepOrder:     2,
			ApproverRole:  models.RoleAdmin,
			RequireAll:    true,
			Status:        models.AssignmentWaiting,
			AssigneeID:    &assigneeID,
		},
	}

	t.Run("application round trip", func(t *testing.T) {
		require.NoError(t, store.CreateApplication(ctx, app, assignments))

		got, err := store.GetApplication(ctx, tenant.ID, app.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, got.Status)
		require.NotNil(t, got.CurrentStep)
		assert.Equal(t, 1, *got.CurrentStep)
		assert.Equal(t, 15000.0, got.Data["amount"])

		chain, err := store.ListAssignments(ctx, tenant.ID, app.ID)
		require.NoError(t, err)
		require.Len(t, chain, 2)
		assert.Equal(t, models.AssignmentInProgress, chain[0].Status)
		require.NotNil(t, chain[1].AssigneeID)
		assert.Equal(t, member.ID, *chain[1].AssigneeID)
	})

	t.Run("list applications with filter", func(t *testing.T) {
		pending, err := store.ListApplications(ctx, tenant.ID, ApplicationFilter{Status: models.StatusPending})
		require.NoError(t, err)
		assert.Len(t, pending, 1)

		approved, err := store.ListApplications(ctx, tenant.ID, ApplicationFilter{Status: models.StatusApproved})
		require.NoError(t, err)
		assert.Empty(t, approved)

		mine, err := store.ListApplications(ctx, tenant.ID, ApplicationFilter{ApplicantID: member.ID})
		require.NoError(t, err)
		assert.Len(t, mine, 1)
	})

	t.Run("delete template blocked while applications reference it", func(t *testing.T) {
		err := store.DeleteTemplate(ctx, tenant.ID, template.ID)
		assert.ErrorIs(t, err, ErrReferenced)
	})

	t.Run("decide commits the callback's mutation", func(t *testing.T) {
		updated, chain, err := store.Decide(ctx, tenant.ID, app.ID, func(a *models.Application, as []*models.StepAssignment) error {
			as[0].Status = models.AssignmentApproved
			next := 2
			a.CurrentStep = &next
			as[1].Status = models.AssignmentInProgress
			return nil
		})
		require.NoError(t, err)
		require.NotNil(t, updated.CurrentStep)
		assert.Equal(t, 2, *updated.CurrentStep)
		assert.Equal(t, models.AssignmentApproved, chain[0].Status)

		// the mutation is visible to fresh reads
		got, err := store.GetApplication(ctx, tenant.ID, app.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, *got.CurrentStep)
	})

	t.Run("decide rolls back when the callback fails", func(t *testing.T) {
		before, err := store.GetApplication(ctx, tenant.ID, app.ID)
		require.NoError(t, err)

		_, _, err = store.Decide(ctx, tenant.ID, app.ID, func(a *models.Application, as []*models.StepAssignment) error {
			a.Status = models.StatusRejected
			return assert.AnError
		})
		require.ErrorIs(t, err, assert.AnError)

		after, err := store.GetApplication(ctx, tenant.ID, app.ID)
		require.NoError(t, err)
		assert.Equal(t, before.Status, after.Status)
	})

	t.Run("decide on unknown or foreign application", func(t *testing.T) {
		_, _, err := store.Decide(ctx, tenant.ID, "99999999-9999-9999-9999-999999999999", func(a *models.Application, as []*models.StepAssignment) error {
			return nil
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
