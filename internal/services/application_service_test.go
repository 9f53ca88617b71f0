package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupdesk/backend/internal/repository"
	"groupdesk/backend/pkg/models"
)

// fixture wires the engine against the in-memory store with a tenant, an
// applicant and one member per approver role used in the tests.
type fixture struct {
	store      *repository.MemoryStore
	routes     *RouteService
	apps       *ApplicationService
	tenantID   string
	applicant  *models.Member
	accountant *models.Member
	admins     []*models.Member
}

func newFixture(t *testing.T, adminCount int) *fixture {
	t.Helper()
	ctx := context.Background()

	store := repository.NewMemoryStore()
	tenant := &models.Tenant{Name: "Acme", Domain: "acme.test"}
	require.NoError(t, store.CreateTenant(ctx, tenant))

	f := &fixture{
		store:    store,
		routes:   NewRouteService(store, store),
		apps:     NewApplicationService(store, store, store, NewStoreDirectory(store)),
		tenantID: tenant.ID,
	}

	f.applicant = f.addMember(t, "applicant@acme.test", models.RoleMember)
	f.accountant = f.addMember(t, "accountant@acme.test", models.RoleAccountant)
	for i := 0; i < adminCount; i++ {
		email := string(rune('a'+i)) + "-admin@acme.test"
		f.admins = append(f.admins, f.addMember(t, email, models.RoleAdmin))
	}
	return f
}

func (f *fixture) addMember(t *testing.T, email string, role models.Role) *models.Member {
	t.Helper()
	m := &models.Member{TenantID: f.tenantID, Email: email, Name: email, Role: role}
	require.NoError(t, f.store.CreateMember(context.Background(), m))
	return m
}

// expenseTemplate creates a template over the given route with a required
// numeric amount and an optional memo.
func (f *fixture) expenseTemplate(t *testing.T, routeID string) *models.Template {
	t.Helper()
	template, err := f.routes.CreateTemplate(context.Background(), f.tenantID, routeID,
		"Expense", "", []models.FieldDefinition{
			{ID: "amount", Label: "Amount", Type: models.FieldNumber, Required: true},
			{ID: "memo", Label: "Memo", Type: models.FieldTextarea},
		})
	require.NoError(t, err)
	return template
}

func (f *fixture) plainRoute(t *testing.T, roles ...models.Role) *models.Route {
	t.Helper()
	steps := make([]StepInput, len(roles))
	for i, r := range roles {
		steps[i] = StepInput{ApproverRole: r}
	}
	route, err := f.routes.CreateRoute(context.Background(), f.tenantID, "Plain", steps)
	require.NoError(t, err)
	return route
}

// highValueRoute matches the canonical scenario: an accountant step gated on
// amount >= 10000, then an admin step requiring all admins.
func (f *fixture) highValueRoute(t *testing.T) *models.Route {
	t.Helper()
	threshold := 10000.0
	route, err := f.routes.CreateRoute(context.Background(), f.tenantID, "High-value purchase", []StepInput{
		{ApproverRole: models.RoleAccountant, Condition: &models.Condition{FieldID: "amount", Min: &threshold}},
		{ApproverRole: models.RoleAdmin, RequireAll: true},
	})
	require.NoError(t, err)
	return route
}

func assignmentAt(assignments []*models.StepAssignment, order int) []*models.StepAssignment {
	var out []*models.StepAssignment
	for _, a := range assignments {
		if a.StepOrder == order {
			out = append(out, a)
		}
	}
	return out
}

func TestSubmitCreatesAssignmentChain(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	route := f.plainRoute(t, models.RoleAccountant, models.RoleManager, models.RoleAdmin)
	template := f.expenseTemplate(t, route.ID)
	f.addMember(t, "manager@acme.test", models.RoleManager)

	decision, err := f.apps.Submit(ctx, f.tenantID, template.ID, f.applicant.ID, "Team lunch", map[string]any{
		"amount": 120,
	})
	require.NoError(t, err)

	app := decision.Application
	assert.Equal(t, models.StatusPending, app.Status)
	require.NotNil(t, app.CurrentStep)
	assert.Equal(t, 1, *app.CurrentStep)
	assert.Equal(t, f.applicant.ID, app.ApplicantID)
	assert.Equal(t, float64(120), app.Data["amount"])

	require.Len(t, decision.Assignments, 3)
	for i, a := range decision.Assignments {
		assert.Equal(t, i+1, a.StepOrder)
	}
	assert.Equal(t, models.AssignmentInProgress, decision.Assignments[0].Status)
	assert.Equal(t, models.AssignmentWaiting, decision.Assignments[1].Status)
	assert.Equal(t, models.AssignmentWaiting, decision.Assignments[2].Status)
}

func TestSubmitCollectsAllValidationErrors(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	route := f.plainRoute(t, models.RoleAccountant)
	template, err := f.routes.CreateTemplate(ctx, f.tenantID, route.ID, "Trip", "", []models.FieldDefinition{
		{ID: "amount", Label: "Amount", Type: models.FieldNumber, Required: true},
		{ID: "destination", Label: "Destination", Type: models.FieldText, Required: true},
	})
	require.NoError(t, err)

	_, err = f.apps.Submit(ctx, f.tenantID, template.ID, f.applicant.ID, "Trip", map[string]any{
		"amount": "not a number",
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Len(t, validationErr.FieldErrors, 2)

	// no partial creation
	apps, err := f.apps.List(ctx, f.tenantID, repository.ApplicationFilter{})
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestSubmitUnknownTemplate(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.apps.Submit(context.Background(), f.tenantID, "missing", f.applicant.ID, "X", nil)

	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestSubmitConditionExcludesStep(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	route := f.highValueRoute(t)
	template := f.expenseTemplate(t, route.ID)

	decision, err := f.apps.Submit(ctx, f.tenantID, template.ID, f.applicant.ID, "Laptop", map[string]any{
		"amount": 5000,
	})
	require.NoError(t, err)

	// the accountant step does not apply; the chain starts at the admin step
	require.Len(t, decision.Assignments, 1)
	assert.Equal(t, 2, decision.Assignments[0].StepOrder)
	assert.Equal(t, models.AssignmentInProgress, decision.Assignments[0].Status)
	require.NotNil(t, decision.Application.CurrentStep)
	assert.Equal(t, 2, *decision.Application.CurrentStep)

	// the lone admin approving completes the application
	result, err := f.apps.Act(ctx, f.tenantID, decision.Application.ID, f.admins[0].ID, models.RoleAdmin, ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, result.Application.Status)
	assert.Nil(t, result.Application.CurrentStep)
}

func TestSubmitFailsWhenNoStepSurvives(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	threshold := 10000.0
	route, err := f.routes.CreateRoute(ctx, f.tenantID, "Conditional only", []StepInput{
		{ApproverRole: models.RoleAccountant, Condition: &models.Condition{FieldID: "amount", Min: &threshold}},
	})
	require.NoError(t, err)
	template := f.expenseTemplate(t, route.ID)

	_, err = f.apps.Submit(ctx, f.tenantID, template.ID, f.applicant.ID, "Pens", map[string]any{
		"amount": 20,
	})

	var invariant *InvariantViolation
	assert.ErrorAs(t, err, &invariant)
}

func TestApproveAdvancesToNextStep(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	route := f.plainRoute(t, models.RoleAccountant, models.RoleAdmin)
	template := f.expenseTemplate(t, route.ID)

	decision, err := f.apps.Submit(ctx, f.tenantID, template.ID, f.applicant.ID, "Monitor", map[string]any{
		"amount": 400,
	})
	require.NoError(t, err)

	result, err := f.apps.Act(ctx, f.tenantID, decision.Application.ID, f.accountant.ID, models.RoleAccountant, ActionApprove, "looks fine")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, result.Application.Status)
	require.NotNil(t, result.Application.CurrentStep)
	assert.Equal(t, 2, *result.Application.CurrentStep)

	first := assignmentAt(result.Assignments, 1)[0]
	assert.Equal(t, models.AssignmentApproved, first.Status)
	require.NotNil(t, first.Comment)
	assert.Equal(t, "looks fine", *first.Comment)
	assert.NotNil(t, first.ActedAt)

	second := assignmentAt(result.Assignments, 2)[0]
	assert.Equal(t, models.AssignmentInProgress, second.Status)
}

func TestApproveLastStepCompletesApplication(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	route := f.plainRoute(t, models.RoleAccountant)
	template := f.expenseTemplate(t, route.ID)

	decision, err := f.apps.Submit(ctx, f.tenantID, template.ID, f.applicant.ID, "Chair", map[string]any{
		"amount": 250,
	})
	require.NoError(t, err)

	result, err := f.apps.Act(ctx, f.tenantID, decision.Application.ID, f.accountant.ID, models.RoleAccountant, ActionApprove, "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, result.Application.Status)
	assert.Nil(t, result.Application.CurrentStep)
	for _, a := range result.Assignments {
		assert.NotEqual(t, models.AssignmentInProgress, a.Status)
	}
}

func TestRejectTerminatesAndKeepsEarlierApprovals(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	route := f.highValueRoute(t)
	template := f.expenseTemplate(t, route.ID)

	decision, err := f.apps.Submit(ctx, f.tenantID, template.ID, f.applicant.ID, "Servers", map[string]any{
		"amount": 15000,
	})
	require.NoError(t, err)
	require.Len(t, decision.Assignments, 2)

	_, err = f.apps.Act(ctx, f.tenantID, decision.Application.ID, f.accountant.ID, models.RoleAccountant, ActionApprove, "")
	require.NoError(t, err)

	result, err := f.apps.Act(ctx, f.tenantID, decision.Application.ID, f.admins[0].ID, models.RoleAdmin, ActionReject, "budget exceeded")
	require.NoError(t, err)

	assert.Equal(t, models.StatusRejected, result.Application.Status)
	assert.Nil(t, result.Application.CurrentStep)

	first := assignmentAt(result.Assignments, 1)[0]
	assert.Equal(t, models.AssignmentApproved, first.Status, "earlier approvals are not reverted")

	second := assignmentAt(result.Assignments, 2)[0]
	assert.Equal(t, models.AssignmentRejected, second.Status)
	require.NotNil(t, second.Comment)
	assert.Equal(t, "budget exceeded", *second.Comment)

	// terminal: any further action conflicts
	_, err = f.apps.Act(ctx, f.tenantID, decision.Application.ID, f.admins[0].ID, models.RoleAdmin, ActionApprove, "")
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestActWithWrongRoleMutatesNothing(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	route := f.plainRoute(t, models.RoleAccountant)
	template := f.expenseTemplate(t, route.ID)

	decision, err := f.apps.Submit(ctx, f.tenantID, template.ID, f.applicant.ID, "Desk", map[string]any{
		"amount": 300,
	})
	require.NoError(t, err)

	_, err = f.apps.Act(ctx, f.tenantID, decision.Application.ID, f.admins[0].ID, models.RoleAdmin, ActionApprove, "")
	var authz *AuthorizationError
	require.ErrorAs(t, err, &authz)

	after, err := f.apps.Get(ctx, f.tenantID, decision.Application.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, after.Application.Status)
	assert.Equal(t, models.AssignmentInProgress, after.Assignments[0].Status)
}

func TestActUnknownAction(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.apps.Act(context.Background(), f.tenantID, "whatever", f.accountant.ID, models.RoleAccountant, Action("defer"), "")

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestActCrossTenantLooksMissing(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	route := f.plainRoute(t, models.RoleAccountant)
	template := f.expenseTemplate(t, route.ID)
	decision, err := f.apps.Submit(ctx, f.tenantID, template.ID, f.applicant.ID, "Desk", map[string]any{
		"amount": 300,
	})
	require.NoError(t, err)

	other := &models.Tenant{Name: "Other", Domain: "other.test"}
	require.NoError(t, f.store.CreateTenant(ctx, other))

	_, err = f.apps.Act(ctx, other.ID, decision.Application.ID, f.accountant.ID, models.RoleAccountant, ActionApprove, "")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRequireAllFanIn(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	route, err := f.routes.CreateRoute(ctx, f.tenantID, "Unanimous", []StepInput{
		{ApproverRole: models.RoleAdmin, RequireAll: true},
	})
	require.NoError(t, err)
	template := f.expenseTemplate(t, route.ID)

	decision, err := f.apps.Submit(ctx, f.tenantID, template.ID, f.applicant.ID, "Policy change", map[string]any{
		"amount": 1,
	})
	require.NoError(t, err)
	require.Len(t, decision.Assignments, 2, "one assignment per admin")

	// first admin approves; the step is not complete yet
	result, err := f.apps.Act(ctx, f.tenantID, decision.Application.ID, f.admins[0].ID, models.RoleAdmin, ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, result.Application.Status)
	require.NotNil(t, result.Application.CurrentStep)
	assert.Equal(t, 1, *result.Application.CurrentStep)

	statuses := map[models.AssignmentStatus]int{}
	for _, a := range result.Assignments {
		statuses[a.Status]++
	}
	assert.Equal(t, 1, statuses[models.AssignmentApproved])
	assert.Equal(t, 1, statuses[models.AssignmentInProgress])

	// the same admin acting again conflicts
	_, err = f.apps.Act(ctx, f.tenantID, decision.Application.ID, f.admins[0].ID, models.RoleAdmin, ActionApprove, "")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	// the second admin completes the step and the application
	result, err = f.apps.Act(ctx, f.tenantID, decision.Application.ID, f.admins[1].ID, models.RoleAdmin, ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, result.Application.Status)
	assert.Nil(t, result.Application.CurrentStep)
}

func TestRequireAllRejectIsImmediatelyTerminal(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	route, err := f.routes.CreateRoute(ctx, f.tenantID, "Unanimous", []StepInput{
		{ApproverRole: models.RoleAdmin, RequireAll: true},
	})
	require.NoError(t, err)
	template := f.expenseTemplate(t, route.ID)

	decision, err := f.apps.Submit(ctx, f.tenantID, template.ID, f.applicant.ID, "Policy change", map[string]any{
		"amount": 1,
	})
	require.NoError(t, err)

	result, err := f.apps.Act(ctx, f.tenantID, decision.Application.ID, f.admins[1].ID, models.RoleAdmin, ActionReject, "no")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, result.Application.Status)

	// the other admin's assignment is left as it was
	for _, a := range result.Assignments {
		if a.AssigneeID != nil && *a.AssigneeID == f.admins[0].ID {
			assert.Equal(t, models.AssignmentInProgress, a.Status)
		}
	}
}

func TestConcurrentActExactlyOneWins(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	route := f.plainRoute(t, models.RoleAccountant)
	template := f.expenseTemplate(t, route.ID)
	second := f.addMember(t, "accountant2@acme.test", models.RoleAccountant)

	decision, err := f.apps.Submit(ctx, f.tenantID, template.ID, f.applicant.ID, "Race", map[string]any{
		"amount": 99,
	})
	require.NoError(t, err)

	actors := []*models.Member{f.accountant, second}
	errs := make([]error, len(actors))
	var wg sync.WaitGroup
	for i, actor := range actors {
		wg.Add(1)
		go func(i int, actorID string) {
			defer wg.Done()
			_, errs[i] = f.apps.Act(ctx, f.tenantID, decision.Application.ID, actorID, models.RoleAccountant, ActionApprove, "")
		}(i, actor.ID)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var conflict *ConflictError
		if assert.ErrorAs(t, err, &conflict) {
			conflicted++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one act call wins")
	assert.Equal(t, 1, conflicted)

	after, err := f.apps.Get(ctx, f.tenantID, decision.Application.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, after.Application.Status, "the application advanced exactly once")
}
