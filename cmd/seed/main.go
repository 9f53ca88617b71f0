package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"groupdesk/backend/internal/config"
	"groupdesk/backend/internal/logging"
	"groupdesk/backend/internal/repository"
	"groupdesk/backend/internal/services"
	"groupdesk/backend/pkg/models"
)

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()

	configFile := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	logger.Info("Schema applied")

	store := repository.NewPostgresStore(pool)

	// 1. Ensure Tenant Exists
	domain := "localhost"
	tenant, err := store.GetTenantByDomain(ctx, domain)
	if err != nil {
		logger.Info("Creating default tenant", "domain", domain)
		tenant = &models.Tenant{
			Name:   "Local Dev Tenant",
			Domain: domain,
		}
		if err := store.CreateTenant(ctx, tenant); err != nil {
			log.Fatalf("Failed to create tenant: %v", err)
		}
	} else {
		logger.Info("Found existing tenant", "id", tenant.ID)
	}

	// 2. Seed Members, one per role
	seedMembers := []struct {
		Email string
		Name  string
		Role  models.Role
	}{
		{"admin@localhost", "Admin", models.RoleAdmin},
		{"accountant@localhost", "Accountant", models.RoleAccountant},
		{"manager@localhost", "Manager", models.RoleManager},
		{"member@localhost", "Member", models.RoleMember},
	}
	for _, m := range seedMembers {
		if _, err := store.GetMemberByEmail(ctx, tenant.ID, m.Email); err == nil {
			logger.Info("Skipping existing member", "email", m.Email)
			continue
		}
		member := &models.Member{
			TenantID: tenant.ID,
			Email:    m.Email,
			Name:     m.Name,
			Role:     m.Role,
		}
		if err := store.CreateMember(ctx, member); err != nil {
			log.Printf("Failed to create member %s: %v", m.Email, err)
		} else {
			logger.Info("Seeded member", "email", m.Email, "role", m.Role)
		}
	}

	// 3. Seed a demo route and template unless one already exists
	existing, err := store.ListRoutes(ctx, tenant.ID)
	if err != nil {
		log.Fatalf("Failed to list routes: %v", err)
	}
	if len(existing) > 0 {
		logger.Info("Routes already present, skipping demo data", "count", len(existing))
		logger.Info("Seeding complete!")
		return
	}

	routeService := services.NewRouteService(store, store)

	threshold := 10000.0
	route, err := routeService.CreateRoute(ctx, tenant.ID, "High-value purchase", []services.StepInput{
		{
			ApproverRole: models.RoleAccountant,
			Condition:    &models.Condition{FieldID: "amount", Min: &threshold},
		},
		{
			ApproverRole: models.RoleAdmin,
			RequireAll:   true,
		},
	})
	if err != nil {
		log.Fatalf("Failed to create demo route: %v", err)
	}
	logger.Info("Seeded route", "name", route.Name, "id", route.ID)

	maxAmount := 1000000.0
	template, err := routeService.CreateTemplate(ctx, tenant.ID, route.ID, "Purchase request",
		"Request approval for a purchase.", []models.FieldDefinition{
			{ID: "amount", Label: "Amount", Type: models.FieldNumber, Required: true, Max: &maxAmount},
			{ID: "vendor", Label: "Vendor", Type: models.FieldText, Required: true},
			{ID: "category", Label: "Category", Type: models.FieldSelect, Required: true,
				Options: []string{"equipment", "software", "travel", "other"}},
			{ID: "justification", Label: "Justification", Type: models.FieldTextarea},
			{ID: "quote", Label: "Quote document", Type: models.FieldFile},
		})
	if err != nil {
		log.Fatalf("Failed to create demo template: %v", err)
	}
	logger.Info("Seeded template", "name", template.Name, "id", template.ID)

	logger.Info("Seeding complete!")
}
