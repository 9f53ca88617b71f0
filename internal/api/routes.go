package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"groupdesk/backend/internal/auth"
	"groupdesk/backend/internal/services"
	"groupdesk/backend/pkg/models"
)

// CreateRouteRequest is the payload for POST /routes. Step orders are
// assigned server-side from slice position.
type CreateRouteRequest struct {
	Name  string               `json:"name"`
	Steps []services.StepInput `json:"steps"`
}

// CreateRoute creates an approval route.
// (POST /api/v1/routes)
func (s *Server) CreateRoute(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateRouteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	route, err := s.Routes.CreateRoute(ctx, auth.TenantID(ctx), req.Name, req.Steps)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, route)
}

// ListRoutes returns the tenant's routes.
// (GET /api/v1/routes)
func (s *Server) ListRoutes(c echo.Context) error {
	ctx := c.Request().Context()

	routes, err := s.Routes.ListRoutes(ctx, auth.TenantID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, routes)
}

// GetRoute returns one route with its steps.
// (GET /api/v1/routes/:id)
func (s *Server) GetRoute(c echo.Context) error {
	ctx := c.Request().Context()

	route, err := s.Routes.GetRoute(ctx, auth.TenantID(ctx), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, route)
}

// DeleteRoute deletes a route unless a template references it.
// (DELETE /api/v1/routes/:id)
func (s *Server) DeleteRoute(c echo.Context) error {
	ctx := c.Request().Context()

	if err := s.Routes.DeleteRoute(ctx, auth.TenantID(ctx), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateTemplateRequest is the payload for POST /templates.
type CreateTemplateRequest struct {
	RouteID     string                   `json:"route_id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Fields      []models.FieldDefinition `json:"fields"`
}

// CreateTemplate creates an application template bound to a route.
// (POST /api/v1/templates)
func (s *Server) CreateTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateTemplateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	template, err := s.Routes.CreateTemplate(ctx, auth.TenantID(ctx), req.RouteID, req.Name, req.Description, req.Fields)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, template)
}

// ListTemplates returns the tenant's templates.
// (GET /api/v1/templates)
func (s *Server) ListTemplates(c echo.Context) error {
	ctx := c.Request().Context()

	templates, err := s.Routes.ListTemplates(ctx, auth.TenantID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, templates)
}

// GetTemplate returns one template.
// (GET /api/v1/templates/:id)
func (s *Server) GetTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	template, err := s.Routes.GetTemplate(ctx, auth.TenantID(ctx), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, template)
}

// DeleteTemplate deletes a template unless applications reference it.
// (DELETE /api/v1/templates/:id)
func (s *Server) DeleteTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	if err := s.Routes.DeleteTemplate(ctx, auth.TenantID(ctx), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
