package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"groupdesk/backend/internal/auth"
	"groupdesk/backend/internal/repository"
	"groupdesk/backend/internal/services"
	"groupdesk/backend/pkg/models"
)

// SubmitApplicationRequest is the payload for POST /applications. Data is
// validated against the template's field schema before anything is written.
type SubmitApplicationRequest struct {
	TemplateID string         `json:"template_id"`
	Title      string         `json:"title"`
	Data       map[string]any `json:"data"`
}

// SubmitApplication creates an application and its assignment chain. The
// applicant is the authenticated member.
// (POST /api/v1/applications)
func (s *Server) SubmitApplication(c echo.Context) error {
	ctx := c.Request().Context()

	var req SubmitApplicationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	decision, err := s.Apps.Submit(ctx, auth.TenantID(ctx), req.TemplateID, auth.MemberID(ctx), req.Title, req.Data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, decision)
}

// ListApplications returns the tenant's applications, optionally filtered by
// status, template or applicant query parameters.
// (GET /api/v1/applications)
func (s *Server) ListApplications(c echo.Context) error {
	ctx := c.Request().Context()

	filter := repository.ApplicationFilter{
		Status:      models.ApplicationStatus(c.QueryParam("status")),
		TemplateID:  c.QueryParam("template_id"),
		ApplicantID: c.QueryParam("applicant_id"),
	}
	if c.QueryParam("mine") == "true" {
		filter.ApplicantID = auth.MemberID(ctx)
	}

	apps, err := s.Apps.List(ctx, auth.TenantID(ctx), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apps)
}

// GetApplication returns one application with its assignment chain.
// (GET /api/v1/applications/:id)
func (s *Server) GetApplication(c echo.Context) error {
	ctx := c.Request().Context()

	decision, err := s.Apps.Get(ctx, auth.TenantID(ctx), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, decision)
}

// DecideApplicationRequest is the payload for POST /applications/:id/decision.
type DecideApplicationRequest struct {
	Action  services.Action `json:"action"`
	Comment string          `json:"comment"`
}

// DecideApplication applies an approve/reject decision to the application's
// current step. The acting member and their role come from the session, so a
// caller can never act under a role the directory does not grant them.
// (POST /api/v1/applications/:id/decision)
func (s *Server) DecideApplication(c echo.Context) error {
	ctx := c.Request().Context()

	var req DecideApplicationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	decision, err := s.Apps.Act(ctx, auth.TenantID(ctx), c.Param("id"), auth.MemberID(ctx), auth.MemberRole(ctx), req.Action, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, decision)
}
