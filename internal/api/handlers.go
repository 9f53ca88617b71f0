// Package api binds the approval engine to HTTP.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"groupdesk/backend/internal/logging"
	"groupdesk/backend/internal/repository"
	"groupdesk/backend/internal/services"
	"groupdesk/backend/pkg/models"
)

// Server holds the dependencies for the API handlers.
type Server struct {
	Routes *services.RouteService
	Apps   *services.ApplicationService
	Store  repository.Store
	Logger *logging.Logger
}

// NewServer creates a new Server.
func NewServer(routes *services.RouteService, apps *services.ApplicationService, store repository.Store, logger *logging.Logger) *Server {
	return &Server{Routes: routes, Apps: apps, Store: store, Logger: logger}
}

// Register mounts every API endpoint on the given group.
func (s *Server) Register(g *echo.Group) {
	g.POST("/routes", s.CreateRoute)
	g.GET("/routes", s.ListRoutes)
	g.GET("/routes/:id", s.GetRoute)
	g.DELETE("/routes/:id", s.DeleteRoute)

	g.POST("/templates", s.CreateTemplate)
	g.GET("/templates", s.ListTemplates)
	g.GET("/templates/:id", s.GetTemplate)
	g.DELETE("/templates/:id", s.DeleteTemplate)

	g.POST("/applications", s.SubmitApplication)
	g.GET("/applications", s.ListApplications)
	g.GET("/applications/:id", s.GetApplication)
	g.POST("/applications/:id/decision", s.DecideApplication)
}

// HealthStatus represents the health check response.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth reports service and database health.
func (s *Server) HandleHealth(c echo.Context) error {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "groupdesk-approval",
		Version:   "1.0.0",
	}
	if err := s.Store.Ping(c.Request().Context()); err != nil {
		status.Status = "degraded"
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, status)
}

// ProblemDetails represents an RFC 7807 Problem Details response.
// FieldErrors is populated for submission validation failures.
type ProblemDetails struct {
	Type        string              `json:"type"`
	Title       string              `json:"title"`
	Status      int                 `json:"status"`
	Detail      string              `json:"detail,omitempty"`
	FieldErrors []models.FieldError `json:"field_errors,omitempty"`
}

// NewHTTPErrorHandler maps the engine's error taxonomy onto HTTP status
// codes: ValidationError 400, AuthorizationError 403, NotFoundError 404,
// ConflictError 409, InvariantViolation 500. Invariant violations are logged
// loudly and never leak internal detail to the caller.
func NewHTTPErrorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		problem := ProblemDetails{Type: "about:blank"}

		var (
			validationErr *services.ValidationError
			authzErr      *services.AuthorizationError
			notFoundErr   *services.NotFoundError
			conflictErr   *services.ConflictError
			invariantErr  *services.InvariantViolation
			httpErr       *echo.HTTPError
		)
		switch {
		case errors.As(err, &validationErr):
			problem.Status = http.StatusBadRequest
			problem.Title = "Validation failed"
			problem.Detail = validationErr.Message
			problem.FieldErrors = validationErr.FieldErrors
		case errors.As(err, &authzErr):
			problem.Status = http.StatusForbidden
			problem.Title = "Forbidden"
			problem.Detail = authzErr.Message
		case errors.As(err, &notFoundErr):
			problem.Status = http.StatusNotFound
			problem.Title = "Not found"
			problem.Detail = notFoundErr.Error()
		case errors.As(err, &conflictErr):
			problem.Status = http.StatusConflict
			problem.Title = "Conflict"
			problem.Detail = conflictErr.Message
		case errors.As(err, &invariantErr):
			logger.Error("invariant violation", "path", c.Path(), "error", err)
			problem.Status = http.StatusInternalServerError
			problem.Title = "Internal error"
		case errors.As(err, &httpErr):
			problem.Status = httpErr.Code
			problem.Title = http.StatusText(httpErr.Code)
			if msg, ok := httpErr.Message.(string); ok {
				problem.Detail = msg
			}
		default:
			logger.Error("unhandled error", "path", c.Path(), "error", err)
			problem.Status = http.StatusInternalServerError
			problem.Title = "Internal error"
		}

		c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
		if writeErr := c.JSON(problem.Status, problem); writeErr != nil {
			logger.Error("failed to write error response", "error", writeErr)
		}
	}
}
