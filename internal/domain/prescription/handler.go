package prescription

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/internal/platform/auth"
	"github.com/sahayak/sahayak/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/prescriptions/:id", h.Get)
	api.GET("/patients/:id/prescriptions", h.ListByPatient,
		auth.RequireSelfOrRole("id", auth.RoleASHA, auth.RoleDoctor))
	api.GET("/doctors/:id/prescriptions", h.ListByDoctor,
		auth.RequireSelfOrRole("id", auth.RoleAdmin))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.GetFor(ctx, auth.ActorFromContext(ctx), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

type listFunc func(ctx context.Context, id uuid.UUID, page pagination.Params) ([]*Prescription, int, error)

func (h *Handler) list(c echo.Context, fn listFunc) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	page := pagination.FromContext(c)
	items, total, err := fn(c.Request().Context(), id, page)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*Prescription{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, page.Limit, page.Offset))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	return h.list(c, h.svc.ListByPatient)
}

func (h *Handler) ListByDoctor(c echo.Context) error {
	return h.list(c, h.svc.ListByDoctor)
}
