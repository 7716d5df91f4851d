package vitals

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	careTeam := auth.RequireSelfOrRole("id", auth.RoleASHA, auth.RoleDoctor)

	api.POST("/vitals", h.Record)
	api.GET("/patients/:id/vitals", h.List, careTeam)
}

type recordRequest struct {
	SubjectID  *uuid.UUID `json:"subject_id"`
	RecordedAt *time.Time `json:"recorded_at"`
	Measurements
}

type recordResponse struct {
	Reading     *Reading `json:"reading"`
	HealthScore int      `json:"health_score"`
}

func (h *Handler) Record(c echo.Context) error {
	var req recordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	subject := uuid.Nil
	if req.SubjectID != nil {
		subject = *req.SubjectID
	}
	var at time.Time
	if req.RecordedAt != nil {
		at = *req.RecordedAt
	}
	ctx := c.Request().Context()
	rd, err := h.svc.Record(ctx, auth.ActorFromContext(ctx), subject, req.Measurements, at)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, recordResponse{Reading: rd, HealthScore: HealthScore(rd.Measurements)})
}

func (h *Handler) List(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.svc.List(c.Request().Context(), id, limit)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*Reading{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}
