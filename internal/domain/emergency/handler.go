package emergency

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/internal/platform/auth"
	"github.com/sahayak/sahayak/pkg/geo"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/emergency")
	admin := auth.RequireRole(auth.RoleAdmin)
	staff := auth.RequireRole(auth.RoleASHA, auth.RoleDoctor)

	g.GET("/nearby", h.Nearby)
	g.GET("/search", h.Search)
	g.GET("/contacts", h.Contacts)
	g.GET("/services", h.ListServices)
	g.POST("/services", h.AddService, admin)
	g.PUT("/services/:id", h.UpdateService, admin)
	g.POST("/requests", h.CreateRequest)
	g.GET("/requests", h.ListRequests)
	g.PUT("/requests/:id/status", h.UpdateRequestStatus)
	g.GET("/statistics", h.Statistics, staff)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Nearby(c echo.Context) error {
	lat, err1 := strconv.ParseFloat(c.QueryParam("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.QueryParam("lng"), 64)
	if err1 != nil || err2 != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "lat and lng must be numbers")
	}
	var radius float64
	if r := c.QueryParam("radius"); r != "" {
		v, err := strconv.ParseFloat(r, 64)
		if err != nil || v <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "radius must be a positive number")
		}
		radius = v
	}
	hits, err := h.svc.Nearby(c.Request().Context(), geo.Point{Lat: lat, Lng: lng}, c.QueryParam("type"), radius)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, hits)
}

func (h *Handler) Search(c echo.Context) error {
	found, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if found == nil {
		found = []*Facility{}
	}
	return c.JSON(http.StatusOK, found)
}

func (h *Handler) Contacts(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Contacts())
}

func (h *Handler) ListServices(c echo.Context) error {
	list, err := h.svc.ListServices(c.Request().Context(), c.QueryParam("type"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if list == nil {
		list = []*Facility{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) AddService(c echo.Context) error {
	var f Facility
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddService(c.Request().Context(), &f); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) UpdateService(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var patch FacilityPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f, err := h.svc.UpdateService(c.Request().Context(), id, patch)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) CreateRequest(c echo.Context) error {
	var r Request
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if err := h.svc.CreateRequest(ctx, auth.ActorFromContext(ctx), &r); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListRequests(c echo.Context) error {
	var userID uuid.UUID
	if s := c.QueryParam("user_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid user_id")
		}
		userID = id
	}
	ctx := c.Request().Context()
	list, err := h.svc.ListRequests(ctx, auth.ActorFromContext(ctx), userID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if list == nil {
		list = []*Request{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) UpdateRequestStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var u StatusUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	r, err := h.svc.UpdateRequestStatus(ctx, auth.ActorFromContext(ctx), id, u)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Statistics(c echo.Context) error {
	st, err := h.svc.Statistics(c.Request().Context())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, st)
}
