package identity

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
	self := auth.RequireSelfOrRole("id", auth.RoleAdmin)
	careTeam := auth.RequireSelfOrRole("id", auth.RoleASHA, auth.RoleDoctor)

	api.POST("/persons", h.Register)
	api.GET("/persons", h.ListAvailable)
	api.GET("/persons/:id", h.GetPerson, careTeam)
	api.PATCH("/persons/:id", h.Update, self)
	api.PUT("/persons/:id/availability", h.SetAvailability, self)
	api.PUT("/persons/:id/location", h.UpdateLocation, self)
	api.GET("/persons/:id/nearby-patients", h.NearbyPatients, self)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Register(c echo.Context) error {
	var p Person
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	if err := h.svc.Register(c.Request().Context(), actor, &p); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPerson(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPerson(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var patch PersonPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Update(c.Request().Context(), id, patch)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SetAvailability(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body struct {
		Available *bool `json:"available"`
	}
	if err := c.Bind(&body); err != nil || body.Available == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "available is required")
	}
	if err := h.svc.SetAvailability(c.Request().Context(), id, *body.Available); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UpdateLocation(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var loc Location
	if err := c.Bind(&loc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateLocation(c.Request().Context(), id, loc); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// parseNear reads ?lat=&lng=&radius=. It returns nil when lat/lng are absent.
func parseNear(c echo.Context, defaultRadius float64) (*Near, error) {
	latS, lngS := c.QueryParam("lat"), c.QueryParam("lng")
	if latS == "" && lngS == "" {
		return nil, nil
	}
	lat, err1 := strconv.ParseFloat(latS, 64)
	lng, err2 := strconv.ParseFloat(lngS, 64)
	if err1 != nil || err2 != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "lat and lng must be numbers")
	}
	radius := defaultRadius
	if r := c.QueryParam("radius"); r != "" {
		v, err := strconv.ParseFloat(r, 64)
		if err != nil || v <= 0 {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "radius must be a positive number")
		}
		radius = v
	}
	return &Near{Point: geo.Point{Lat: lat, Lng: lng}, RadiusKm: radius}, nil
}

func (h *Handler) ListAvailable(c echo.Context) error {
	near, err := parseNear(c, DefaultNearbyRadiusKm)
	if err != nil {
		return err
	}
	f := ListFilter{
		Specialization: c.QueryParam("specialization"),
		Language:       c.QueryParam("language"),
	}
	people, err := h.svc.ListAvailable(c.Request().Context(), c.QueryParam("role"), f, near)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if people == nil {
		people = []*Person{}
	}
	return c.JSON(http.StatusOK, people)
}

func (h *Handler) NearbyPatients(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	radius, _ := strconv.ParseFloat(c.QueryParam("radius"), 64)
	people, err := h.svc.NearbyPatients(c.Request().Context(), id, radius)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if people == nil {
		people = []*Person{}
	}
	return c.JSON(http.StatusOK, people)
}
