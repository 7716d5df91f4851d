package workitem

import (
	"errors"
	"net/http"
	"strings"
	"time"

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

// RegisterRoutes mounts tasks and appointments over the same engine, plus
// the per-assignee views.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	h.mount(api.Group("/tasks"), CategoryTask)
	h.mount(api.Group("/appointments"), CategoryConsultation)

	self := auth.RequireSelfOrRole("id", auth.RoleAdmin)
	api.GET("/assignees/:id/statistics", h.Statistics, self)
	api.GET("/assignees/:id/dashboard", h.Dashboard, self)
}

func (h *Handler) mount(g *echo.Group, cat Category) {
	g.POST("", h.create(cat))
	g.GET("", h.list(cat))
	g.GET("/:id", h.get(cat))
	g.POST("/:id/accept", h.accept(cat))
	g.POST("/:id/start", h.start(cat))
	g.POST("/:id/complete", h.complete(cat))
	g.POST("/:id/cancel", h.cancel(cat))
	if cat == CategoryConsultation {
		g.POST("/:id/reject", h.reject(cat))
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// inCategory resolves :id and checks it belongs to the mounted collection.
func (h *Handler) inCategory(c echo.Context, cat Category) (uuid.UUID, error) {
	id, err := parseID(c)
	if err != nil {
		return uuid.Nil, err
	}
	w, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return uuid.Nil, apperr.ToHTTP(err)
	}
	if w.Category != cat {
		return uuid.Nil, apperr.ToHTTP(apperr.NotFound(string(cat), id.String()))
	}
	return id, nil
}

type createRequest struct {
	SubjectID   uuid.UUID `json:"subject_id"`
	AssigneeID  uuid.UUID `json:"assignee_id"`
	Kind        string    `json:"kind"`
	Priority    string    `json:"priority"`
	Urgency     string    `json:"urgency"`
	Description *string   `json:"description"`
	Reason      *string   `json:"reason"`
	Notes       *string   `json:"notes"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

func (h *Handler) create(cat Category) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		priority := req.Priority
		if priority == "" {
			priority = req.Urgency
		}
		w := &WorkItem{
			Category:    cat,
			SubjectID:   req.SubjectID,
			AssigneeID:  req.AssigneeID,
			Kind:        req.Kind,
			Priority:    priority,
			Description: req.Description,
			Reason:      req.Reason,
			Notes:       req.Notes,
			ScheduledAt: req.ScheduledAt,
		}
		ctx := c.Request().Context()
		if err := h.svc.Create(ctx, auth.ActorFromContext(ctx), w); err != nil {
			return apperr.ToHTTP(err)
		}
		return c.JSON(http.StatusCreated, w)
	}
}

func parseFilter(c echo.Context, cat Category) (Filter, error) {
	f := Filter{Category: &cat, Kind: c.QueryParam("kind")}
	for name, dst := range map[string]**uuid.UUID{"assignee_id": &f.AssigneeID, "subject_id": &f.SubjectID} {
		if v := c.QueryParam(name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return f, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
			}
			*dst = &id
		}
	}
	if v := c.QueryParam("status"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			st, ok := ParseStatus(strings.TrimSpace(raw))
			if !ok {
				return f, echo.NewHTTPError(http.StatusBadRequest, "invalid status: "+raw)
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	for name, dst := range map[string]**time.Time{"from": &f.ScheduledFrom, "to": &f.ScheduledTo} {
		if v := c.QueryParam(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+": expected RFC3339")
			}
			*dst = &t
		}
	}
	return f, nil
}

func (h *Handler) list(cat Category) echo.HandlerFunc {
	return func(c echo.Context) error {
		f, err := parseFilter(c, cat)
		if err != nil {
			return err
		}
		page := pagination.FromContext(c)
		ctx := c.Request().Context()
		items, total, err := h.svc.ListFor(ctx, auth.ActorFromContext(ctx), f, page)
		if err != nil {
			return apperr.ToHTTP(err)
		}
		if items == nil {
			items = []*WorkItem{}
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, page.Limit, page.Offset))
	}
}

func (h *Handler) get(cat Category) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		ctx := c.Request().Context()
		w, err := h.svc.GetFor(ctx, auth.ActorFromContext(ctx), id)
		if err != nil {
			return apperr.ToHTTP(err)
		}
		if w.Category != cat {
			return apperr.ToHTTP(apperr.NotFound(string(cat), id.String()))
		}
		return c.JSON(http.StatusOK, w)
	}
}

type transitionFunc func(c echo.Context, actor auth.Actor, id uuid.UUID) (*WorkItem, error)

func (h *Handler) run(cat Category, fn transitionFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := h.inCategory(c, cat)
		if err != nil {
			return err
		}
		w, err := fn(c, auth.ActorFromContext(c.Request().Context()), id)
		if err != nil {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				return he
			}
			return apperr.ToHTTP(err)
		}
		return c.JSON(http.StatusOK, w)
	}
}

func (h *Handler) accept(cat Category) echo.HandlerFunc {
	return h.run(cat, func(c echo.Context, actor auth.Actor, id uuid.UUID) (*WorkItem, error) {
		return h.svc.Accept(c.Request().Context(), actor, id)
	})
}

func (h *Handler) start(cat Category) echo.HandlerFunc {
	return h.run(cat, func(c echo.Context, actor auth.Actor, id uuid.UUID) (*WorkItem, error) {
		return h.svc.Start(c.Request().Context(), actor, id)
	})
}

func (h *Handler) cancel(cat Category) echo.HandlerFunc {
	return h.run(cat, func(c echo.Context, actor auth.Actor, id uuid.UUID) (*WorkItem, error) {
		return h.svc.Cancel(c.Request().Context(), actor, id)
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) reject(cat Category) echo.HandlerFunc {
	return h.run(cat, func(c echo.Context, actor auth.Actor, id uuid.UUID) (*WorkItem, error) {
		var req rejectRequest
		if err := c.Bind(&req); err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return h.svc.Reject(c.Request().Context(), actor, id, req.Reason)
	})
}

// complete binds the outcome arm of the mounted category.
func (h *Handler) complete(cat Category) echo.HandlerFunc {
	return h.run(cat, func(c echo.Context, actor auth.Actor, id uuid.UUID) (*WorkItem, error) {
		var outcome Outcome
		if cat == CategoryConsultation {
			outcome = &ConsultationOutcome{}
		} else {
			outcome = &WorkerOutcome{}
		}
		if err := c.Bind(outcome); err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return h.svc.Complete(c.Request().Context(), actor, id, outcome)
	})
}

func (h *Handler) Statistics(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cat := Category(c.QueryParam("category"))
	if cat == "" {
		cat = CategoryTask
	}
	if _, ok := validKinds[cat]; !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "category must be task or consultation")
	}
	stats, err := h.svc.Statistics(c.Request().Context(), id, cat)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) Dashboard(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Dashboard(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}
