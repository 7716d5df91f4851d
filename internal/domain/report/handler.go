package report

import (
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

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

	api.POST("/reports", h.Upload)
	api.GET("/patients/:id/reports", h.List, careTeam)
	api.GET("/reports/:id", h.Get)
	api.GET("/reports/:id/file", h.Download)
	api.DELETE("/reports/:id", h.Delete)
	api.POST("/reports/:id/analyze", h.Analyze)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// contentTypeOf trusts the part header unless it is missing or generic.
func contentTypeOf(header, fileName string) string {
	if header != "" && header != echo.MIMEOctetStream {
		return header
	}
	if ct := mime.TypeByExtension(filepath.Ext(fileName)); ct != "" {
		return ct
	}
	return echo.MIMEOctetStream
}

// Upload accepts multipart form data with a "file" part. patient_id
// defaults to the caller.
func (h *Handler) Upload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	ctx := c.Request().Context()
	actor := auth.ActorFromContext(ctx)

	rawPatient := c.FormValue("patient_id")
	if rawPatient == "" {
		rawPatient = actor.ID
	}
	patientID, err := uuid.Parse(rawPatient)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to open uploaded file")
	}
	defer src.Close()

	up := Upload{
		PatientID:   patientID,
		FileName:    file.Filename,
		ContentType: contentTypeOf(file.Header.Get(echo.HeaderContentType), file.Filename),
		Content:     src,
	}
	if d := c.FormValue("description"); d != "" {
		up.Description = &d
	}

	rp, err := h.svc.Upload(ctx, actor, up)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, rp)
}

func (h *Handler) List(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	ctx := c.Request().Context()
	items, err := h.svc.List(ctx, auth.ActorFromContext(ctx), patientID, limit)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*Report{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	rp, err := h.svc.Get(ctx, auth.ActorFromContext(ctx), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, rp)
}

func (h *Handler) Download(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	body, rp, err := h.svc.Open(ctx, auth.ActorFromContext(ctx), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	defer body.Close()
	c.Response().Header().Set(echo.HeaderContentDisposition, "inline; filename=\""+cleanFileName(rp.FileName)+"\"")
	return c.Stream(http.StatusOK, rp.ContentType, body)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.Delete(ctx, auth.ActorFromContext(ctx), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type analyzeRequest struct {
	Text string `json:"text"`
}

func (h *Handler) Analyze(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	rp, err := h.svc.Analyze(ctx, auth.ActorFromContext(ctx), id, req.Text)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, rp)
}
