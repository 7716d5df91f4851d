package ai

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sahayak/sahayak/internal/domain/prescription"
	"github.com/sahayak/sahayak/internal/domain/vitals"
	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/internal/platform/auth"
)

type Handler struct {
	assistant *Assistant
}

func NewHandler(assistant *Assistant) *Handler {
	return &Handler{assistant: assistant}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/assistant")
	g.POST("/chat", h.Chat)
	g.POST("/insights", h.Insights)
	g.POST("/parse", h.Parse)
	g.POST("/reminders", h.Reminders)
	g.POST("/emergency-advice", h.EmergencyAdvice)
	g.POST("/translate", h.Translate)
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

type chatRequest struct {
	Message string      `json:"message"`
	Context ChatContext `json:"context"`
}

// Chat always answers for the calling user, whatever user_id the body names.
func (h *Handler) Chat(c echo.Context) error {
	var req chatRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	req.Context.UserID = auth.ActorFromContext(ctx).ID
	reply, err := h.assistant.Chat(ctx, req.Message, req.Context)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"reply": reply})
}

type insightsRequest struct {
	Vitals   *vitals.Measurements `json:"vitals"`
	Diseases []string             `json:"diseases"`
}

func (h *Handler) Insights(c echo.Context) error {
	var req insightsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	insights, err := h.assistant.Insights(c.Request().Context(), req.Vitals, req.Diseases)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"insights": insights})
}

type textRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (h *Handler) Parse(c echo.Context) error {
	var req textRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.assistant.ParseDocument(c.Request().Context(), req.Text)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

type remindersRequest struct {
	Medications []prescription.Medication `json:"medications"`
}

func (h *Handler) Reminders(c echo.Context) error {
	var req remindersRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	reminders, err := h.assistant.MedicationReminders(c.Request().Context(), req.Medications)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"reminders": reminders})
}

type emergencyRequest struct {
	Symptoms string `json:"symptoms"`
	Severity string `json:"severity"`
}

func (h *Handler) EmergencyAdvice(c echo.Context) error {
	var req emergencyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	advice, err := h.assistant.EmergencyAdvice(c.Request().Context(), req.Symptoms, req.Severity)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, advice)
}

func (h *Handler) Translate(c echo.Context) error {
	var req textRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Language == "" {
		return apperr.ToHTTP(apperr.Validation("language is required", map[string]string{"language": "is required"}))
	}
	out := h.assistant.Translate(c.Request().Context(), req.Text, req.Language)
	return c.JSON(http.StatusOK, map[string]string{"text": out, "language": req.Language})
}
