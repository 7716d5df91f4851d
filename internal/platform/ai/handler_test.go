package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahayak/sahayak/internal/platform/auth"
)

func postJSON(e *echo.Echo, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithActor(context.Background(), auth.Actor{ID: "patient-7", Roles: []string{auth.RolePatient}}))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_ChatUsesCaller(t *testing.T) {
	a, g := newAssistant("Namaste!", nil)
	h := NewHandler(a)
	c, rec := postJSON(echo.New(), `{"message":"hello","context":{"user_id":"someone-else"}}`)

	require.NoError(t, h.Chat(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reply":"Namaste!"}`, rec.Body.String())
	assert.Contains(t, g.prompts[0], "User ID: patient-7")
	assert.NotContains(t, g.prompts[0], "someone-else")
}

func TestHandler_DisabledIs503(t *testing.T) {
	h := NewHandler(NewAssistant(nil, zerolog.Nop()))
	c, _ := postJSON(echo.New(), `{"message":"hello"}`)

	err := h.Chat(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusServiceUnavailable, he.Code)
}

func TestHandler_Translate(t *testing.T) {
	a, _ := newAssistant("வணக்கம்", nil)
	h := NewHandler(a)
	c, rec := postJSON(echo.New(), `{"text":"hello","language":"Tamil"}`)

	require.NoError(t, h.Translate(c))
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "வணக்கம்", out["text"])

	c, _ = postJSON(echo.New(), `{"text":"hello"}`)
	var he *echo.HTTPError
	require.ErrorAs(t, h.Translate(c), &he)
	assert.Equal(t, http.StatusUnprocessableEntity, he.Code)
}

func TestHandler_RegisterRoutes(t *testing.T) {
	e := echo.New()
	a, _ := newAssistant("", nil)
	NewHandler(a).RegisterRoutes(e.Group("/api/v1"))

	paths := map[string]bool{}
	for _, r := range e.Routes() {
		paths[r.Path] = true
	}
	for _, p := range []string{"chat", "insights", "parse", "reminders", "emergency-advice", "translate"} {
		assert.True(t, paths["/api/v1/assistant/"+p], "missing %s", p)
	}
}
