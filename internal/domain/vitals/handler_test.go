package vitals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sahayak/sahayak/internal/platform/auth"
)

func asActor(req *http.Request, a auth.Actor) *http.Request {
	return req.WithContext(auth.WithActor(context.Background(), a))
}

func TestHandler_Record(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	patient := uuid.New()

	body := `{"blood_pressure":{"systolic":150,"diastolic":95},"blood_sugar":{"value":110,"fasting":true}}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asActor(req, auth.Actor{ID: patient.String(), Roles: []string{auth.RolePatient}})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Record(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var got recordResponse
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.HealthScore != 65 {
		t.Errorf("expected score 65, got %d", got.HealthScore)
	}
	if got.Reading == nil || got.Reading.SubjectID != patient {
		t.Errorf("expected reading for %s", patient)
	}
}

func TestHandler_Record_OutOfRange(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"heart_rate":400}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asActor(req, auth.Actor{ID: uuid.NewString(), Roles: []string{auth.RolePatient}})
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.Record(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestHandler_List(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	patient := uuid.New()
	svc.Append(context.Background(), &Reading{SubjectID: patient, Measurements: normalBP()})

	req := httptest.NewRequest(http.MethodGet, "/?limit=10", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(patient.String())

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got struct {
		Data  []Reading `json:"data"`
		Total int       `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Total != 1 || len(got.Data) != 1 {
		t.Errorf("expected 1 reading, got %d", got.Total)
	}
}
