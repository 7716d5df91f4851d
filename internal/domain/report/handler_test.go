package report

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sahayak/sahayak/internal/platform/auth"
)

func multipartBody(t *testing.T, fields map[string]string, fileName, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	writer.Close()
	return body, writer.FormDataContentType()
}

func withActor(req *http.Request, a auth.Actor) *http.Request {
	return req.WithContext(auth.WithActor(context.Background(), a))
}

func TestHandler_UploadAndDownload(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	patient := uuid.New()
	actor := auth.Actor{ID: patient.String(), Roles: []string{auth.RolePatient}}

	body, ct := multipartBody(t, map[string]string{"description": "fasting sugar"}, "sugar.png", "", []byte("\x89PNG\r\n"))
	req := withActor(httptest.NewRequest(http.MethodPost, "/reports", body), actor)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Upload(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var rp Report
	json.Unmarshal(rec.Body.Bytes(), &rp)
	if rp.PatientID != patient || rp.ContentType != "image/png" || rp.Description == nil {
		t.Errorf("unexpected report %+v", rp)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(withActor(httptest.NewRequest(http.MethodGet, "/", nil), actor), rec)
	c.SetParamNames("id")
	c.SetParamValues(rp.ID.String())
	if err := h.Download(c); err != nil {
		t.Fatalf("download: %v", err)
	}
	if rec.Body.String() != "\x89PNG\r\n" || rec.Header().Get(echo.HeaderContentType) != "image/png" {
		t.Errorf("unexpected download %q %s", rec.Body.String(), rec.Header().Get(echo.HeaderContentType))
	}
}

func TestHandler_UploadMissingFile(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	req := withActor(httptest.NewRequest(http.MethodPost, "/reports", nil), auth.Actor{ID: uuid.NewString(), Roles: []string{auth.RolePatient}})
	c := e.NewContext(req, httptest.NewRecorder())
	err := h.Upload(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_UploadUnsupportedType(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	patient := uuid.New()

	body, ct := multipartBody(t, nil, "tool.zip", "application/zip", []byte("PK"))
	req := withActor(httptest.NewRequest(http.MethodPost, "/reports", body), auth.Actor{ID: patient.String(), Roles: []string{auth.RolePatient}})
	req.Header.Set(echo.HeaderContentType, ct)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.Upload(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

func TestHandler_Analyze(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	patient := uuid.New()
	actor := auth.Actor{ID: patient.String(), Roles: []string{auth.RolePatient}}
	rp, err := svc.Upload(context.Background(), actor, pdfUpload(patient, "lab.pdf"))
	if err != nil {
		t.Fatal(err)
	}

	req := withActor(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"text":"HbA1c 8.1%"}`)), actor)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(rp.ID.String())

	if err := h.Analyze(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Report
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Parsed == nil || len(got.Parsed.Recommendations) != 1 {
		t.Errorf("unexpected parsed %+v", got.Parsed)
	}
}

func TestHandler_Delete(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	patient := uuid.New()
	actor := auth.Actor{ID: patient.String(), Roles: []string{auth.RolePatient}}
	rp, _ := svc.Upload(context.Background(), actor, pdfUpload(patient, "lab.pdf"))

	rec := httptest.NewRecorder()
	c := e.NewContext(withActor(httptest.NewRequest(http.MethodDelete, "/", nil), actor), rec)
	c.SetParamNames("id")
	c.SetParamValues(rp.ID.String())
	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
