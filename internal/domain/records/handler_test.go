package records

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumcare/clinical/internal/platform/apperr"
	"github.com/quantumcare/clinical/internal/platform/middleware"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	t.Helper()
	svc, _ := newTestService(t)
	h := NewHandler(svc)
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler(zerolog.Nop())
	h.RegisterRoutes(e.Group("/api/v1"))
	return h, e
}

func serve(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeDoc(t *testing.T, rec *httptest.ResponseRecorder) *Document {
	t.Helper()
	var doc Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	return &doc
}

func TestHandler_CreatePatient(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"resource":{"id":"p-001"}}`))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.CreatePatient(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	doc := decodeDoc(t, rec)
	assert.Equal(t, "p-001", doc.ResourceID())
	assert.Equal(t, "Patient", fhirResourceType(doc))
}

func fhirResourceType(doc *Document) string {
	var r struct {
		ResourceType string `json:"resourceType"`
	}
	json.Unmarshal(doc.Resource, &r)
	return r.ResourceType
}

func TestHandler_CreatePatient_MissingResource(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.CreatePatient(c)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidPayload))
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	h, e := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("00000000-0000-0000-0000-000000000000")

	err := h.GetPatient(c)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestRoutes_PatientLifecycle(t *testing.T) {
	_, e := newTestHandler(t)

	rec := serve(e, http.MethodPost, "/api/v1/patient", `{"resource":{"id":"p-001","gender":"female"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeDoc(t, rec)
	path := "/api/v1/patient/" + created.ID.String()

	rec = serve(e, http.MethodPost, "/api/v1/patient/list", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = serve(e, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeDoc(t, rec).ID)

	rec = serve(e, http.MethodPut, path, `{"resource":{"id":"p-001","gender":"other"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, string(decodeDoc(t, rec).Resource), `"gender":"other"`)

	rec = serve(e, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Patient deleted successfully"}`, rec.Body.String())

	rec = serve(e, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_ValidationFailureIs400(t *testing.T) {
	_, e := newTestHandler(t)

	rec := serve(e, http.MethodPost, "/api/v1/patient", `{"resource":{"gender":"robot","nickname":"x"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var oo struct {
		Issue []struct {
			Code       string   `json:"code"`
			Expression []string `json:"expression"`
		} `json:"issue"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &oo))
	require.Len(t, oo.Issue, 2)
	assert.Equal(t, []string{"resource.gender"}, oo.Issue[0].Expression)
	assert.Equal(t, []string{"resource.nickname"}, oo.Issue[1].Expression)
}

func TestRoutes_ReportLinkedToPatient(t *testing.T) {
	_, e := newTestHandler(t)

	rec := serve(e, http.MethodPost, "/api/v1/patient", `{"resource":{"id":"p-001"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	patient := decodeDoc(t, rec)

	rec = serve(e, http.MethodPost, "/api/v1/report/p-001", `{"resource":{"status":"final","code":{"text":"CBC"}}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	report := decodeDoc(t, rec)
	assert.Equal(t, patient.ID.String(), report.PatientID())

	rec = serve(e, http.MethodPost, "/api/v1/report/uploadReport/p-001", `{"resource":{"status":"final"}}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(e, http.MethodPost, "/api/v1/report/p-404", `{"resource":{"status":"final"}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_ObservationLinkedToPatient(t *testing.T) {
	_, e := newTestHandler(t)
	serve(e, http.MethodPost, "/api/v1/patient/createPatient", `{"resource":{"id":"p-7"}}`)

	rec := serve(e, http.MethodPost, "/api/v1/observation/p-7",
		`{"resource":{"status":"final","code":{"text":"HR"},"valueQuantity":{"value":72,"unit":"bpm"}}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decodeDoc(t, rec).PatientID())
}

func TestRoutes_GenericResources(t *testing.T) {
	_, e := newTestHandler(t)

	rec := serve(e, http.MethodPost, "/api/v1/resources/Medication", `{"resource":{"status":"active","code":{"text":"Metformin"}}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	med := decodeDoc(t, rec)
	path := "/api/v1/resources/Medication/" + med.ID.String()

	rec = serve(e, http.MethodGet, "/api/v1/resources/Medication", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, http.MethodPut, path, `{"resource":{"status":"inactive"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Medication deleted successfully"}`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/api/v1/resources/Encounter", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(e, http.MethodGet, "/api/v1/resources/Medication/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_GenericOwnedUsesSubject(t *testing.T) {
	_, e := newTestHandler(t)
	rec := serve(e, http.MethodPost, "/api/v1/patient", `{"resource":{"id":"p-001"}}`)
	patient := decodeDoc(t, rec)

	rec = serve(e, http.MethodPost, "/api/v1/resources/DiagnosticReport",
		`{"resource":{"status":"final","subject":{"reference":"Patient/p-001"}}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, patient.ID.String(), decodeDoc(t, rec).PatientID())
}

func TestRoutes_MalformedBody(t *testing.T) {
	_, e := newTestHandler(t)

	rec := serve(e, http.MethodPost, "/api/v1/patient", `{"resource":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(e, http.MethodPost, "/api/v1/patient", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
