package records

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/quantumcare/clinical/internal/platform/apperr"
	"github.com/quantumcare/clinical/pkg/fhirmodels"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// deleted is the confirmation body of a successful delete.
type deleted struct {
	Message string `json:"message"`
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patient", h.CreatePatient)
	api.GET("/patient", h.ListPatients)
	api.POST("/patient/list", h.ListPatients)
	api.GET("/patient/:id", h.GetPatient)
	api.POST("/patient/:id", h.GetPatient)
	api.PUT("/patient/:id", h.UpdatePatient)
	api.DELETE("/patient/:id", h.DeletePatient)

	api.POST("/report/:patientExternalId", h.CreateReport)
	api.POST("/observation/:patientExternalId", h.CreateObservation)

	api.POST("/resources/:resourceType", h.CreateResource)
	api.GET("/resources/:resourceType", h.ListResources)
	api.GET("/resources/:resourceType/:id", h.GetResource)
	api.PUT("/resources/:resourceType/:id", h.UpdateResource)
	api.DELETE("/resources/:resourceType/:id", h.DeleteResource)

	// Route names of the first release, kept for existing clients.
	api.POST("/patient/createPatient", h.CreatePatient)
	api.GET("/patient/getPatients", h.ListPatients)
	api.POST("/patient/getPatients", h.ListPatients)
	api.GET("/patient/getPatientById/:id", h.GetPatient)
	api.POST("/patient/getPatientById/:id", h.GetPatient)
	api.PUT("/patient/updatePatient/:id", h.UpdatePatient)
	api.DELETE("/patient/deletePatients/:id", h.DeletePatient)
	api.POST("/report/uploadReport/:patientExternalId", h.CreateReport)
}

func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		if he, ok := err.(*echo.HTTPError); ok {
			return nil, he
		}
		return nil, apperr.InvalidPayload("request body could not be read")
	}
	return body, nil
}

// -- Patient --

func (h *Handler) CreatePatient(c echo.Context) error {
	return h.create(c, fhirmodels.ResourceTypePatient)
}

func (h *Handler) ListPatients(c echo.Context) error {
	return h.list(c, fhirmodels.ResourceTypePatient)
}

func (h *Handler) GetPatient(c echo.Context) error {
	return h.get(c, fhirmodels.ResourceTypePatient)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	return h.update(c, fhirmodels.ResourceTypePatient)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	return h.delete(c, fhirmodels.ResourceTypePatient)
}

// -- Patient-owned --

func (h *Handler) CreateReport(c echo.Context) error {
	return h.createForPatient(c, fhirmodels.ResourceTypeDiagnosticReport)
}

func (h *Handler) CreateObservation(c echo.Context) error {
	return h.createForPatient(c, fhirmodels.ResourceTypeObservation)
}

func (h *Handler) createForPatient(c echo.Context, resourceType string) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.CreateForPatient(c.Request().Context(), resourceType, c.Param("patientExternalId"), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, doc)
}

// -- Generic --

func (h *Handler) CreateResource(c echo.Context) error {
	return h.create(c, c.Param("resourceType"))
}

func (h *Handler) ListResources(c echo.Context) error {
	return h.list(c, c.Param("resourceType"))
}

func (h *Handler) GetResource(c echo.Context) error {
	return h.get(c, c.Param("resourceType"))
}

func (h *Handler) UpdateResource(c echo.Context) error {
	return h.update(c, c.Param("resourceType"))
}

func (h *Handler) DeleteResource(c echo.Context) error {
	return h.delete(c, c.Param("resourceType"))
}

func (h *Handler) create(c echo.Context, resourceType string) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.Create(c.Request().Context(), resourceType, body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *Handler) list(c echo.Context, resourceType string) error {
	docs, err := h.svc.List(c.Request().Context(), resourceType)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *Handler) get(c echo.Context, resourceType string) error {
	doc, err := h.svc.Get(c.Request().Context(), resourceType, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) update(c echo.Context, resourceType string) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.Update(c.Request().Context(), resourceType, c.Param("id"), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) delete(c echo.Context, resourceType string) error {
	if _, err := h.svc.Delete(c.Request().Context(), resourceType, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, deleted{Message: resourceType + " deleted successfully"})
}
