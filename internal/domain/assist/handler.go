package assist

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/quantumcare/clinical/internal/platform/apperr"
)

type Handler struct {
	fwd *Forwarder
}

func NewHandler(fwd *Forwarder) *Handler {
	return &Handler{fwd: fwd}
}

type suggestion struct {
	Response string `json:"response"`
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/forward-to-llm", h.Forward)
	api.POST("/gemini/sendToGemini", h.Forward)
}

func (h *Handler) Forward(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		if he, ok := err.(*echo.HTTPError); ok {
			return he
		}
		return apperr.InvalidPayload("request body could not be read")
	}
	text, err := h.fwd.Forward(c.Request().Context(), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, suggestion{Response: text})
}
