package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/quantumcare/clinical/internal/platform/apperr"
	"github.com/quantumcare/clinical/internal/platform/fhir"
)

// ErrorHandler renders every handler error as a FHIR OperationOutcome.
// Server-side causes are logged and never sent to the client.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, outcome := outcomeFor(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, outcome)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}

func outcomeFor(err error) (int, *fhir.OperationOutcome) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprintf("%v", he.Message)
		}
		return he.Code, fhir.StatusOutcome(he.Code, msg)
	}
	return fhir.OutcomeFromError(err)
}

// statusOf is the status a request will be answered with once err, if
// any, has been rendered.
func statusOf(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return apperr.HTTPStatus(err)
}
