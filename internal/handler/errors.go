package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ArRuslan/ticketer/internal/apperr"
)

type errorBody struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

// ErrorHandler renders domain errors as {error_code, error_message} with
// their HTTP status.  echo errors keep their status with code 0; anything
// else is logged and answered with a generic 500.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, body := http.StatusInternalServerError, errorBody{Message: "Internal server error."}

	var he *echo.HTTPError
	if e, ok := apperr.As(err); ok {
		status, body = e.Status, errorBody{Code: e.Code, Message: e.Message}
	} else if errors.As(err, &he) {
		status = he.Code
		body.Message = http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok {
			body.Message = msg
		}
	} else {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, body)
	}
	if werr != nil {
		c.Logger().Error(werr)
	}
}
