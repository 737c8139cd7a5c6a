package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
	applog "github.com/quimera/catalog-ingest/pkg/log"
)

// ErrorResponse is the JSON body returned for every failed request.
type ErrorResponse struct {
	ResultCode int    `json:"result_code"`
	Message    string `json:"message"`
}

// httpStatus maps an application error to the HTTP status code the client
// should see.
func httpStatus(err error) int {
	switch apperrors.UnderlyingType(err) {
	case apperrors.InvalidInput:
		return http.StatusBadRequest
	case apperrors.Unauthorized:
		return http.StatusUnauthorized
	case apperrors.NotFound:
		return http.StatusNotFound
	case apperrors.Conflict:
		return http.StatusConflict
	case apperrors.Timeout:
		return http.StatusGatewayTimeout
	case apperrors.Unavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler is the global Echo error handler. It converts every error
// into the standard ErrorResponse shape and logs it with request context.
func errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := "internal server error"

	switch e := err.(type) {
	case *echo.HTTPError:
		code = e.Code
		if msg, ok := e.Message.(string); ok {
			message = msg
		}
	case *apperrors.AppError:
		code = httpStatus(e)
		message = e.Error()
	default:
		if apperrors.UnderlyingType(err) != apperrors.Unknown {
			code = httpStatus(err)
			message = err.Error()
		}
	}

	// keep stack internals out of 5xx responses
	if code >= http.StatusInternalServerError {
		message = "internal server error"
	}

	fields := applog.Fields{
		"path":        c.Request().URL.Path,
		"method":      c.Request().Method,
		"status_code": code,
		"error":       err,
		"remote_ip":   c.RealIP(),
		"request_id":  c.Response().Header().Get(echo.HeaderXRequestID),
	}

	if code >= http.StatusInternalServerError {
		applog.WithComponentAndFields(component, fields).Error("request failed with a server error")
	} else if code >= http.StatusBadRequest {
		applog.WithComponentAndFields(component, fields).Warn("request rejected")
	}

	if c.Response().Committed {
		return
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(code)
		return
	}

	c.JSON(code, ErrorResponse{
		ResultCode: code,
		Message:    message,
	})
}
