package server

import (
	"errors"
	"net/http"

	"earnhub/service"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const internalErrorMessage = "Internal server error"

// errorResponse is the body of every failed request
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, errorResponse{Success: false, Error: message})
}

// statusFor maps service errors to an HTTP status and a client-safe message.
// Anything unrecognised is a 500 whose detail stays in the server log.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusBadRequest, service.ErrEmailTaken.Error()
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, service.ErrUnauthorized.Error()
	default:
		return http.StatusInternalServerError, internalErrorMessage
	}
}

func respondError(c echo.Context, err error) error {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		logInternalError(c, err)
	}
	return fail(c, status, message)
}

func logInternalError(c echo.Context, err error) {
	log.WithFields(log.Fields{
		"method": c.Request().Method,
		"path":   c.Path(),
		"error":  err,
	}).Error("Request failed")
}

// httpErrorHandler renders echo's own errors (unknown route, bad method,
// panics caught by Recover) in the same shape as handler errors.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := internalErrorMessage

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(status)
		}
	} else {
		logInternalError(c, err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = fail(c, status, message)
	}
	if err != nil {
		log.WithError(err).Error("Failed to write error response")
	}
}
