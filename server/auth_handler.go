package server

import (
	"net/http"

	"earnhub/auth"
	"earnhub/metrics"
	"earnhub/service"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// AuthHandler serves signup and login
type AuthHandler struct {
	signup   service.SignupService
	users    service.UserService
	sessions *auth.SessionManager
	metrics  *metrics.Metrics
}

// NewAuthHandler creates a new auth handler. m may be nil.
func NewAuthHandler(signup service.SignupService, users service.UserService, sessions *auth.SessionManager, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		signup:   signup,
		users:    users,
		sessions: sessions,
		metrics:  m,
	}
}

type signupRequest struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	ReferralCode string `json:"referralCode"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Success bool        `json:"success"`
	User    userPayload `json:"user"`
	Token   string      `json:"token"`
}

// Signup handles POST /api/signup
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, validationMessage(err))
	}

	user, err := h.signup.Signup(c.Request().Context(), service.SignupInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		return respondError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordUserRegistered(user.ReferredBy != nil)
	}

	// The account exists at this point; a token failure only costs the
	// client an extra login.
	token, err := h.sessions.Issue(user.ID, user.Email)
	if err != nil {
		log.WithFields(log.Fields{
			"userId": user.ID,
			"error":  err,
		}).Error("Failed to issue session after signup")
	}

	return c.JSON(http.StatusCreated, sessionResponse{
		Success: true,
		User:    newUserPayload(user),
		Token:   token,
	})
}

// Login handles POST /api/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, validationMessage(err))
	}

	user, err := h.users.Authenticate(c.Request().Context(), req.Email, req.Password)
	if h.metrics != nil {
		h.metrics.RecordLoginAttempt(err == nil)
	}
	if err != nil {
		return respondError(c, err)
	}

	token, err := h.sessions.Issue(user.ID, user.Email)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, sessionResponse{
		Success: true,
		User:    newUserPayload(user),
		Token:   token,
	})
}
