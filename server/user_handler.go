package server

import (
	"net/http"

	"earnhub/service"

	"github.com/labstack/echo/v4"
)

// UserHandler serves user profiles
type UserHandler struct {
	users service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(users service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type profileResponse struct {
	Success bool           `json:"success"`
	User    profilePayload `json:"user"`
}

// GetProfile handles GET /api/user/:userId
func (h *UserHandler) GetProfile(c echo.Context) error {
	userID, msg := parseUserID(c.Param("userId"))
	if msg != "" {
		return fail(c, http.StatusBadRequest, msg)
	}

	profile, err := h.users.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, profileResponse{
		Success: true,
		User: profilePayload{
			userPayload:     newUserPayload(profile.User),
			ReferralCount:   profile.ReferralCount,
			ReferralBalance: profile.ReferralBalance,
		},
	})
}
