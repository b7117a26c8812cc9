package server

import (
	"strings"

	"earnhub/models"

	"github.com/google/uuid"
)

type userPayload struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	ReferralCode string    `json:"referral_code"`
	Balance      int64     `json:"balance"`
}

func newUserPayload(u *models.User) userPayload {
	return userPayload{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		ReferralCode: u.ReferralCode,
		Balance:      u.Balance,
	}
}

type profilePayload struct {
	userPayload
	ReferralCount   int64 `json:"referral_count"`
	ReferralBalance int64 `json:"referral_balance"`
}

// parseUserID validates a userId taken from a query string or path
func parseUserID(raw string) (uuid.UUID, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, "userId is required"
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "userId must be a valid user id"
	}
	return id, ""
}
