package server

import (
	"net/http"

	"earnhub/models"
	"earnhub/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ReferralHandler serves referral stats and qualification checks
type ReferralHandler struct {
	stats         service.ReferralStatsService
	qualification service.QualificationService
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(stats service.ReferralStatsService, qualification service.QualificationService) *ReferralHandler {
	return &ReferralHandler{stats: stats, qualification: qualification}
}

type referralStatsResponse struct {
	Success         bool                       `json:"success"`
	ReferralCode    string                     `json:"referral_code"`
	ReferralCount   int64                      `json:"referral_count"`
	ReferralBalance int64                      `json:"referral_balance"`
	Referrals       []*models.ReferralWithUser `json:"referrals"`
	CompletedCount  int64                      `json:"completed_count"`
	PendingCount    int64                      `json:"pending_count"`
}

type qualificationRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

// Progress fields are pointers so they are omitted once a user qualifies
type qualificationResponse struct {
	Success            bool   `json:"success"`
	Qualified          bool   `json:"qualified"`
	UserBalance        int64  `json:"userBalance"`
	CompletedReferrals int64  `json:"completedReferrals"`
	NewlyCompleted     int64  `json:"newlyCompleted"`
	EarnedAmount       *int64 `json:"earnedAmount,omitempty"`
	EarningsNeeded     *int64 `json:"earningsNeeded,omitempty"`
	BalanceNeeded      *int64 `json:"balanceNeeded,omitempty"`
	ReferralsNeeded    *int64 `json:"referralsNeeded,omitempty"`
}

func newQualificationResponse(r *models.QualificationResult) qualificationResponse {
	resp := qualificationResponse{
		Success:            true,
		Qualified:          r.Qualified,
		UserBalance:        r.UserBalance,
		CompletedReferrals: r.CompletedReferrals,
		NewlyCompleted:     r.NewlyCompleted,
	}
	if !r.Qualified {
		resp.EarnedAmount = &r.EarnedAmount
		resp.EarningsNeeded = &r.EarningsNeeded
		resp.BalanceNeeded = &r.BalanceNeeded
		resp.ReferralsNeeded = &r.ReferralsNeeded
	}
	return resp
}

// Stats handles GET /api/referral-stats?userId=
func (h *ReferralHandler) Stats(c echo.Context) error {
	userID, msg := parseUserID(c.QueryParam("userId"))
	if msg != "" {
		return fail(c, http.StatusBadRequest, msg)
	}

	stats, err := h.stats.GetReferralStats(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, referralStatsResponse{
		Success:         true,
		ReferralCode:    stats.ReferralCode,
		ReferralCount:   stats.ReferralCount,
		ReferralBalance: stats.ReferralBalance,
		Referrals:       stats.Referrals,
		CompletedCount:  stats.CompletedCount,
		PendingCount:    stats.PendingCount,
	})
}

// CheckQualification handles POST /api/referral-qualification-check
func (h *ReferralHandler) CheckQualification(c echo.Context) error {
	var req qualificationRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, validationMessage(err))
	}

	result, err := h.qualification.Check(c.Request().Context(), uuid.MustParse(req.UserID))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, newQualificationResponse(result))
}

// EvaluateQualification handles GET /api/referral-qualification-check?userId=
func (h *ReferralHandler) EvaluateQualification(c echo.Context) error {
	userID, msg := parseUserID(c.QueryParam("userId"))
	if msg != "" {
		return fail(c, http.StatusBadRequest, msg)
	}

	result, err := h.qualification.Evaluate(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, newQualificationResponse(result))
}
