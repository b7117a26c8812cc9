package server

import (
	"net/http"

	"earnhub/metrics"
	"earnhub/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// BalanceHandler serves /api/user-balance
type BalanceHandler struct {
	balances service.BalanceService
	metrics  *metrics.Metrics
}

// NewBalanceHandler creates a new balance handler. m may be nil.
func NewBalanceHandler(balances service.BalanceService, m *metrics.Metrics) *BalanceHandler {
	return &BalanceHandler{balances: balances, metrics: m}
}

type balanceResponse struct {
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
	Balance         int64  `json:"balance"`
	ReferralBalance int64  `json:"referral_balance"`
}

type syncBalanceRequest struct {
	UserID                   string `json:"userId" validate:"required,uuid"`
	Balance                  *int64 `json:"balance" validate:"required,gte=0,lte=1000000000000000"`
	LastSyncedReferralAmount int64  `json:"lastSyncedReferralAmount" validate:"gte=0"`
}

type syncBalanceResponse struct {
	Success              bool  `json:"success"`
	Balance              int64 `json:"balance"`
	ReferralBalance      int64 `json:"referral_balance"`
	SyncedReferralAmount int64 `json:"synced_referral_amount"`
}

type setBalanceRequest struct {
	UserID  string `json:"userId" validate:"required,uuid"`
	Balance *int64 `json:"balance" validate:"required,gte=0,lte=1000000000000000"`
}

type setBalanceResponse struct {
	Success bool  `json:"success"`
	Balance int64 `json:"balance"`
}

// Get handles GET /api/user-balance?userId=
func (h *BalanceHandler) Get(c echo.Context) error {
	userID, msg := parseUserID(c.QueryParam("userId"))
	if msg != "" {
		return fail(c, http.StatusBadRequest, msg)
	}

	snapshot, err := h.balances.GetBalance(c.Request().Context(), userID)
	if err != nil {
		status, message := statusFor(err)
		if status != http.StatusInternalServerError {
			return fail(c, status, message)
		}
		// Clients fall back to their local balance, so a failed read still
		// carries a zeroed payload.
		logInternalError(c, err)
		return c.JSON(status, balanceResponse{Success: false, Error: message})
	}

	return c.JSON(http.StatusOK, balanceResponse{
		Success:         true,
		Balance:         snapshot.Balance,
		ReferralBalance: snapshot.ReferralBalance,
	})
}

// Sync handles POST /api/user-balance
func (h *BalanceHandler) Sync(c echo.Context) error {
	var req syncBalanceRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, validationMessage(err))
	}

	userID := uuid.MustParse(req.UserID)
	if !authorizedFor(c, userID) {
		return fail(c, http.StatusForbidden, "session does not match userId")
	}

	result, err := h.balances.Sync(c.Request().Context(), userID, *req.Balance, req.LastSyncedReferralAmount)
	if err != nil {
		return respondError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordBalanceWrite("merge")
	}

	return c.JSON(http.StatusOK, syncBalanceResponse{
		Success:              true,
		Balance:              result.Balance,
		ReferralBalance:      result.ReferralBalance,
		SyncedReferralAmount: result.ReferralSyncedAmount,
	})
}

// Set handles PUT /api/user-balance
func (h *BalanceHandler) Set(c echo.Context) error {
	var req setBalanceRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, validationMessage(err))
	}

	userID := uuid.MustParse(req.UserID)
	if !authorizedFor(c, userID) {
		return fail(c, http.StatusForbidden, "session does not match userId")
	}

	balance, err := h.balances.SetBalance(c.Request().Context(), userID, *req.Balance)
	if err != nil {
		return respondError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordBalanceWrite("set")
	}

	return c.JSON(http.StatusOK, setBalanceResponse{Success: true, Balance: balance})
}
