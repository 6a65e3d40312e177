package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"chat_billing/internal/billing"
	"chat_billing/internal/middleware"
	"chat_billing/internal/storage"
	"chat_billing/internal/utils"
)

// BillingHandler serves balance, usage debit and cost estimation.
type BillingHandler struct {
	billing billing.Service
}

type debitRequest struct {
	SessionID   string `json:"sessionId"`
	InputChars  int    `json:"inputChars"`
	OutputChars int    `json:"outputChars"`
}

type estimateRequest struct {
	Message string `json:"message"`
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type estimateResponse struct {
	EstimatedCost decimal.Decimal `json:"estimatedCost"`
}

// Balance returns the authenticated account's balance.
func (h *BillingHandler) Balance(w http.ResponseWriter, r *http.Request) {
	username := middleware.Username(r.Context())

	balance, err := h.billing.GetBalance(r.Context(), username)
	if err != nil {
		respondBillingError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, balanceResponse{Balance: balance})
}

// Debit charges the account for one chat exchange.
func (h *BillingHandler) Debit(w http.ResponseWriter, r *http.Request) {
	username := middleware.Username(r.Context())

	var req debitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	charge, err := h.billing.DebitForUsage(r.Context(), username, req.SessionID, req.InputChars, req.OutputChars)
	if err != nil {
		respondBillingError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, charge)
}

// Estimate predicts the cost of a message before it is sent.
func (h *BillingHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, estimateResponse{
		EstimatedCost: h.billing.EstimateCost(req.Message),
	})
}

// Usage returns the account's recent cost records.
func (h *BillingHandler) Usage(w http.ResponseWriter, r *http.Request) {
	username := middleware.Username(r.Context())

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.billing.UsageHistory(r.Context(), username, limit)
	if err != nil {
		respondBillingError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, records)
}

func respondBillingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrAccountNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, storage.ErrInsufficientFunds):
		utils.RespondWithError(w, http.StatusPaymentRequired, "Insufficient balance, please recharge")
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal error")
	}
}
