package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"chat_billing/internal/middleware"
	"chat_billing/internal/models"
	"chat_billing/internal/recharge"
	"chat_billing/internal/storage"
	"chat_billing/internal/utils"
)

// RechargeHandler serves the recharge-order lifecycle.
type RechargeHandler struct {
	recharge *recharge.Service
	mailbox  *recharge.Mailbox
}

type createOrderRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type orderRefRequest struct {
	OrderNo string `json:"orderNo"`
}

// orderResponse augments an order with its display text and the time
// left to pay it.
type orderResponse struct {
	*models.RechargeOrder
	StatusText       string `json:"statusText"`
	RemainingSeconds int64  `json:"remainingSeconds"`
}

func toOrderResponse(o *models.RechargeOrder) orderResponse {
	return orderResponse{
		RechargeOrder:    o,
		StatusText:       o.Status.Text(),
		RemainingSeconds: o.RemainingSeconds(time.Now()),
	}
}

func toOrderResponses(orders []*models.RechargeOrder) []orderResponse {
	responses := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		responses = append(responses, toOrderResponse(o))
	}
	return responses
}

// CreateOrder opens a new recharge order for the account.
func (h *RechargeHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	username := middleware.Username(r.Context())

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := h.recharge.CreateOrder(r.Context(), username, req.Amount)
	if err != nil {
		respondRechargeError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, toOrderResponse(order))
}

// ConfirmPayment settles the order and credits the balance.
func (h *RechargeHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	username := middleware.Username(r.Context())

	var req orderRefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := h.recharge.ConfirmPayment(r.Context(), username, req.OrderNo)
	if err != nil {
		respondRechargeError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, toOrderResponse(order))
}

// CancelOrder abandons a pending order.
func (h *RechargeHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	username := middleware.Username(r.Context())

	var req orderRefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := h.recharge.CancelOrder(r.Context(), username, req.OrderNo)
	if err != nil {
		respondRechargeError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, toOrderResponse(order))
}

// PendingOrder returns the account's live pending order, if any.
func (h *RechargeHandler) PendingOrder(w http.ResponseWriter, r *http.Request) {
	username := middleware.Username(r.Context())

	order, err := h.recharge.GetPendingOrder(r.Context(), username)
	if err != nil {
		respondRechargeError(w, err)
		return
	}
	if order == nil {
		utils.RespondWithJSON(w, http.StatusOK, nil)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, toOrderResponse(order))
}

// ListOrders returns the account's order history, most recent first.
func (h *RechargeHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	username := middleware.Username(r.Context())

	orders, err := h.recharge.ListOrders(r.Context(), username)
	if err != nil {
		respondRechargeError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, toOrderResponses(orders))
}

// Notifications drains the account's expired-order notifications.
func (h *RechargeHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	username := middleware.Username(r.Context())
	utils.RespondWithJSON(w, http.StatusOK, toOrderResponses(h.mailbox.PollAndClear(username)))
}

func respondRechargeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrAccountNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, storage.ErrOrderNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, storage.ErrDuplicatePendingOrder):
		utils.RespondWithError(w, http.StatusConflict, "A pending order already exists; pay or cancel it first")
	case errors.Is(err, storage.ErrInvalidState):
		utils.RespondWithError(w, http.StatusConflict, "Order is not awaiting payment")
	case errors.Is(err, storage.ErrOrderExpired):
		utils.RespondWithError(w, http.StatusGone, "Order has expired")
	case errors.Is(err, recharge.ErrAmountTooSmall):
		utils.RespondWithError(w, http.StatusBadRequest, "Recharge amount must be at least 1.00")
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal error")
	}
}
