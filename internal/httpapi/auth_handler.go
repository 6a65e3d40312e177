package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"chat_billing/internal/auth"
	"chat_billing/internal/config"
	"chat_billing/internal/models"
	"chat_billing/internal/storage"
	"chat_billing/internal/utils"
)

// AuthHandler serves account registration and login.
type AuthHandler struct {
	store storage.Store
	cfg   *config.Config
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Register creates a new account with the configured initial balance.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	account := &models.Account{
		Username:     req.Username,
		PasswordHash: hash,
		Balance:      h.cfg.Billing.InitialBalance,
		CreatedAt:    time.Now(),
	}
	if err := h.store.CreateAccount(r.Context(), account); err != nil {
		if errors.Is(err, storage.ErrAccountExists) {
			utils.RespondWithError(w, http.StatusConflict, "Username already taken")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, account)
}

// Login verifies credentials and issues a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.store.GetAccount(r.Context(), req.Username)
	if err != nil || !auth.CheckPassword(account.PasswordHash, req.Password) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, expiresAt, err := auth.GenerateToken(account.Username, h.cfg.JWTSecret)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}
