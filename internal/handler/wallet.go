package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/RahulSriwastaw/backend/internal/identity"
	"github.com/RahulSriwastaw/backend/internal/service"
)

// WalletHandler serves the points wallet. All routes require auth; the
// wallet addressed is always the caller's own.
type WalletHandler struct {
	wallet *service.WalletService
	logger *slog.Logger
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(wallet *service.WalletService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{wallet: wallet, logger: logger}
}

type addPointsRequest struct {
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

type addPointsResponse struct {
	Transaction *service.Transaction `json:"transaction"`
	Balance     *service.Balance     `json:"balance"`
}

// HandleBalance returns the caller's points balance.
//
// HTTP: GET /api/wallet/balance
func (h *WalletHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "authentication required",
		})
		return
	}

	balance, err := h.wallet.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// HandleTransactions returns the caller's wallet history.
//
// HTTP: GET /api/wallet/transactions
func (h *WalletHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "authentication required",
		})
		return
	}

	transactions, err := h.wallet.ListTransactions(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transactions)
}

// HandleAddPoints credits points to the caller's wallet.
//
// HTTP: POST /api/wallet/add-points
func (h *WalletHandler) HandleAddPoints(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "authentication required",
		})
		return
	}

	var req addPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	tx, balance, err := h.wallet.AddPoints(r.Context(), userID, req.Points, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("points credited",
		slog.String("userID", userID),
		slog.Int("points", req.Points),
	)
	writeJSON(w, http.StatusOK, addPointsResponse{Transaction: tx, Balance: balance})
}
