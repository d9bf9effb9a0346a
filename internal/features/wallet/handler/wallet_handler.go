package handler

import (
	"fmt"

	"commerce-backend/internal/core/apperr"
	"commerce-backend/internal/core/auth"
	"commerce-backend/internal/core/response"
	"commerce-backend/internal/features/wallet/domain"
	"commerce-backend/internal/features/wallet/ports"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// WalletHandler handles HTTP requests for wallets.
type WalletHandler struct {
	service ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(service ports.LedgerService) *WalletHandler {
	return &WalletHandler{service: service}
}

// WalletResponse is the body of GET /wallet/:userId.
type WalletResponse struct {
	UserID       string               `json:"userId"`
	Balance      decimal.Decimal      `json:"balance"`
	Transactions []domain.Transaction `json:"transactions"`
}

// GetWallet handles GET /wallet/:userId.
// @Summary Get wallet balance and transactions
// @Tags Wallet
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} WalletResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /wallet/{userId} [get]
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if !auth.CanAccess(c, userID) {
		return response.Error(c, fmt.Errorf("%w: wallet belongs to another user", apperr.ErrForbidden))
	}

	wallet, err := h.service.Wallet(c.UserContext(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(WalletResponse{
		UserID:       wallet.UserID,
		Balance:      wallet.Balance,
		Transactions: wallet.Transactions,
	})
}
