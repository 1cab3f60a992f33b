package handler

import (
	"strings"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	maxIdempotencyKeyLen = 128
)

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// Create handles POST /api/v1/wallets. The body's user_id must be the caller.
func (h *WalletHandler) Create(c *gin.Context) {
	callerID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateWalletRequest
	if err := dto.Bind(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.Error(c, apperror.ErrInvalidInput(map[string]string{"user_id": "must be a valid UUID"}))
		return
	}
	if userID != callerID {
		response.Error(c, apperror.ErrForeignWallet())
		return
	}

	wallet, err := h.walletSvc.CreateWallet(c.Request.Context(), ports.CreateWalletRequest{
		UserID:         userID,
		InitialBalance: req.InitialBalance.OrZero(),
		Currency:       req.Currency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.WalletResponse{
		Message:            "Wallet created successfully",
		WalletID:           wallet.ID.String(),
		UserID:             wallet.UserID.String(),
		Balance:            wallet.Balance.InexactFloat64(),
		Currency:           wallet.Currency,
		RecentTransactions: wallet.RecentTransactions,
	})
}

// Fund handles POST /api/v1/wallets/:user_id/fund.
func (h *WalletHandler) Fund(c *gin.Context) {
	userID, req, key, ok := h.bindMutation(c)
	if !ok {
		return
	}

	wallet, err := h.walletSvc.Fund(c.Request.Context(), ports.FundRequest{
		UserID:         userID,
		Amount:         req.Amount.OrZero(),
		Currency:       req.Currency,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.MutationResponse{
		Message: "Funds added successfully",
		Balance: wallet.Balance.InexactFloat64(),
	})
}

// Withdraw handles POST /api/v1/wallets/:user_id/withdraw.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID, req, key, ok := h.bindMutation(c)
	if !ok {
		return
	}

	wallet, err := h.walletSvc.Withdraw(c.Request.Context(), ports.WithdrawRequest{
		UserID:         userID,
		Amount:         req.Amount.OrZero(),
		Currency:       req.Currency,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.MutationResponse{
		Message: "Withdrawal successful",
		Balance: wallet.Balance.InexactFloat64(),
	})
}

// Convert handles POST /api/v1/wallets/:user_id/convert.
func (h *WalletHandler) Convert(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ConvertRequest
	if err := dto.Bind(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	quote, err := h.walletSvc.Convert(c.Request.Context(), userID, domain.ConversionRequest{
		Amount: req.Amount.OrZero(),
		From:   req.FromCurrency,
		To:     req.ToCurrency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ConvertResponse{
		Amount:   quote.Amount.InexactFloat64(),
		Currency: quote.Currency,
	})
}

// Balances handles GET /api/v1/wallets/:user_id/balances. Keys are the
// lower-cased currency codes.
func (h *WalletHandler) Balances(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	b, err := h.walletSvc.GetBalances(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, map[string]float64{
		strings.ToLower(b.Canonical.Currency): b.Canonical.Amount.InexactFloat64(),
		strings.ToLower(b.Foreign.Currency):   b.Foreign.Amount.InexactFloat64(),
	})
}

// bindMutation reads the caller, body and idempotency key shared by fund and withdraw.
func (h *WalletHandler) bindMutation(c *gin.Context) (uuid.UUID, dto.AmountRequest, string, bool) {
	var req dto.AmountRequest

	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, req, "", false
	}

	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if len(key) > maxIdempotencyKeyLen {
		response.Error(c, apperror.ErrInvalidInput(map[string]string{
			HeaderIdempotencyKey: "must be at most 128 characters",
		}))
		return uuid.Nil, req, "", false
	}

	if err := dto.Bind(c, &req); err != nil {
		response.Error(c, err)
		return uuid.Nil, req, "", false
	}
	return userID, req, key, true
}
