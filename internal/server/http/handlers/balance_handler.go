package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/payouts/internal/domain/model"
	"github.com/polkiloo/payouts/internal/server/http/dto"
)

// BalanceHandler manages balance-related endpoints.
type BalanceHandler struct {
	facade BalanceFacade
}

// NewBalanceHandler constructs BalanceHandler.
func NewBalanceHandler(facade BalanceFacade) *BalanceHandler {
	return &BalanceHandler{facade: facade}
}

// Summary handles GET /api/balance.
func (h *BalanceHandler) Summary(c *gin.Context) {
	balances, err := h.facade.Balance(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{Cash: balances.Cash, Crypto: balances.Crypto})
}

// History handles GET /api/balance/history?type=cash|crypto.
func (h *BalanceHandler) History(c *gin.Context) {
	balanceType := model.BalanceType(c.DefaultQuery("type", string(model.BalanceCrypto)))
	if balanceType != model.BalanceCash && balanceType != model.BalanceCrypto {
		badRequest(c)
		return
	}

	entries, err := h.facade.History(c.Request.Context(), CurrentUserID(c), balanceType)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(entries) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	resp := make([]dto.LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, dto.LedgerEntryResponse{
			ID:               e.ID.String(),
			Amount:           e.Amount,
			TransactionType:  string(e.TransactionType),
			BalanceType:      string(e.BalanceType),
			ResultantBalance: e.ResultantBalance,
			CreatedAt:        e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}
