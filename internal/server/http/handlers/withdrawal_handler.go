package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/payouts/internal/domain/model"
	"github.com/polkiloo/payouts/internal/server/http/dto"
)

// WithdrawalHandler manages withdrawal submission endpoints.
type WithdrawalHandler struct {
	facade WithdrawalFacade
}

// NewWithdrawalHandler constructs WithdrawalHandler.
func NewWithdrawalHandler(facade WithdrawalFacade) *WithdrawalHandler {
	return &WithdrawalHandler{facade: facade}
}

// Withdraw handles POST /api/withdrawals.
func (h *WithdrawalHandler) Withdraw(c *gin.Context) {
	h.submit(c, h.facade.Withdraw)
}

// Transfer handles POST /api/withdrawals/transfer.
func (h *WithdrawalHandler) Transfer(c *gin.Context) {
	h.submit(c, h.facade.Transfer)
}

type submitFunc func(ctx context.Context, userID int64, raw model.RawRequest, session string) (*model.SendResult, error)

func (h *WithdrawalHandler) submit(c *gin.Context, fn submitFunc) {
	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	res, err := fn(c.Request.Context(), CurrentUserID(c), toRawRequest(req), CurrentSession(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSendResponse(res))
}

func toRawRequest(req dto.WithdrawRequest) model.RawRequest {
	raw := model.RawRequest{
		Plugin:  req.Plugin,
		Network: req.Network,
		Fields: model.RawFields{
			Address:       req.Fields.Address,
			Tag:           string(req.Fields.Tag),
			AccountID:     req.Fields.AccountID,
			TwoFactorCode: req.Fields.TwoFactorCode,
		},
	}
	if req.Amount != nil {
		raw.Amount = req.Amount.String()
	}
	return raw
}

func toSendResponse(res *model.SendResult) dto.SendResponse {
	return dto.SendResponse{
		WithdrawalID: res.WithdrawalID.String(),
		Status:       string(res.Status),
		ExternalID:   res.ExternalID,
	}
}
