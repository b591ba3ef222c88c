package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/polkiloo/payouts/internal/domain/model"
	"github.com/polkiloo/payouts/internal/server/http/dto"
)

const defaultFlaggedLimit = 50

// ReviewHandler serves the admin review queue.
type ReviewHandler struct {
	facade ReviewFacade
}

// NewReviewHandler constructs ReviewHandler.
func NewReviewHandler(facade ReviewFacade) *ReviewHandler {
	return &ReviewHandler{facade: facade}
}

// Flagged handles GET /api/admin/withdrawals/flagged.
func (h *ReviewHandler) Flagged(c *gin.Context) {
	limit := defaultFlaggedLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c)
			return
		}
		limit = n
	}

	items, err := h.facade.Flagged(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]dto.WithdrawalResponse, 0, len(items))
	for i := range items {
		resp = append(resp, toWithdrawalResponse(&items[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// Approve handles POST /api/admin/withdrawals/:id/approve.
func (h *ReviewHandler) Approve(c *gin.Context) {
	id, note, ok := reviewInput(c)
	if !ok {
		return
	}
	res, err := h.facade.Approve(c.Request.Context(), id, note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSendResponse(res))
}

// Reject handles POST /api/admin/withdrawals/:id/reject.
func (h *ReviewHandler) Reject(c *gin.Context) {
	id, note, ok := reviewInput(c)
	if !ok {
		return
	}
	w, err := h.facade.Reject(c.Request.Context(), id, note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toWithdrawalResponse(w))
}

func reviewInput(c *gin.Context) (uuid.UUID, string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c)
		return uuid.Nil, "", false
	}
	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c)
		return uuid.Nil, "", false
	}
	return id, req.Note, true
}

func toWithdrawalResponse(w *model.Withdrawal) dto.WithdrawalResponse {
	resp := dto.WithdrawalResponse{
		ID:        w.ID.String(),
		UserID:    w.UserID,
		Plugin:    string(w.Plugin),
		Network:   string(w.Network),
		Currency:  w.Currency,
		Amount:    w.TotalValue,
		Status:    string(w.Status),
		Attempts:  w.Attempts,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
	if w.TransactionID != nil {
		resp.TransactionID = *w.TransactionID
	}
	if w.Reason != nil {
		resp.Reason = string(*w.Reason)
	}
	return resp
}
