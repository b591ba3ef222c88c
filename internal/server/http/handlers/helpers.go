package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/server/http/dto"
	"github.com/polkiloo/payouts/internal/server/http/middleware"
)

// SessionHeader carries the client fraud session identifier.
const SessionHeader = "X-Fraud-Session"

const internalErrorCode = "INTERNAL_ERROR"

// CurrentUserID extracts authenticated user identifier from context.
func CurrentUserID(c *gin.Context) int64 {
	val, ok := c.Get(middleware.UserIDContextKey)
	if !ok {
		return 0
	}
	id, _ := val.(int64)
	return id
}

// CurrentSession returns the fraud session for the request, falling back to the auth token.
func CurrentSession(c *gin.Context) string {
	if session := c.GetHeader(SessionHeader); session != "" {
		return session
	}
	return c.GetString(middleware.TokenContextKey)
}

// writeError maps domain errors to status codes and the public error body.
func writeError(c *gin.Context, err error) {
	if v, ok := domainErrors.AsValidation(err); ok {
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(v, domainErrors.ErrInsufficientBalance):
			status = http.StatusPaymentRequired
		case v.Code == domainErrors.CodeWithdrawalInProgress:
			status = http.StatusTooManyRequests
		case v.Code == domainErrors.CodeNotFlagged:
			status = http.StatusConflict
		}
		c.AbortWithStatusJSON(status, dto.ErrorResponse{Code: string(v.Code), Message: v.Message(), Meta: v.Meta})
		return
	}

	var declined *domainErrors.RiskDeclinedError
	if errors.As(err, &declined) {
		c.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{Code: string(declined.Reason), Message: declined.Message()})
		return
	}

	if errors.Is(err, domainErrors.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: "The requested resource does not exist."})
		return
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{Code: internalErrorCode, Message: "Something went wrong. Please try again later."})
}

func badRequest(c *gin.Context) {
	v := domainErrors.NewValidationError(domainErrors.CodeInvalidRequest)
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Code: string(v.Code), Message: v.Message()})
}
